package model

// Center is a physical clinic location.
type Center struct {
	Base
	Name    string `json:"nombre" db:"name"`
	Address string `json:"direccion" db:"address"`
}

type CreateCenterRequest struct {
	Name    string `json:"nombre" binding:"required"`
	Address string `json:"direccion" binding:"required"`
}
