package model

// Doctor practices at one center and may be linked to a login account.
type Doctor struct {
	Base
	Name      string `json:"nombre" db:"name"`
	Specialty string `json:"especialidad" db:"specialty"`
	CenterID  int64  `json:"centro_id" db:"center_id"`
	UserID    *int64 `json:"id_usuario" db:"user_id"`
}

// CreateDoctorRequest creates the doctor and its login account together.
type CreateDoctorRequest struct {
	Name      string `json:"nombre" binding:"required"`
	Specialty string `json:"especialidad" binding:"required"`
	CenterID  int64  `json:"centro_id" binding:"required,gt=0"`
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
}
