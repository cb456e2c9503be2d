package model

type PatientStatus string

const (
	PatientStatusActive   PatientStatus = "ACTIVE"
	PatientStatusInactive PatientStatus = "INACTIVE"
)

func (s PatientStatus) Valid() bool {
	return s == PatientStatusActive || s == PatientStatusInactive
}

// Patient is a person who receives care. UserID links the patient record to
// the login account of the same person, when there is one.
type Patient struct {
	Base
	Name   string        `json:"nombre" db:"name"`
	Phone  string        `json:"telefono" db:"phone"`
	Status PatientStatus `json:"estado" db:"status"`
	UserID *int64        `json:"id_usuario" db:"user_id"`
}

// CreatePatientRequest creates the patient and its login account together.
type CreatePatientRequest struct {
	Name     string `json:"nombre" binding:"required"`
	Phone    string `json:"telefono"`
	Status   string `json:"estado" binding:"omitempty,patient_status"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdatePatientRequest carries a partial update; nil fields are left as is.
type UpdatePatientRequest struct {
	Name   *string `json:"nombre" binding:"omitempty,min=1"`
	Phone  *string `json:"telefono"`
	Status *string `json:"estado" binding:"omitempty,patient_status"`
	UserID *int64  `json:"id_usuario" binding:"omitempty,gt=0"`
}
