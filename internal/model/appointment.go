package model

import "time"

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "PENDING"
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED"
)

// ParseAppointmentStatus accepts only the known statuses, matched exactly.
func ParseAppointmentStatus(s string) (AppointmentStatus, bool) {
	st := AppointmentStatus(s)
	return st, st == AppointmentStatusPending || st == AppointmentStatusCancelled
}

// Appointment is one booking of a doctor's time slot at a center.
type Appointment struct {
	Base
	ScheduledAt  time.Time         `json:"fecha" db:"scheduled_at"`
	Reason       string            `json:"motivo" db:"reason"`
	Status       AppointmentStatus `json:"estado" db:"status"`
	PatientID    int64             `json:"paciente_id" db:"patient_id"`
	DoctorID     int64             `json:"doctor_id" db:"doctor_id"`
	CenterID     int64             `json:"centro_id" db:"center_id"`
	RegisteredBy int64             `json:"id_usuario_registra" db:"registered_by"`
}

// AppointmentDetail is an appointment joined with the display names of the
// records it references.
type AppointmentDetail struct {
	Appointment
	PatientName          string `db:"patient_name"`
	DoctorName           string `db:"doctor_name"`
	CenterName           string `db:"center_name"`
	RegisteredByUsername string `db:"registered_by_username"`
}

// AppointmentResponse is the wire shape of an appointment.
type AppointmentResponse struct {
	ID           int64             `json:"id"`
	Date         string            `json:"fecha"`
	Status       AppointmentStatus `json:"estado"`
	Reason       string            `json:"motivo"`
	Patient      string            `json:"paciente"`
	Doctor       string            `json:"doctor"`
	Center       string            `json:"centro"`
	RegisteredBy string            `json:"usuario_registra,omitempty"`
}

// Summary is the list view and omits who registered the booking.
func (d *AppointmentDetail) Summary() AppointmentResponse {
	return AppointmentResponse{
		ID:      d.ID,
		Date:    FormatTimestamp(d.ScheduledAt),
		Status:  d.Status,
		Reason:  d.Reason,
		Patient: d.PatientName,
		Doctor:  d.DoctorName,
		Center:  d.CenterName,
	}
}

func (d *AppointmentDetail) Response() AppointmentResponse {
	resp := d.Summary()
	resp.RegisteredBy = d.RegisteredByUsername
	return resp
}

// CreateAppointmentRequest represents appointment creation parameters.
// PatientID is ignored when the caller is a patient.
type CreateAppointmentRequest struct {
	DoctorID  int64   `json:"doctor_id" binding:"required,gt=0"`
	CenterID  int64   `json:"centro_id" binding:"required,gt=0"`
	Date      string  `json:"fecha" binding:"required,iso8601"`
	Reason    string  `json:"motivo"`
	PatientID *int64  `json:"paciente_id"`
	Status    *string `json:"estado" binding:"omitempty,appointment_status"`
}

// AppointmentQuery holds raw list filters as sent on the query string. Which
// of them are honored depends on the caller's role.
type AppointmentQuery struct {
	PatientID string `form:"paciente_id"`
	DoctorID  string `form:"doctor_id"`
	CenterID  string `form:"centro_id"`
	Status    string `form:"estado"`
	Date      string `form:"fecha"`
}

// AppointmentFilter is the parsed, conjunctive filter handed to storage.
// Nil fields do not constrain the result.
type AppointmentFilter struct {
	PatientID   *int64
	DoctorID    *int64
	CenterID    *int64
	Status      *AppointmentStatus
	ScheduledAt *time.Time
}
