package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/odontocare-api/internal/model"
	"github.com/jwalitptl/odontocare-api/internal/repository"
	apperrors "github.com/jwalitptl/odontocare-api/pkg/errors"
)

const appointmentDetailQuery = `
	SELECT a.id, a.scheduled_at, a.reason, a.status,
		   a.patient_id, a.doctor_id, a.center_id, a.registered_by,
		   a.created_at, a.updated_at,
		   p.name AS patient_name,
		   d.name AS doctor_name,
		   c.name AS center_name,
		   u.username AS registered_by_username
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN doctors d ON d.id = a.doctor_id
	JOIN centers c ON c.id = a.center_id
	JOIN users u ON u.id = a.registered_by
	WHERE 1=1`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

// Create relies on appointments_doctor_slot_key, so two concurrent bookings
// of the same slot cannot both commit.
func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			scheduled_at, reason, status, patient_id, doctor_id,
			center_id, registered_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id
	`
	now := time.Now().UTC()
	err := sqlx.GetContext(ctx, r.ext(ctx), &appointment.ID, query,
		appointment.ScheduledAt,
		appointment.Reason,
		appointment.Status,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.CenterID,
		appointment.RegisteredBy,
		now,
	)
	if err != nil {
		if isPQCode(err, pqUniqueViolation) {
			return apperrors.Wrap(apperrors.KindConflict, "doctor already has an appointment at that time", err)
		}
		return translate(err, "create", "appointment")
	}
	appointment.CreatedAt = now
	appointment.UpdatedAt = now
	return nil
}

func (r *appointmentRepository) GetDetail(ctx context.Context, id int64) (*model.AppointmentDetail, error) {
	query := appointmentDetailQuery + ` AND a.id = $1`
	var detail model.AppointmentDetail
	if err := sqlx.GetContext(ctx, r.ext(ctx), &detail, query, id); err != nil {
		return nil, translate(err, "get", "appointment")
	}
	return &detail, nil
}

func (r *appointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.AppointmentDetail, error) {
	query := appointmentDetailQuery
	args := []interface{}{}
	argCount := 1

	if filter.PatientID != nil {
		query += fmt.Sprintf(" AND a.patient_id = $%d", argCount)
		args = append(args, *filter.PatientID)
		argCount++
	}

	if filter.DoctorID != nil {
		query += fmt.Sprintf(" AND a.doctor_id = $%d", argCount)
		args = append(args, *filter.DoctorID)
		argCount++
	}

	if filter.CenterID != nil {
		query += fmt.Sprintf(" AND a.center_id = $%d", argCount)
		args = append(args, *filter.CenterID)
		argCount++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND a.status = $%d", argCount)
		args = append(args, *filter.Status)
		argCount++
	}

	if filter.ScheduledAt != nil {
		query += fmt.Sprintf(" AND a.scheduled_at = $%d", argCount)
		args = append(args, *filter.ScheduledAt)
	}

	query += " ORDER BY a.id"

	details := []*model.AppointmentDetail{}
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &details, query, args...); err != nil {
		return nil, translate(err, "list", "appointments")
	}
	return details, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id int64, from, to model.AppointmentStatus) error {
	query := `UPDATE appointments SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.ext(ctx).ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return translate(err, "update", "appointment")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return translate(err, "update", "appointment")
	}
	if rows == 0 {
		return apperrors.NotFound("appointment")
	}
	return nil
}
