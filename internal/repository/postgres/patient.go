package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/odontocare-api/internal/model"
	"github.com/jwalitptl/odontocare-api/internal/repository"
	apperrors "github.com/jwalitptl/odontocare-api/pkg/errors"
)

const patientColumns = `id, name, phone, status, user_id, created_at, updated_at`

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (name, phone, status, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id
	`
	now := time.Now().UTC()
	err := sqlx.GetContext(ctx, r.ext(ctx), &patient.ID, query,
		patient.Name,
		patient.Phone,
		patient.Status,
		patient.UserID,
		now,
	)
	if err != nil {
		return translate(err, "create", "patient")
	}
	patient.CreatedAt = now
	patient.UpdatedAt = now
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id int64) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	var patient model.Patient
	if err := sqlx.GetContext(ctx, r.ext(ctx), &patient, query, id); err != nil {
		return nil, translate(err, "get", "patient")
	}
	return &patient, nil
}

func (r *patientRepository) GetByUserID(ctx context.Context, userID int64) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE user_id = $1`
	var patient model.Patient
	if err := sqlx.GetContext(ctx, r.ext(ctx), &patient, query, userID); err != nil {
		return nil, translate(err, "get", "patient")
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET name = $1, phone = $2, status = $3, user_id = $4, updated_at = $5
		WHERE id = $6
	`
	now := time.Now().UTC()
	result, err := r.ext(ctx).ExecContext(ctx, query,
		patient.Name,
		patient.Phone,
		patient.Status,
		patient.UserID,
		now,
		patient.ID,
	)
	if err != nil {
		return translate(err, "update", "patient")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return translate(err, "update", "patient")
	}
	if rows == 0 {
		return apperrors.NotFound("patient")
	}
	patient.UpdatedAt = now
	return nil
}

// Delete removes the patient; its appointments go with it through the
// foreign key cascade.
func (r *patientRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.ext(ctx).ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete", "patient")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return translate(err, "delete", "patient")
	}
	if rows == 0 {
		return apperrors.NotFound("patient")
	}
	return nil
}

func (r *patientRepository) List(ctx context.Context) ([]*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients ORDER BY id`
	patients := []*model.Patient{}
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &patients, query); err != nil {
		return nil, translate(err, "list", "patients")
	}
	return patients, nil
}
