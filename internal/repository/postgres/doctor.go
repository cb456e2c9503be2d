package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/odontocare-api/internal/model"
	"github.com/jwalitptl/odontocare-api/internal/repository"
)

const doctorColumns = `id, name, specialty, center_id, user_id, created_at, updated_at`

type doctorRepository struct {
	BaseRepository
}

func NewDoctorRepository(base BaseRepository) repository.DoctorRepository {
	return &doctorRepository{base}
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (name, specialty, center_id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id
	`
	now := time.Now().UTC()
	err := sqlx.GetContext(ctx, r.ext(ctx), &doctor.ID, query,
		doctor.Name,
		doctor.Specialty,
		doctor.CenterID,
		doctor.UserID,
		now,
	)
	if err != nil {
		return translate(err, "create", "doctor")
	}
	doctor.CreatedAt = now
	doctor.UpdatedAt = now
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id int64) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`
	var doctor model.Doctor
	if err := sqlx.GetContext(ctx, r.ext(ctx), &doctor, query, id); err != nil {
		return nil, translate(err, "get", "doctor")
	}
	return &doctor, nil
}

func (r *doctorRepository) GetByUserID(ctx context.Context, userID int64) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE user_id = $1`
	var doctor model.Doctor
	if err := sqlx.GetContext(ctx, r.ext(ctx), &doctor, query, userID); err != nil {
		return nil, translate(err, "get", "doctor")
	}
	return &doctor, nil
}
