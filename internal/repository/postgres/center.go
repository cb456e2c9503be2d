package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/odontocare-api/internal/model"
	"github.com/jwalitptl/odontocare-api/internal/repository"
)

type centerRepository struct {
	BaseRepository
}

func NewCenterRepository(base BaseRepository) repository.CenterRepository {
	return &centerRepository{base}
}

func (r *centerRepository) Create(ctx context.Context, center *model.Center) error {
	query := `
		INSERT INTO centers (name, address, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING id
	`
	now := time.Now().UTC()
	if err := sqlx.GetContext(ctx, r.ext(ctx), &center.ID, query, center.Name, center.Address, now); err != nil {
		return translate(err, "create", "center")
	}
	center.CreatedAt = now
	center.UpdatedAt = now
	return nil
}

func (r *centerRepository) Get(ctx context.Context, id int64) (*model.Center, error) {
	query := `SELECT id, name, address, created_at, updated_at FROM centers WHERE id = $1`
	var center model.Center
	if err := sqlx.GetContext(ctx, r.ext(ctx), &center, query, id); err != nil {
		return nil, translate(err, "get", "center")
	}
	return &center, nil
}

func (r *centerRepository) GetByName(ctx context.Context, name string) (*model.Center, error) {
	query := `SELECT id, name, address, created_at, updated_at FROM centers WHERE name = $1`
	var center model.Center
	if err := sqlx.GetContext(ctx, r.ext(ctx), &center, query, name); err != nil {
		return nil, translate(err, "get", "center")
	}
	return &center, nil
}
