package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/odontocare-api/internal/model"
	"github.com/jwalitptl/odontocare-api/internal/repository"
)

// registrationLockKey is the advisory lock id taken while registering users.
const registrationLockKey int64 = 0x0d0c_a7e0

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (username, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id
	`
	now := time.Now().UTC()
	err := sqlx.GetContext(ctx, r.ext(ctx), &user.ID, query,
		user.Username,
		user.PasswordHash,
		user.Role,
		now,
	)
	if err != nil {
		return translate(err, "create", "user")
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *userRepository) Get(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT id, username, password_hash, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user model.User
	if err := sqlx.GetContext(ctx, r.ext(ctx), &user, query, id); err != nil {
		return nil, translate(err, "get", "user")
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `
		SELECT id, username, password_hash, role, created_at, updated_at
		FROM users
		WHERE username = $1
	`
	var user model.User
	if err := sqlx.GetContext(ctx, r.ext(ctx), &user, query, username); err != nil {
		return nil, translate(err, "get", "user")
	}
	return &user, nil
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.ext(ctx), &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, translate(err, "count", "users")
	}
	return n, nil
}

// LockRegistration takes a transaction-scoped advisory lock; it is released
// on commit or rollback. Outside a transaction the lock would be dropped
// immediately, so callers run it inside WithTx.
func (r *userRepository) LockRegistration(ctx context.Context) error {
	if _, err := r.ext(ctx).ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, registrationLockKey); err != nil {
		return translate(err, "lock", "registration")
	}
	return nil
}
