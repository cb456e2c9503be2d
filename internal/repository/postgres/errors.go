package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	apperrors "github.com/jwalitptl/odontocare-api/pkg/errors"
)

const (
	pqForeignKeyViolation pq.ErrorCode = "23503"
	pqUniqueViolation     pq.ErrorCode = "23505"
)

func isPQCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

// translate maps driver errors onto application error kinds. Anything it does
// not recognise is wrapped as a plain error and surfaces as INTERNAL.
func translate(err error, action, resource string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apperrors.NotFound(resource)
	case isPQCode(err, pqUniqueViolation):
		return apperrors.Wrap(apperrors.KindConflict, resource+" already exists", err)
	case isPQCode(err, pqForeignKeyViolation):
		return apperrors.Wrap(apperrors.KindNotFound, "referenced record not found", err)
	default:
		return fmt.Errorf("failed to %s %s: %w", action, resource, err)
	}
}
