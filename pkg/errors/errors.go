package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error. Kinds are stable and exposed to
// API clients as machine-readable codes.
type Kind string

const (
	KindInvalidInput Kind = "INVALID_INPUT"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindNotFound     Kind = "NOT_FOUND"
	KindConflict     Kind = "CONFLICT"
	KindInternal     Kind = "INTERNAL"
)

// AppError represents an application error
type AppError struct {
	Kind    Kind   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError of the same kind, so callers can
// write errors.Is(err, apperrors.ErrConflict).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels usable with errors.Is.
var (
	ErrInvalidInput = &AppError{Kind: KindInvalidInput}
	ErrUnauthorized = &AppError{Kind: KindUnauthorized}
	ErrForbidden    = &AppError{Kind: KindForbidden}
	ErrNotFound     = &AppError{Kind: KindNotFound}
	ErrConflict     = &AppError{Kind: KindConflict}
)

func newError(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func InvalidInput(message string) *AppError {
	return newError(KindInvalidInput, message, nil)
}

func Unauthorized(message string) *AppError {
	return newError(KindUnauthorized, message, nil)
}

func Forbidden(message string) *AppError {
	return newError(KindForbidden, message, nil)
}

// NotFound builds the "<resource> not found" error.
func NotFound(resource string) *AppError {
	return newError(KindNotFound, fmt.Sprintf("%s not found", resource), nil)
}

func Conflict(message string) *AppError {
	return newError(KindConflict, message, nil)
}

// Internal hides err behind a generic message. The cause stays reachable
// through Unwrap for logging.
func Internal(err error) *AppError {
	return newError(KindInternal, "internal server error", err)
}

// Wrap attaches a cause to an error of the given kind.
func Wrap(kind Kind, message string, err error) *AppError {
	return newError(kind, message, err)
}

// As returns the AppError in err's chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, defaulting to KindInternal for errors that
// did not originate from this package.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error kind to the response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
