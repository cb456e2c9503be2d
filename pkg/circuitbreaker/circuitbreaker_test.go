package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errDown = errors.New("connection refused")

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "api", MaxFailures: 2, Timeout: time.Minute})

	assert.ErrorIs(t, cb.Execute(func() error { return errDown }), errDown)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return errDown }), errDown)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(Settings{MaxFailures: 2})

	_ = cb.Execute(func() error { return errDown })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errDown })

	assert.Equal(t, StateClosed, cb.State())
}

func TestIgnoredErrorsDoNotCount(t *testing.T) {
	errConflict := errors.New("409")
	cb := NewCircuitBreaker(Settings{
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return !errors.Is(err, errConflict) },
	})

	assert.ErrorIs(t, cb.Execute(func() error { return errConflict }), errConflict)
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenProbe(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(Settings{MaxFailures: 1, Timeout: 10 * time.Second})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errDown })
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(11 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	// a failed probe reopens immediately
	_ = cb.Execute(func() error { return errDown })
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(11 * time.Second)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}
