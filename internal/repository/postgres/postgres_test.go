package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/odontocare-api/internal/model"
	apperrors "github.com/jwalitptl/odontocare-api/pkg/errors"
)

func newMock(t *testing.T) (BaseRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewBaseRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestUserRepositoryCreate(t *testing.T) {
	base, mock := newMock(t)
	repo := NewUserRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("alice", "hash", model.RoleAdmin, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	user := &model.User{Username: "alice", PasswordHash: "hash", Role: model.RoleAdmin}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.Equal(t, int64(1), user.ID)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestUserRepositoryCreateDuplicate(t *testing.T) {
	base, mock := newMock(t)
	repo := NewUserRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "users_username_key"})

	err := repo.Create(context.Background(), &model.User{Username: "alice", Role: model.RoleAdmin})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestUserRepositoryGetByUsernameNotFound(t *testing.T) {
	base, mock := newMock(t)
	repo := NewUserRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserRepositoryCount(t *testing.T) {
	base, mock := newMock(t)
	repo := NewUserRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPatientRepositoryUpdateMissing(t *testing.T) {
	base, mock := newMock(t)
	repo := NewPatientRepository(base)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE patients")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &model.Patient{Base: model.Base{ID: 9}, Name: "Ana"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPatientRepositoryGetByUserID(t *testing.T) {
	base, mock := newMock(t)
	repo := NewPatientRepository(base)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "phone", "status", "user_id", "created_at", "updated_at"}).
		AddRow(4, "Bob", "555-1111", "ACTIVE", 12, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM patients WHERE user_id = $1")).
		WithArgs(int64(12)).
		WillReturnRows(rows)

	patient, err := repo.GetByUserID(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, int64(4), patient.ID)
	assert.Equal(t, model.PatientStatusActive, patient.Status)
	require.NotNil(t, patient.UserID)
	assert.Equal(t, int64(12), *patient.UserID)
}

func TestDoctorRepositoryCreateMissingCenter(t *testing.T) {
	base, mock := newMock(t)
	repo := NewDoctorRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO doctors")).
		WillReturnError(&pq.Error{Code: pqForeignKeyViolation})

	err := repo.Create(context.Background(), &model.Doctor{Name: "Dr. Smith", CenterID: 99})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAppointmentRepositoryCreateSlotTaken(t *testing.T) {
	base, mock := newMock(t)
	repo := NewAppointmentRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "appointments_doctor_slot_key"})

	err := repo.Create(context.Background(), &model.Appointment{DoctorID: 1, ScheduledAt: time.Now()})
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindConflict, appErr.Kind)
	assert.Equal(t, "doctor already has an appointment at that time", appErr.Message)
}

func TestAppointmentRepositoryListFilters(t *testing.T) {
	base, mock := newMock(t)
	repo := NewAppointmentRepository(base)

	patientID := int64(3)
	status := model.AppointmentStatusPending
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "scheduled_at", "reason", "status", "patient_id", "doctor_id", "center_id",
		"registered_by", "created_at", "updated_at", "patient_name", "doctor_name",
		"center_name", "registered_by_username",
	}).AddRow(1, at, "checkup", "PENDING", 3, 1, 1, 2, now, now, "Bob", "Dr. Smith", "ClinicNorth", "bob")

	mock.ExpectQuery(regexp.QuoteMeta("AND a.patient_id = $1 AND a.status = $2 AND a.scheduled_at = $3 ORDER BY a.id")).
		WithArgs(patientID, status, at).
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), model.AppointmentFilter{
		PatientID:   &patientID,
		Status:      &status,
		ScheduledAt: &at,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bob", got[0].PatientName)
	assert.Equal(t, "ClinicNorth", got[0].CenterName)
	assert.Equal(t, int64(2), got[0].RegisteredBy)
}

func TestAppointmentRepositoryListEmpty(t *testing.T) {
	base, mock := newMock(t)
	repo := NewAppointmentRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY a.id")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := repo.List(context.Background(), model.AppointmentFilter{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAppointmentRepositoryUpdateStatus(t *testing.T) {
	base, mock := newMock(t)
	repo := NewAppointmentRepository(base)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET status = $1")).
		WithArgs(model.AppointmentStatusCancelled, sqlmock.AnyArg(), int64(5), model.AppointmentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), 5, model.AppointmentStatusPending, model.AppointmentStatusCancelled))
}

func TestWithTxCommitsAndJoinsNestedCalls(t *testing.T) {
	base, mock := newMock(t)
	users := NewUserRepository(base)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(registrationLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectCommit()

	err := base.WithTx(context.Background(), func(ctx context.Context) error {
		if err := users.LockRegistration(ctx); err != nil {
			return err
		}
		return base.WithTx(ctx, func(ctx context.Context) error {
			_, err := users.Count(ctx)
			return err
		})
	})
	require.NoError(t, err)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	base, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := base.WithTx(context.Background(), func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := LoadMigrations(migrationFiles)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Contains(t, migrations[0].SQL, "appointments_doctor_slot_key")
}
