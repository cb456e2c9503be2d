package appointment

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/odontocare-api/internal/model"
	"github.com/jwalitptl/odontocare-api/internal/repository"
	"github.com/jwalitptl/odontocare-api/internal/repository/repotest"
	apperrors "github.com/jwalitptl/odontocare-api/pkg/errors"
	"github.com/jwalitptl/odontocare-api/pkg/metrics"
)

type fixture struct {
	svc     *Service
	store   *repository.Store
	metrics *metrics.Metrics

	admin, desk, doc, bob, ana, stranger *model.Caller

	north, south   *model.Center
	smith, jones   *model.Doctor
	bobRec, anaRec *model.Patient
	inactive       *model.Patient
}

func int64p(v int64) *int64 { return &v }

func strp(v string) *string { return &v }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repotest.New().Repositories()
	m := metrics.New("test", nil)
	f := &fixture{svc: NewService(store, m), store: store, metrics: m}

	user := func(name string, role model.Role) *model.Caller {
		u := &model.User{Username: name, PasswordHash: "x", Role: role}
		require.NoError(t, store.Users.Create(ctx, u))
		return &model.Caller{UserID: u.ID, Username: u.Username, Role: u.Role}
	}
	f.admin = user("alice", model.RoleAdmin)
	f.desk = user("desk", model.RoleReceptionist)
	f.doc = user("drsmith", model.RoleDoctor)
	f.bob = user("bob", model.RolePatient)
	f.ana = user("ana", model.RolePatient)
	f.stranger = user("nobody", model.RolePatient)

	f.north = &model.Center{Name: "ClinicNorth", Address: "123 Main"}
	require.NoError(t, store.Centers.Create(ctx, f.north))
	f.south = &model.Center{Name: "ClinicSouth", Address: "9 Side St"}
	require.NoError(t, store.Centers.Create(ctx, f.south))

	f.smith = &model.Doctor{Name: "Dr. Smith", Specialty: "Ortho", CenterID: f.north.ID, UserID: &f.doc.UserID}
	require.NoError(t, store.Doctors.Create(ctx, f.smith))
	f.jones = &model.Doctor{Name: "Dr. Jones", Specialty: "Endo", CenterID: f.north.ID}
	require.NoError(t, store.Doctors.Create(ctx, f.jones))

	f.bobRec = &model.Patient{Name: "Bob", Status: model.PatientStatusActive, UserID: &f.bob.UserID}
	require.NoError(t, store.Patients.Create(ctx, f.bobRec))
	f.anaRec = &model.Patient{Name: "Ana", Status: model.PatientStatusActive, UserID: &f.ana.UserID}
	require.NoError(t, store.Patients.Create(ctx, f.anaRec))
	f.inactive = &model.Patient{Name: "Old", Status: model.PatientStatusInactive}
	require.NoError(t, store.Patients.Create(ctx, f.inactive))

	return f
}

func (f *fixture) book(t *testing.T, caller *model.Caller, patientID int64, date string) *model.AppointmentDetail {
	t.Helper()
	detail, err := f.svc.CreateAppointment(context.Background(), caller, model.CreateAppointmentRequest{
		DoctorID:  f.smith.ID,
		CenterID:  f.north.ID,
		Date:      date,
		Reason:    "checkup",
		PatientID: int64p(patientID),
	})
	require.NoError(t, err)
	return detail
}

func TestCreateAppointmentAsPatient(t *testing.T) {
	f := newFixture(t)

	detail, err := f.svc.CreateAppointment(context.Background(), f.bob, model.CreateAppointmentRequest{
		DoctorID:  f.smith.ID,
		CenterID:  f.north.ID,
		Date:      "2025-06-01T10:00:00",
		Reason:    "checkup",
		PatientID: int64p(f.anaRec.ID),
	})
	require.NoError(t, err)

	assert.Equal(t, f.bobRec.ID, detail.PatientID, "patients always book for themselves")
	assert.Equal(t, model.AppointmentStatusPending, detail.Status)
	assert.Equal(t, f.bob.UserID, detail.RegisteredBy)
	assert.Equal(t, "Bob", detail.PatientName)
	assert.Equal(t, "Dr. Smith", detail.DoctorName)
	assert.Equal(t, "ClinicNorth", detail.CenterName)
	assert.Equal(t, "2025-06-01T10:00:00", detail.Response().Date)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.AppointmentsCreated))
}

func TestCreateAppointmentAsDoctor(t *testing.T) {
	f := newFixture(t)

	detail, err := f.svc.CreateAppointment(context.Background(), f.doc, model.CreateAppointmentRequest{
		DoctorID:  f.smith.ID,
		CenterID:  f.north.ID,
		Date:      "2025-06-01T09:30:00",
		PatientID: int64p(f.anaRec.ID),
	})
	require.NoError(t, err)

	assert.Equal(t, f.smith.ID, detail.DoctorID)
	assert.Equal(t, f.anaRec.ID, detail.PatientID)
	assert.Equal(t, f.doc.UserID, detail.RegisteredBy)
	assert.Equal(t, model.AppointmentStatusPending, detail.Status)
}

func TestCreateAppointmentStatusOverride(t *testing.T) {
	f := newFixture(t)

	detail, err := f.svc.CreateAppointment(context.Background(), f.desk, model.CreateAppointmentRequest{
		DoctorID: f.smith.ID, CenterID: f.north.ID, Date: "2025-06-01T11:00:00",
		PatientID: int64p(f.bobRec.ID), Status: strp("CANCELLED"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, detail.Status)
}

func TestCreateAppointmentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	valid := func() model.CreateAppointmentRequest {
		return model.CreateAppointmentRequest{
			DoctorID:  f.smith.ID,
			CenterID:  f.north.ID,
			Date:      "2025-06-01T10:00:00",
			PatientID: int64p(f.bobRec.ID),
		}
	}

	tests := []struct {
		name   string
		caller *model.Caller
		mutate func(*model.CreateAppointmentRequest)
		want   error
	}{
		{"doctor books another doctor", f.doc, func(r *model.CreateAppointmentRequest) { r.DoctorID = f.jones.ID }, apperrors.ErrForbidden},
		{"doctor books unknown doctor", f.doc, func(r *model.CreateAppointmentRequest) { r.DoctorID = 999 }, apperrors.ErrForbidden},
		{"doctor must name patient", f.doc, func(r *model.CreateAppointmentRequest) { r.PatientID = nil }, apperrors.ErrInvalidInput},
		{"doctor without record", &model.Caller{UserID: f.stranger.UserID, Role: model.RoleDoctor}, func(*model.CreateAppointmentRequest) {}, apperrors.ErrForbidden},
		{"patient without record", f.stranger, func(*model.CreateAppointmentRequest) {}, apperrors.ErrInvalidInput},
		{"missing patient", f.desk, func(r *model.CreateAppointmentRequest) { r.PatientID = nil }, apperrors.ErrInvalidInput},
		{"bad date", f.desk, func(r *model.CreateAppointmentRequest) { r.Date = "01/06/2025" }, apperrors.ErrInvalidInput},
		{"bad status", f.desk, func(r *model.CreateAppointmentRequest) { r.Status = strp("DONE") }, apperrors.ErrInvalidInput},
		{"unknown doctor", f.desk, func(r *model.CreateAppointmentRequest) { r.DoctorID = 999 }, apperrors.ErrNotFound},
		{"unknown center", f.desk, func(r *model.CreateAppointmentRequest) { r.CenterID = 999 }, apperrors.ErrNotFound},
		{"unknown patient", f.desk, func(r *model.CreateAppointmentRequest) { r.PatientID = int64p(999) }, apperrors.ErrNotFound},
		{"inactive patient", f.desk, func(r *model.CreateAppointmentRequest) { r.PatientID = int64p(f.inactive.ID) }, apperrors.ErrInvalidInput},
		{"doctor at other center", f.desk, func(r *model.CreateAppointmentRequest) { r.CenterID = f.south.ID }, apperrors.ErrInvalidInput},
		{"missing patient beats unknown doctor", f.admin, func(r *model.CreateAppointmentRequest) {
			r.PatientID = nil
			r.DoctorID = 999
		}, apperrors.ErrInvalidInput},
		{"bad date beats unknown doctor", f.admin, func(r *model.CreateAppointmentRequest) {
			r.Date = "soon"
			r.DoctorID = 999
		}, apperrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			_, err := f.svc.CreateAppointment(ctx, tt.caller, req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	all, err := f.store.Appointments.List(ctx, model.AppointmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, all, "failed validation must not write")
}

func TestCreateAppointmentDoubleBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.book(t, f.bob, f.bobRec.ID, "2025-06-01T10:00:00")
	_, err := f.svc.CancelAppointment(ctx, f.admin, first.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateAppointment(ctx, f.admin, model.CreateAppointmentRequest{
		DoctorID: f.smith.ID, CenterID: f.north.ID, Date: "2025-06-01T10:00:00", PatientID: int64p(f.anaRec.ID),
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict, "cancelled slots stay blocked")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.BookingConflicts))

	_, err = f.svc.CreateAppointment(ctx, f.admin, model.CreateAppointmentRequest{
		DoctorID: f.smith.ID, CenterID: f.north.ID, Date: "2025-06-01T12:00:00+02:00", PatientID: int64p(f.anaRec.ID),
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict, "offsets are normalized to UTC")
}

func TestCreateAppointmentConcurrentSameSlot(t *testing.T) {
	f := newFixture(t)
	const contenders = 20

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.CreateAppointment(context.Background(), f.desk, model.CreateAppointmentRequest{
				DoctorID:  f.smith.ID,
				CenterID:  f.north.ID,
				Date:      "2025-07-01T09:00:00",
				Reason:    fmt.Sprintf("attempt %d", i),
				PatientID: int64p(f.bobRec.ID),
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.KindOf(err) == apperrors.KindConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, contenders-1, conflicts)
}

func TestListAppointmentsRoleScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bobAppt := f.book(t, f.desk, f.bobRec.ID, "2025-06-01T10:00:00")
	anaAppt := f.book(t, f.desk, f.anaRec.ID, "2025-06-01T11:00:00")

	ids := func(details []*model.AppointmentDetail) []int64 {
		out := make([]int64, 0, len(details))
		for _, d := range details {
			out = append(out, d.ID)
		}
		return out
	}

	t.Run("patient sees only own whatever the filters", func(t *testing.T) {
		queries := []model.AppointmentQuery{
			{},
			{PatientID: fmt.Sprint(f.anaRec.ID)},
			{DoctorID: fmt.Sprint(f.smith.ID), Status: "PENDING"},
			{Date: "2025-06-01T11:00:00"},
			{PatientID: "not-a-number"},
		}
		for _, q := range queries {
			got, err := f.svc.ListAppointments(ctx, f.bob, q)
			require.NoError(t, err)
			assert.Equal(t, []int64{bobAppt.ID}, ids(got), "%+v", q)
		}
	})

	t.Run("patient without record gets empty list", func(t *testing.T) {
		got, err := f.svc.ListAppointments(ctx, f.stranger, model.AppointmentQuery{})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("doctor sees own", func(t *testing.T) {
		got, err := f.svc.ListAppointments(ctx, f.doc, model.AppointmentQuery{PatientID: fmt.Sprint(f.anaRec.ID)})
		require.NoError(t, err)
		assert.Equal(t, []int64{bobAppt.ID, anaAppt.ID}, ids(got))
	})

	t.Run("receptionist honors only the date", func(t *testing.T) {
		got, err := f.svc.ListAppointments(ctx, f.desk, model.AppointmentQuery{PatientID: fmt.Sprint(f.anaRec.ID)})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = f.svc.ListAppointments(ctx, f.desk, model.AppointmentQuery{Date: "2025-06-01T11:00:00"})
		require.NoError(t, err)
		assert.Equal(t, []int64{anaAppt.ID}, ids(got))

		_, err = f.svc.ListAppointments(ctx, f.desk, model.AppointmentQuery{Date: "garbage"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("admin combines filters", func(t *testing.T) {
		got, err := f.svc.ListAppointments(ctx, f.admin, model.AppointmentQuery{
			PatientID: fmt.Sprint(f.anaRec.ID),
			Status:    "PENDING",
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{anaAppt.ID}, ids(got))

		got, err = f.svc.ListAppointments(ctx, f.admin, model.AppointmentQuery{CenterID: fmt.Sprint(f.south.ID)})
		require.NoError(t, err)
		assert.Empty(t, got)

		_, err = f.svc.ListAppointments(ctx, f.admin, model.AppointmentQuery{DoctorID: "abc"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

		_, err = f.svc.ListAppointments(ctx, f.admin, model.AppointmentQuery{Status: "DONE"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestGetAppointmentScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt := f.book(t, f.desk, f.bobRec.ID, "2025-06-01T10:00:00")

	got, err := f.svc.GetAppointment(ctx, f.bob, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "desk", got.RegisteredByUsername)

	_, err = f.svc.GetAppointment(ctx, f.ana, appt.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.GetAppointment(ctx, f.doc, appt.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetAppointment(ctx, f.admin, 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCancelAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt := f.book(t, f.bob, f.bobRec.ID, "2025-06-01T10:00:00")

	_, err := f.svc.CancelAppointment(ctx, f.bob, appt.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = f.svc.CancelAppointment(ctx, f.doc, appt.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	cancelled, err := f.svc.CancelAppointment(ctx, f.desk, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)

	stored, err := f.store.Appointments.GetDetail(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, stored.Status)

	_, err = f.svc.CancelAppointment(ctx, f.admin, appt.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "CANCELLED is terminal")

	_, err = f.svc.CancelAppointment(ctx, f.admin, 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
