package appointment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/odontocare-api/internal/model"
	"github.com/jwalitptl/odontocare-api/internal/rbac"
	"github.com/jwalitptl/odontocare-api/internal/repository"
	apperrors "github.com/jwalitptl/odontocare-api/pkg/errors"
	"github.com/jwalitptl/odontocare-api/pkg/metrics"
)

type Service struct {
	store   *repository.Store
	metrics *metrics.Metrics
}

func NewService(store *repository.Store, m *metrics.Metrics) *Service {
	return &Service{store: store, metrics: m}
}

// CreateAppointment books a slot. Doctors may only book on their own
// schedule. Checks run in a fixed order so the first failing rule decides
// the error: patient resolution, timestamp, doctor and
// center existence, patient existence, patient status, center membership,
// slot availability.
func (s *Service) CreateAppointment(ctx context.Context, caller *model.Caller, req model.CreateAppointmentRequest) (*model.AppointmentDetail, error) {
	if err := rbac.Authorize(caller, rbac.ActionCreateAppointment); err != nil {
		return nil, err
	}

	if caller.Is(model.RoleDoctor) {
		own, err := s.store.Doctors.GetByUserID(ctx, caller.UserID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.Forbidden("caller has no doctor record")
			}
			return nil, err
		}
		if own.ID != req.DoctorID {
			return nil, apperrors.Forbidden("doctors may only book their own schedule")
		}
	}

	var patient *model.Patient
	if caller.Is(model.RolePatient) {
		p, err := s.store.Patients.GetByUserID(ctx, caller.UserID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.InvalidInput("caller has no patient record")
			}
			return nil, err
		}
		patient = p
	} else if req.PatientID == nil || *req.PatientID <= 0 {
		return nil, apperrors.InvalidInput("paciente_id is required")
	}

	scheduledAt, err := model.ParseTimestamp(req.Date)
	if err != nil {
		return nil, apperrors.InvalidInput("fecha must be an ISO-8601 date or date-time")
	}

	status := model.AppointmentStatusPending
	if req.Status != nil {
		st, ok := model.ParseAppointmentStatus(*req.Status)
		if !ok {
			return nil, apperrors.InvalidInput("estado must be PENDING or CANCELLED")
		}
		status = st
	}

	doctor, err := s.store.Doctors.Get(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	center, err := s.store.Centers.Get(ctx, req.CenterID)
	if err != nil {
		return nil, err
	}

	if patient == nil {
		if patient, err = s.store.Patients.Get(ctx, *req.PatientID); err != nil {
			return nil, err
		}
	}

	if patient.Status != model.PatientStatusActive {
		return nil, apperrors.InvalidInput("patient is not active")
	}
	if doctor.CenterID != center.ID {
		return nil, apperrors.InvalidInput("doctor does not belong to this center")
	}

	taken, err := s.store.Appointments.List(ctx, model.AppointmentFilter{
		DoctorID:    &doctor.ID,
		ScheduledAt: &scheduledAt,
	})
	if err != nil {
		return nil, err
	}
	if len(taken) > 0 {
		s.metrics.BookingConflicts.Inc()
		return nil, apperrors.Conflict("doctor already has an appointment at that time")
	}

	appointment := &model.Appointment{
		ScheduledAt:  scheduledAt,
		Reason:       req.Reason,
		Status:       status,
		PatientID:    patient.ID,
		DoctorID:     doctor.ID,
		CenterID:     center.ID,
		RegisteredBy: caller.UserID,
	}
	if err := s.store.Appointments.Create(ctx, appointment); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			s.metrics.BookingConflicts.Inc()
		}
		return nil, err
	}
	s.metrics.AppointmentsCreated.Inc()

	zerolog.Ctx(ctx).Info().
		Int64("appointment_id", appointment.ID).
		Int64("doctor_id", doctor.ID).
		Time("scheduled_at", scheduledAt).
		Msg("Appointment created")

	return &model.AppointmentDetail{
		Appointment:          *appointment,
		PatientName:          patient.Name,
		DoctorName:           doctor.Name,
		CenterName:           center.Name,
		RegisteredByUsername: caller.Username,
	}, nil
}

// scope is the filter a role is confined to. ok is false when the caller
// has no linked record and therefore sees nothing.
func (s *Service) scope(ctx context.Context, caller *model.Caller) (filter model.AppointmentFilter, ok bool, err error) {
	switch caller.Role {
	case model.RolePatient:
		p, err := s.store.Patients.GetByUserID(ctx, caller.UserID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return filter, false, nil
			}
			return filter, false, err
		}
		filter.PatientID = &p.ID
	case model.RoleDoctor:
		d, err := s.store.Doctors.GetByUserID(ctx, caller.UserID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return filter, false, nil
			}
			return filter, false, err
		}
		filter.DoctorID = &d.ID
	}
	return filter, true, nil
}

func parseID(name, raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("%s must be an integer", name))
	}
	return &id, nil
}

func parseDate(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := model.ParseTimestamp(raw)
	if err != nil {
		return nil, apperrors.InvalidInput("fecha must be an ISO-8601 date or date-time")
	}
	return &t, nil
}

// honoredFilters parses only the query filters the caller's role may use.
// Patients and doctors get none; receptionists only the date.
func honoredFilters(role model.Role, q model.AppointmentQuery) (model.AppointmentFilter, error) {
	var (
		filter model.AppointmentFilter
		err    error
	)

	switch role {
	case model.RoleReceptionist:
		if filter.ScheduledAt, err = parseDate(q.Date); err != nil {
			return filter, err
		}
	case model.RoleAdmin:
		if filter.ScheduledAt, err = parseDate(q.Date); err != nil {
			return filter, err
		}
		if filter.PatientID, err = parseID("paciente_id", q.PatientID); err != nil {
			return filter, err
		}
		if filter.DoctorID, err = parseID("doctor_id", q.DoctorID); err != nil {
			return filter, err
		}
		if filter.CenterID, err = parseID("centro_id", q.CenterID); err != nil {
			return filter, err
		}
		if q.Status != "" {
			st, ok := model.ParseAppointmentStatus(q.Status)
			if !ok {
				return filter, apperrors.InvalidInput("estado must be PENDING or CANCELLED")
			}
			filter.Status = &st
		}
	}
	return filter, nil
}

// ListAppointments returns the appointments visible to caller that match the
// filters its role honors.
func (s *Service) ListAppointments(ctx context.Context, caller *model.Caller, q model.AppointmentQuery) ([]*model.AppointmentDetail, error) {
	if err := rbac.Authorize(caller, rbac.ActionListAppointments); err != nil {
		return nil, err
	}

	filter, err := honoredFilters(caller.Role, q)
	if err != nil {
		return nil, err
	}

	scoped, ok, err := s.scope(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []*model.AppointmentDetail{}, nil
	}
	if scoped.PatientID != nil {
		filter.PatientID = scoped.PatientID
	}
	if scoped.DoctorID != nil {
		filter.DoctorID = scoped.DoctorID
	}

	return s.store.Appointments.List(ctx, filter)
}

// GetAppointment returns one appointment. Appointments outside the caller's
// scope are reported as not found.
func (s *Service) GetAppointment(ctx context.Context, caller *model.Caller, id int64) (*model.AppointmentDetail, error) {
	if err := rbac.Authorize(caller, rbac.ActionViewAppointment); err != nil {
		return nil, err
	}

	detail, err := s.store.Appointments.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}

	scoped, ok, err := s.scope(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !ok ||
		(scoped.PatientID != nil && *scoped.PatientID != detail.PatientID) ||
		(scoped.DoctorID != nil && *scoped.DoctorID != detail.DoctorID) {
		return nil, apperrors.NotFound("appointment")
	}
	return detail, nil
}

// CancelAppointment moves a PENDING appointment to CANCELLED. CANCELLED is
// terminal; cancelling again is rejected.
func (s *Service) CancelAppointment(ctx context.Context, caller *model.Caller, id int64) (*model.AppointmentDetail, error) {
	if err := rbac.Authorize(caller, rbac.ActionCancelAppointment); err != nil {
		return nil, err
	}

	var detail *model.AppointmentDetail
	err := s.store.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		detail, err = s.store.Appointments.GetDetail(ctx, id)
		if err != nil {
			return err
		}
		if detail.Status == model.AppointmentStatusCancelled {
			return apperrors.InvalidInput("appointment is already cancelled")
		}

		err = s.store.Appointments.UpdateStatus(ctx, id, model.AppointmentStatusPending, model.AppointmentStatusCancelled)
		if errors.Is(err, apperrors.ErrNotFound) {
			// cancelled by a concurrent request since the read
			return apperrors.InvalidInput("appointment is already cancelled")
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	detail.Status = model.AppointmentStatusCancelled
	s.metrics.AppointmentsCancelled.Inc()
	zerolog.Ctx(ctx).Info().Int64("appointment_id", id).Msg("Appointment cancelled")
	return detail, nil
}
