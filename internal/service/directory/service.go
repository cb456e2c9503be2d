// Package directory manages the reference records bookings point at:
// patients, centers, doctors and staff accounts.
package directory

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/odontocare-api/internal/model"
	"github.com/jwalitptl/odontocare-api/internal/repository"
	apperrors "github.com/jwalitptl/odontocare-api/pkg/errors"
	"github.com/jwalitptl/odontocare-api/pkg/security"
)

type Service struct {
	store  *repository.Store
	hasher security.PasswordHasher
}

func NewService(store *repository.Store, hasher security.PasswordHasher) *Service {
	return &Service{store: store, hasher: hasher}
}

func (s *Service) hashUser(username, password string, role model.Role) (*model.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.User{Username: username, PasswordHash: hash, Role: role}, nil
}

// CreateUser creates a staff account (admin or receptionist).
func (s *Service) CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	role, ok := model.ParseRole(req.Role)
	if !ok || (role != model.RoleAdmin && role != model.RoleReceptionist) {
		return nil, apperrors.InvalidInput("role must be admin or receptionist")
	}

	user, err := s.hashUser(req.Username, req.Password, role)
	if err != nil {
		return nil, err
	}
	if err := s.store.Users.Create(ctx, user); err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Int64("user_id", user.ID).Str("role", string(role)).Msg("Staff user created")
	return user, nil
}

// CreatePatient creates the patient and its login account in one transaction.
func (s *Service) CreatePatient(ctx context.Context, req model.CreatePatientRequest) (*model.Patient, error) {
	status := model.PatientStatusActive
	if req.Status != "" {
		status = model.PatientStatus(req.Status)
		if !status.Valid() {
			return nil, apperrors.InvalidInput("estado must be ACTIVE or INACTIVE")
		}
	}

	user, err := s.hashUser(req.Username, req.Password, model.RolePatient)
	if err != nil {
		return nil, err
	}

	patient := &model.Patient{Name: req.Name, Phone: req.Phone, Status: status}
	err = s.store.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.Users.Create(ctx, user); err != nil {
			return err
		}
		patient.UserID = &user.ID
		return s.store.Patients.Create(ctx, patient)
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Int64("patient_id", patient.ID).Msg("Patient created")
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*model.Patient, error) {
	return s.store.Patients.Get(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context) ([]*model.Patient, error) {
	return s.store.Patients.List(ctx)
}

// UpdatePatient applies a partial update. A new user link must point at an
// existing patient account that no other patient or doctor uses.
func (s *Service) UpdatePatient(ctx context.Context, id int64, req model.UpdatePatientRequest) (*model.Patient, error) {
	var patient *model.Patient
	err := s.store.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		patient, err = s.store.Patients.Get(ctx, id)
		if err != nil {
			return err
		}

		if req.Name != nil {
			patient.Name = *req.Name
		}
		if req.Phone != nil {
			patient.Phone = *req.Phone
		}
		if req.Status != nil {
			status := model.PatientStatus(*req.Status)
			if !status.Valid() {
				return apperrors.InvalidInput("estado must be ACTIVE or INACTIVE")
			}
			patient.Status = status
		}
		if req.UserID != nil && (patient.UserID == nil || *patient.UserID != *req.UserID) {
			if err := s.checkLinkable(ctx, *req.UserID); err != nil {
				return err
			}
			patient.UserID = req.UserID
		}

		return s.store.Patients.Update(ctx, patient)
	})
	if err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) checkLinkable(ctx context.Context, userID int64) error {
	user, err := s.store.Users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user.Role != model.RolePatient {
		return apperrors.InvalidInput("linked user must have role patient")
	}

	if _, err := s.store.Patients.GetByUserID(ctx, userID); err == nil {
		return apperrors.Conflict("user is already linked to a patient")
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	if _, err := s.store.Doctors.GetByUserID(ctx, userID); err == nil {
		return apperrors.Conflict("user is already linked to a doctor")
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	return nil
}

// DeletePatient removes the patient together with its appointments.
func (s *Service) DeletePatient(ctx context.Context, id int64) error {
	if err := s.store.Patients.Delete(ctx, id); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Int64("patient_id", id).Msg("Patient deleted")
	return nil
}

// CreateCenter creates a center with a unique name. When the name is taken
// the existing center is returned together with a CONFLICT error.
func (s *Service) CreateCenter(ctx context.Context, req model.CreateCenterRequest) (*model.Center, error) {
	existing, err := s.store.Centers.GetByName(ctx, req.Name)
	switch {
	case err == nil:
		return existing, apperrors.Conflict("center already exists")
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}

	center := &model.Center{Name: req.Name, Address: req.Address}
	if err := s.store.Centers.Create(ctx, center); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			if existing, getErr := s.store.Centers.GetByName(ctx, req.Name); getErr == nil {
				return existing, err
			}
		}
		return nil, err
	}
	return center, nil
}

func (s *Service) GetCenter(ctx context.Context, id int64) (*model.Center, error) {
	return s.store.Centers.Get(ctx, id)
}

// CreateDoctor creates the doctor and its login account in one transaction.
// The center must exist.
func (s *Service) CreateDoctor(ctx context.Context, req model.CreateDoctorRequest) (*model.Doctor, error) {
	user, err := s.hashUser(req.Username, req.Password, model.RoleDoctor)
	if err != nil {
		return nil, err
	}

	doctor := &model.Doctor{Name: req.Name, Specialty: req.Specialty, CenterID: req.CenterID}
	err = s.store.Tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.Users.GetByUsername(ctx, req.Username); err == nil {
			return apperrors.Conflict("username already exists")
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if _, err := s.store.Centers.Get(ctx, req.CenterID); err != nil {
			return err
		}
		if err := s.store.Users.Create(ctx, user); err != nil {
			return err
		}
		doctor.UserID = &user.ID
		return s.store.Doctors.Create(ctx, doctor)
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Int64("doctor_id", doctor.ID).Int64("center_id", doctor.CenterID).Msg("Doctor created")
	return doctor, nil
}
