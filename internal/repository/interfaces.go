package repository

import (
	"context"

	"github.com/jwalitptl/odontocare-api/internal/model"
)

// All repository interfaces in one file.
//
// Lookups that find nothing return an error of kind NOT_FOUND and uniqueness
// violations return CONFLICT (see pkg/errors).
type (
	// TxManager runs fn in a single transaction. Repository calls made with
	// the context passed to fn join that transaction.
	TxManager interface {
		WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id int64) (*model.User, error)
		GetByUsername(ctx context.Context, username string) (*model.User, error)
		Count(ctx context.Context) (int, error)
		// LockRegistration serializes registrations for the rest of the
		// current transaction.
		LockRegistration(ctx context.Context) error
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id int64) (*model.Patient, error)
		GetByUserID(ctx context.Context, userID int64) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id int64) error
		List(ctx context.Context) ([]*model.Patient, error)
	}

	CenterRepository interface {
		Create(ctx context.Context, center *model.Center) error
		Get(ctx context.Context, id int64) (*model.Center, error)
		GetByName(ctx context.Context, name string) (*model.Center, error)
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id int64) (*model.Doctor, error)
		GetByUserID(ctx context.Context, userID int64) (*model.Doctor, error)
	}

	AppointmentRepository interface {
		// Create fails with CONFLICT when the doctor already has an
		// appointment at the same time, whatever its status.
		Create(ctx context.Context, appointment *model.Appointment) error
		GetDetail(ctx context.Context, id int64) (*model.AppointmentDetail, error)
		List(ctx context.Context, filter model.AppointmentFilter) ([]*model.AppointmentDetail, error)
		// UpdateStatus moves an appointment from one status to another. It
		// returns NOT_FOUND when no appointment with that id is in status from.
		UpdateStatus(ctx context.Context, id int64, from, to model.AppointmentStatus) error
	}
)

// Store bundles the repositories and the transaction manager backing them.
type Store struct {
	Tx           TxManager
	Users        UserRepository
	Patients     PatientRepository
	Centers      CenterRepository
	Doctors      DoctorRepository
	Appointments AppointmentRepository
}
