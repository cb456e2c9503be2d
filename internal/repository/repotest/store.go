// Package repotest provides an in-memory implementation of the repository
// interfaces with the same uniqueness and foreign key behavior as the
// postgres schema.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jwalitptl/odontocare-api/internal/model"
	"github.com/jwalitptl/odontocare-api/internal/repository"
	apperrors "github.com/jwalitptl/odontocare-api/pkg/errors"
)

type txKey struct{}

type state struct {
	users        map[int64]model.User
	patients     map[int64]model.Patient
	centers      map[int64]model.Center
	doctors      map[int64]model.Doctor
	appointments map[int64]model.Appointment
	nextID       map[string]int64
}

func (s *state) clone() *state {
	c := &state{
		users:        make(map[int64]model.User, len(s.users)),
		patients:     make(map[int64]model.Patient, len(s.patients)),
		centers:      make(map[int64]model.Center, len(s.centers)),
		doctors:      make(map[int64]model.Doctor, len(s.doctors)),
		appointments: make(map[int64]model.Appointment, len(s.appointments)),
		nextID:       make(map[string]int64, len(s.nextID)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.patients {
		c.patients[k] = v
	}
	for k, v := range s.centers {
		c.centers[k] = v
	}
	for k, v := range s.doctors {
		c.doctors[k] = v
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	for k, v := range s.nextID {
		c.nextID[k] = v
	}
	return c
}

// Store is a goroutine-safe in-memory database. Transactions are serialized
// with every other call and roll back by restoring a snapshot.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data *state
}

func New() *Store {
	return &Store{data: &state{
		users:        map[int64]model.User{},
		patients:     map[int64]model.Patient{},
		centers:      map[int64]model.Center{},
		doctors:      map[int64]model.Doctor{},
		appointments: map[int64]model.Appointment{},
		nextID:       map[string]int64{},
	}}
}

// Repositories returns the store wired as a repository.Store.
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Tx:           s,
		Users:        userRepo{s},
		Patients:     patientRepo{s},
		Centers:      centerRepo{s},
		Doctors:      doctorRepo{s},
		Appointments: appointmentRepo{s},
	}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// enter locks the store for one repository call. Calls made outside a
// transaction also wait for any open transaction to finish.
func (s *Store) enter(ctx context.Context) func() {
	inTx := ctx.Value(txKey{}) != nil
	if !inTx {
		s.txMu.Lock()
	}
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		if !inTx {
			s.txMu.Unlock()
		}
	}
}

func (s *Store) id(table string) int64 {
	s.data.nextID[table]++
	return s.data.nextID[table]
}

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, user *model.User) error {
	defer r.s.enter(ctx)()

	for _, u := range r.s.data.users {
		if u.Username == user.Username {
			return apperrors.Conflict("user already exists")
		}
	}
	user.ID = r.s.id("users")
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	r.s.data.users[user.ID] = *user
	return nil
}

func (r userRepo) Get(ctx context.Context, id int64) (*model.User, error) {
	defer r.s.enter(ctx)()

	u, ok := r.s.data.users[id]
	if !ok {
		return nil, apperrors.NotFound("user")
	}
	return &u, nil
}

func (r userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	defer r.s.enter(ctx)()

	for _, u := range r.s.data.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, apperrors.NotFound("user")
}

func (r userRepo) Count(ctx context.Context) (int, error) {
	defer r.s.enter(ctx)()
	return len(r.s.data.users), nil
}

// LockRegistration is a no-op: transactions are already serialized.
func (r userRepo) LockRegistration(context.Context) error {
	return nil
}

type patientRepo struct{ s *Store }

func (r patientRepo) checkUserLink(p *model.Patient) error {
	if p.UserID == nil {
		return nil
	}
	if _, ok := r.s.data.users[*p.UserID]; !ok {
		return apperrors.NotFound("user")
	}
	for _, other := range r.s.data.patients {
		if other.ID != p.ID && other.UserID != nil && *other.UserID == *p.UserID {
			return apperrors.Conflict("patient already exists")
		}
	}
	return nil
}

func (r patientRepo) Create(ctx context.Context, patient *model.Patient) error {
	defer r.s.enter(ctx)()

	if err := r.checkUserLink(patient); err != nil {
		return err
	}
	patient.ID = r.s.id("patients")
	patient.CreatedAt = time.Now().UTC()
	patient.UpdatedAt = patient.CreatedAt
	r.s.data.patients[patient.ID] = *patient
	return nil
}

func (r patientRepo) Get(ctx context.Context, id int64) (*model.Patient, error) {
	defer r.s.enter(ctx)()

	p, ok := r.s.data.patients[id]
	if !ok {
		return nil, apperrors.NotFound("patient")
	}
	return &p, nil
}

func (r patientRepo) GetByUserID(ctx context.Context, userID int64) (*model.Patient, error) {
	defer r.s.enter(ctx)()

	for _, p := range r.s.data.patients {
		if p.UserID != nil && *p.UserID == userID {
			return &p, nil
		}
	}
	return nil, apperrors.NotFound("patient")
}

func (r patientRepo) Update(ctx context.Context, patient *model.Patient) error {
	defer r.s.enter(ctx)()

	if _, ok := r.s.data.patients[patient.ID]; !ok {
		return apperrors.NotFound("patient")
	}
	if err := r.checkUserLink(patient); err != nil {
		return err
	}
	patient.UpdatedAt = time.Now().UTC()
	r.s.data.patients[patient.ID] = *patient
	return nil
}

func (r patientRepo) Delete(ctx context.Context, id int64) error {
	defer r.s.enter(ctx)()

	if _, ok := r.s.data.patients[id]; !ok {
		return apperrors.NotFound("patient")
	}
	delete(r.s.data.patients, id)
	for aid, a := range r.s.data.appointments {
		if a.PatientID == id {
			delete(r.s.data.appointments, aid)
		}
	}
	return nil
}

func (r patientRepo) List(ctx context.Context) ([]*model.Patient, error) {
	defer r.s.enter(ctx)()

	out := make([]*model.Patient, 0, len(r.s.data.patients))
	for _, p := range r.s.data.patients {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type centerRepo struct{ s *Store }

func (r centerRepo) Create(ctx context.Context, center *model.Center) error {
	defer r.s.enter(ctx)()

	for _, c := range r.s.data.centers {
		if c.Name == center.Name {
			return apperrors.Conflict("center already exists")
		}
	}
	center.ID = r.s.id("centers")
	center.CreatedAt = time.Now().UTC()
	center.UpdatedAt = center.CreatedAt
	r.s.data.centers[center.ID] = *center
	return nil
}

func (r centerRepo) Get(ctx context.Context, id int64) (*model.Center, error) {
	defer r.s.enter(ctx)()

	c, ok := r.s.data.centers[id]
	if !ok {
		return nil, apperrors.NotFound("center")
	}
	return &c, nil
}

func (r centerRepo) GetByName(ctx context.Context, name string) (*model.Center, error) {
	defer r.s.enter(ctx)()

	for _, c := range r.s.data.centers {
		if c.Name == name {
			return &c, nil
		}
	}
	return nil, apperrors.NotFound("center")
}

type doctorRepo struct{ s *Store }

func (r doctorRepo) Create(ctx context.Context, doctor *model.Doctor) error {
	defer r.s.enter(ctx)()

	if _, ok := r.s.data.centers[doctor.CenterID]; !ok {
		return apperrors.NotFound("center")
	}
	if doctor.UserID != nil {
		for _, d := range r.s.data.doctors {
			if d.UserID != nil && *d.UserID == *doctor.UserID {
				return apperrors.Conflict("doctor already exists")
			}
		}
	}
	doctor.ID = r.s.id("doctors")
	doctor.CreatedAt = time.Now().UTC()
	doctor.UpdatedAt = doctor.CreatedAt
	r.s.data.doctors[doctor.ID] = *doctor
	return nil
}

func (r doctorRepo) Get(ctx context.Context, id int64) (*model.Doctor, error) {
	defer r.s.enter(ctx)()

	d, ok := r.s.data.doctors[id]
	if !ok {
		return nil, apperrors.NotFound("doctor")
	}
	return &d, nil
}

func (r doctorRepo) GetByUserID(ctx context.Context, userID int64) (*model.Doctor, error) {
	defer r.s.enter(ctx)()

	for _, d := range r.s.data.doctors {
		if d.UserID != nil && *d.UserID == userID {
			return &d, nil
		}
	}
	return nil, apperrors.NotFound("doctor")
}

type appointmentRepo struct{ s *Store }

func (r appointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	defer r.s.enter(ctx)()

	d := r.s.data
	if _, ok := d.patients[a.PatientID]; !ok {
		return apperrors.NotFound("patient")
	}
	if _, ok := d.doctors[a.DoctorID]; !ok {
		return apperrors.NotFound("doctor")
	}
	if _, ok := d.centers[a.CenterID]; !ok {
		return apperrors.NotFound("center")
	}
	for _, existing := range d.appointments {
		if existing.DoctorID == a.DoctorID && existing.ScheduledAt.Equal(a.ScheduledAt) {
			return apperrors.Conflict("doctor already has an appointment at that time")
		}
	}
	a.ID = r.s.id("appointments")
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	d.appointments[a.ID] = *a
	return nil
}

func (r appointmentRepo) detail(a model.Appointment) *model.AppointmentDetail {
	d := r.s.data
	return &model.AppointmentDetail{
		Appointment:          a,
		PatientName:          d.patients[a.PatientID].Name,
		DoctorName:           d.doctors[a.DoctorID].Name,
		CenterName:           d.centers[a.CenterID].Name,
		RegisteredByUsername: d.users[a.RegisteredBy].Username,
	}
}

func (r appointmentRepo) GetDetail(ctx context.Context, id int64) (*model.AppointmentDetail, error) {
	defer r.s.enter(ctx)()

	a, ok := r.s.data.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment")
	}
	return r.detail(a), nil
}

func matches(a model.Appointment, f model.AppointmentFilter) bool {
	switch {
	case f.PatientID != nil && a.PatientID != *f.PatientID:
		return false
	case f.DoctorID != nil && a.DoctorID != *f.DoctorID:
		return false
	case f.CenterID != nil && a.CenterID != *f.CenterID:
		return false
	case f.Status != nil && a.Status != *f.Status:
		return false
	case f.ScheduledAt != nil && !a.ScheduledAt.Equal(*f.ScheduledAt):
		return false
	}
	return true
}

func (r appointmentRepo) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.AppointmentDetail, error) {
	defer r.s.enter(ctx)()

	out := []*model.AppointmentDetail{}
	for _, a := range r.s.data.appointments {
		if matches(a, filter) {
			out = append(out, r.detail(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r appointmentRepo) UpdateStatus(ctx context.Context, id int64, from, to model.AppointmentStatus) error {
	defer r.s.enter(ctx)()

	a, ok := r.s.data.appointments[id]
	if !ok || a.Status != from {
		return apperrors.NotFound("appointment")
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	r.s.data.appointments[id] = a
	return nil
}
