package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medhq/hospital-api/internal/model"
	"github.com/medhq/hospital-api/internal/repository"
)

// AppointmentRepository is a mutex-guarded in-memory implementation used by
// tests and local runs.
type AppointmentRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*model.Appointment
}

func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (r *AppointmentRepository) Create(ctx context.Context, apt *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *apt
	r.appointments[apt.ID] = &cp
	return nil
}

func (r *AppointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	apt, ok := r.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *apt
	return &cp, nil
}

func (r *AppointmentRepository) Update(ctx context.Context, apt *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appointments[apt.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *apt
	r.appointments[apt.ID] = &cp
	return nil
}

func (r *AppointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appointments[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.appointments, id)
	return nil
}

func (r *AppointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Appointment
	for _, apt := range r.appointments {
		if filters.PractitionerID != uuid.Nil && apt.PractitionerID != filters.PractitionerID {
			continue
		}
		if filters.PatientID != uuid.Nil && apt.PatientID != filters.PatientID {
			continue
		}
		if filters.DepartmentID != uuid.Nil && apt.DepartmentID != filters.DepartmentID {
			continue
		}
		if filters.Status != "" && apt.Status != filters.Status {
			continue
		}
		if !filters.StartDate.IsZero() && apt.Slot.Start.Before(filters.StartDate) {
			continue
		}
		if !filters.EndDate.IsZero() && !apt.Slot.Start.Before(filters.EndDate) {
			continue
		}
		cp := *apt
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Slot.Start.Before(out[j].Slot.Start) })
	return out, nil
}

func (r *AppointmentRepository) ListBusyForPractitioner(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	window := model.TimeInterval{Start: from, DurationMinutes: int(to.Sub(from) / time.Minute)}

	var out []*model.Appointment
	for _, apt := range r.appointments {
		if apt.PractitionerID != practitionerID || !apt.Busy() {
			continue
		}
		if !apt.Slot.Overlaps(window) {
			continue
		}
		cp := *apt
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Slot.Start.Before(out[j].Slot.Start) })
	return out, nil
}
