package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medhq/hospital-api/internal/model"
)

// All repository interfaces in one file
type (
	// AppointmentRepository persists appointments. ListBusyForPractitioner
	// returns only appointments that block the calendar (scheduled or
	// confirmed) whose interval intersects [from, to).
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		ListBusyForPractitioner(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
	}

	// BillingRepository persists bills and owns the bill number sequence.
	// NextBillSequence must be atomic; callers never read-then-write.
	BillingRepository interface {
		Create(ctx context.Context, bill *model.Bill) error
		Get(ctx context.Context, id uuid.UUID) (*model.Bill, error)
		GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Bill, error)
		Update(ctx context.Context, bill *model.Bill) error
		List(ctx context.Context, patientID uuid.UUID) ([]*model.Bill, error)
		NextBillSequence(ctx context.Context) (int64, error)
	}
)

// ErrNotFound is returned by implementations when a lookup matches nothing.
// Services translate it into a typed NotFound for the caller.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a write violates a uniqueness guarantee,
// such as a second bill for the same appointment.
var ErrDuplicate = errors.New("duplicate record")
