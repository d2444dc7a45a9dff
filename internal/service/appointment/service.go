package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medhq/hospital-api/internal/model"
	"github.com/medhq/hospital-api/internal/repository"
	"github.com/medhq/hospital-api/internal/service/event"
	apperrors "github.com/medhq/hospital-api/pkg/errors"
	"github.com/medhq/hospital-api/pkg/lock"
)

// DefaultDurationMinutes is assumed when a booking request leaves the
// duration unset.
const DefaultDurationMinutes = 30

type Service struct {
	repo   repository.AppointmentRepository
	locker lock.Locker
	events event.Emitter
	slots  SlotConfig
}

func NewService(repo repository.AppointmentRepository, locker lock.Locker, events event.Emitter, slots SlotConfig) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		events: events,
		slots:  slots,
	}
}

func practitionerLockKey(id uuid.UUID) string {
	return fmt.Sprintf("practitioner:%s", id)
}

// Create books a new appointment. The conflict check and the insert run
// under a per-practitioner lock so two concurrent requests for overlapping
// intervals cannot both pass the check.
func (s *Service) Create(ctx context.Context, actor *model.Actor, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if actor.Role == model.RolePatient && req.PatientID != actor.ID {
		return nil, apperrors.Forbidden("patients may only book their own appointments")
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = DefaultDurationMinutes
	}
	slot, err := model.NewTimeInterval(req.StartTime, duration)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), err)
	}

	apt := &model.Appointment{
		PatientID:      req.PatientID,
		PractitionerID: req.PractitionerID,
		DepartmentID:   req.DepartmentID,
		RoomID:         req.RoomID,
		Slot:           slot,
		Status:         model.AppointmentStatusScheduled,
		Type:           model.AppointmentType(req.Type),
		Reason:         req.Reason,
		IsUrgent:       req.IsUrgent,
		CreatedBy:      actor.ID,
	}
	apt.ID = uuid.New()
	now := time.Now()
	apt.CreatedAt = now
	apt.UpdatedAt = now

	err = s.locker.WithLock(ctx, practitionerLockKey(req.PractitionerID), func(lockCtx context.Context) error {
		if err := s.checkConflict(lockCtx, req.PractitionerID, slot, uuid.Nil); err != nil {
			return err
		}
		if err := s.repo.Create(lockCtx, apt); err != nil {
			return fmt.Errorf("failed to create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, apperrors.Conflict("practitioner calendar is busy, retry")
		}
		return nil, err
	}

	s.events.Emit(ctx, event.TypeAppointmentCreated, map[string]interface{}{
		"appointment_id":  apt.ID,
		"patient_id":      apt.PatientID,
		"practitioner_id": apt.PractitionerID,
		"start_time":      apt.Slot.Start,
		"status":          apt.Status,
		"contact_email":   req.ContactEmail,
	})

	return apt, nil
}

// Reschedule moves an appointment to a new interval, re-running the conflict
// check while excluding the appointment's own current booking.
func (s *Service) Reschedule(ctx context.Context, actor *model.Actor, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	apt, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAct(actor, apt) {
		return nil, apperrors.Forbidden("not allowed to act on this appointment")
	}
	if apt.Status.IsTerminal() {
		return nil, apperrors.InvalidTransition(string(apt.Status), string(apt.Status))
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = apt.Slot.DurationMinutes
	}
	slot, err := model.NewTimeInterval(req.StartTime, duration)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), err)
	}

	err = s.locker.WithLock(ctx, practitionerLockKey(apt.PractitionerID), func(lockCtx context.Context) error {
		if err := s.checkConflict(lockCtx, apt.PractitionerID, slot, apt.ID); err != nil {
			return err
		}
		apt.Slot = slot
		apt.UpdatedAt = time.Now()
		if err := s.repo.Update(lockCtx, apt); err != nil {
			return s.translate(err, "appointment")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, apperrors.Conflict("practitioner calendar is busy, retry")
		}
		return nil, err
	}

	s.events.Emit(ctx, event.TypeAppointmentRescheduled, map[string]interface{}{
		"appointment_id":  apt.ID,
		"patient_id":      apt.PatientID,
		"practitioner_id": apt.PractitionerID,
		"start_time":      apt.Slot.Start,
	})

	return apt, nil
}

// Transition moves an appointment along the status graph. Patients may only
// cancel their own scheduled appointment; staff drive the full lifecycle.
func (s *Service) Transition(ctx context.Context, actor *model.Actor, id uuid.UUID, req *model.TransitionAppointmentRequest) (*model.Appointment, error) {
	apt, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAct(actor, apt) {
		return nil, apperrors.Forbidden("not allowed to act on this appointment")
	}
	if actor.Role == model.RolePatient {
		if req.Status != model.AppointmentStatusCancelled || apt.Status != model.AppointmentStatusScheduled {
			return nil, apperrors.Forbidden("patients may only cancel a scheduled appointment")
		}
	}
	if !canTransition(apt.Status, req.Status) {
		return nil, apperrors.InvalidTransition(string(apt.Status), string(req.Status))
	}

	previous := apt.Status
	apt.Status = req.Status
	if req.Diagnosis != nil {
		apt.Diagnosis = *req.Diagnosis
	}
	if req.Treatment != nil {
		apt.Treatment = *req.Treatment
	}
	if req.Notes != nil {
		apt.Notes = *req.Notes
	}
	apt.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, apt); err != nil {
		return nil, s.translate(err, "appointment")
	}

	s.events.Emit(ctx, event.TypeAppointmentStatus, map[string]interface{}{
		"appointment_id":  apt.ID,
		"patient_id":      apt.PatientID,
		"practitioner_id": apt.PractitionerID,
		"from":            previous,
		"to":              apt.Status,
	})

	return apt, nil
}

// Delete removes an appointment that has not yet left the scheduled state.
// Anything further along the lifecycle stays on record.
func (s *Service) Delete(ctx context.Context, actor *model.Actor, id uuid.UUID) error {
	apt, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !canAct(actor, apt) {
		return apperrors.Forbidden("not allowed to act on this appointment")
	}
	if apt.Status != model.AppointmentStatusScheduled {
		return apperrors.Forbidden("only scheduled appointments may be deleted")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.translate(err, "appointment")
	}

	s.events.Emit(ctx, event.TypeAppointmentDeleted, map[string]interface{}{
		"appointment_id":  apt.ID,
		"patient_id":      apt.PatientID,
		"practitioner_id": apt.PractitionerID,
	})

	return nil
}

func (s *Service) Get(ctx context.Context, actor *model.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAct(actor, apt) {
		return nil, apperrors.Forbidden("not allowed to read this appointment")
	}
	return apt, nil
}

// List narrows the filters to what the actor may see before querying.
func (s *Service) List(ctx context.Context, actor *model.Actor, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	switch actor.Role {
	case model.RolePatient:
		filters.PatientID = actor.ID
	case model.RoleDoctor:
		filters.PractitionerID = actor.ID
	}

	appointments, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.translate(err, "appointment")
	}
	return apt, nil
}

// checkConflict fetches the practitioner's busy appointments over the
// requested window and tests each against the half-open overlap rule.
// excludeID skips the appointment's own booking during reschedule.
func (s *Service) checkConflict(ctx context.Context, practitionerID uuid.UUID, slot model.TimeInterval, excludeID uuid.UUID) error {
	busy, err := s.repo.ListBusyForPractitioner(ctx, practitionerID, slot.Start, slot.End())
	if err != nil {
		return fmt.Errorf("failed to check conflicts: %w", err)
	}
	for _, existing := range busy {
		if existing.ID == excludeID {
			continue
		}
		if existing.Slot.Overlaps(slot) {
			return apperrors.Conflict("requested interval overlaps an existing appointment")
		}
	}
	return nil
}

func (s *Service) translate(err error, resource string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource, err)
	}
	return err
}
