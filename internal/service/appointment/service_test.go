package appointment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medhq/hospital-api/internal/model"
	"github.com/medhq/hospital-api/internal/repository/memory"
	"github.com/medhq/hospital-api/internal/service/appointment"
	"github.com/medhq/hospital-api/internal/service/event"
	apperrors "github.com/medhq/hospital-api/pkg/errors"
	"github.com/medhq/hospital-api/pkg/lock"
)

func newTestService() (*appointment.Service, *memory.AppointmentRepository) {
	return newTestServiceWith(appointment.DefaultSlotConfig())
}

func newTestServiceWith(cfg appointment.SlotConfig) (*appointment.Service, *memory.AppointmentRepository) {
	repo := memory.NewAppointmentRepository()
	svc := appointment.NewService(repo, lock.NewMemoryLocker(), event.NopEmitter{}, cfg)
	return svc, repo
}

func admin() *model.Actor {
	return &model.Actor{ID: uuid.New(), Role: model.RoleAdmin}
}

func dayAt(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.UTC)
}

func createRequest(practitionerID uuid.UUID, start time.Time, minutes int) *model.CreateAppointmentRequest {
	return &model.CreateAppointmentRequest{
		PatientID:       uuid.New(),
		PractitionerID:  practitionerID,
		DepartmentID:    uuid.New(),
		StartTime:       start,
		DurationMinutes: minutes,
		Type:            "consultation",
		Reason:          "routine checkup",
	}
}

func TestCreateRejectsOverlap(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	actor := admin()
	practitioner := uuid.New()

	_, err := svc.Create(ctx, actor, createRequest(practitioner, dayAt(9, 0), 30))
	require.NoError(t, err)

	// Overlapping interval is rejected
	_, err = svc.Create(ctx, actor, createRequest(practitioner, dayAt(9, 15), 30))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))

	// Back-to-back interval is fine
	_, err = svc.Create(ctx, actor, createRequest(practitioner, dayAt(9, 30), 30))
	assert.NoError(t, err)
}

func TestCreateAllowsOtherPractitioner(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	actor := admin()

	_, err := svc.Create(ctx, actor, createRequest(uuid.New(), dayAt(9, 0), 30))
	require.NoError(t, err)

	_, err = svc.Create(ctx, actor, createRequest(uuid.New(), dayAt(9, 0), 30))
	assert.NoError(t, err)
}

func TestCreateDefaultsDuration(t *testing.T) {
	svc, _ := newTestService()

	apt, err := svc.Create(context.Background(), admin(), createRequest(uuid.New(), dayAt(9, 0), 0))
	require.NoError(t, err)
	assert.Equal(t, appointment.DefaultDurationMinutes, apt.Slot.DurationMinutes)
}

func TestCreateRejectsShortDuration(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), admin(), createRequest(uuid.New(), dayAt(9, 0), 10))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrValidation, apperrors.CodeOf(err))
}

// Two concurrent create calls for the same practitioner with overlapping
// intervals: exactly one must win. Without the per-practitioner lock both
// pass the conflict check and the calendar is double-booked.
func TestConcurrentCreateExactlyOneWins(t *testing.T) {
	svc, _ := newTestService()
	actor := admin()
	practitioner := uuid.New()

	const attempts = 20
	for i := 0; i < attempts; i++ {
		start := dayAt(9, 0).Add(time.Duration(i) * time.Hour)

		var wg sync.WaitGroup
		results := make(chan error, 2)
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Create(context.Background(), actor, createRequest(practitioner, start, 30))
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var successes, conflicts int
		for err := range results {
			if err == nil {
				successes++
			} else if apperrors.CodeOf(err) == apperrors.ErrConflict {
				conflicts++
			} else {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, successes, "exactly one create must succeed")
		assert.Equal(t, 1, conflicts, "the loser must see a conflict")
	}
}

func TestRescheduleConflictAndSelfExclusion(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	actor := admin()
	practitioner := uuid.New()

	first, err := svc.Create(ctx, actor, createRequest(practitioner, dayAt(9, 0), 30))
	require.NoError(t, err)
	second, err := svc.Create(ctx, actor, createRequest(practitioner, dayAt(10, 0), 30))
	require.NoError(t, err)

	// Moving onto the other booking conflicts
	_, err = svc.Reschedule(ctx, actor, second.ID, &model.RescheduleAppointmentRequest{StartTime: dayAt(9, 15)})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))

	// Shifting within its own old window succeeds: the booking's own
	// interval is excluded from the check
	moved, err := svc.Reschedule(ctx, actor, first.ID, &model.RescheduleAppointmentRequest{StartTime: dayAt(9, 15)})
	require.NoError(t, err)
	assert.Equal(t, dayAt(9, 15), moved.Slot.Start)
}

func TestRescheduleNotFound(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Reschedule(context.Background(), admin(), uuid.New(), &model.RescheduleAppointmentRequest{StartTime: dayAt(9, 0)})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestTransitionFullLifecycle(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	actor := admin()

	apt, err := svc.Create(ctx, actor, createRequest(uuid.New(), dayAt(9, 0), 30))
	require.NoError(t, err)

	for _, status := range []model.AppointmentStatus{
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusInProgress,
		model.AppointmentStatusCompleted,
	} {
		apt, err = svc.Transition(ctx, actor, apt.ID, &model.TransitionAppointmentRequest{Status: status})
		require.NoError(t, err)
		assert.Equal(t, status, apt.Status)
	}
}

func TestTransitionRejectsTerminalStates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	actor := admin()

	terminal := []model.AppointmentStatus{
		model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	}
	for _, from := range terminal {
		apt, err := svc.Create(ctx, actor, createRequest(uuid.New(), dayAt(9, 0), 30))
		require.NoError(t, err)
		_, err = svc.Transition(ctx, actor, apt.ID, &model.TransitionAppointmentRequest{Status: from})
		require.NoError(t, err)

		for _, to := range []model.AppointmentStatus{
			model.AppointmentStatusScheduled,
			model.AppointmentStatusConfirmed,
			model.AppointmentStatusInProgress,
			model.AppointmentStatusCompleted,
			model.AppointmentStatusCancelled,
		} {
			_, err := svc.Transition(ctx, actor, apt.ID, &model.TransitionAppointmentRequest{Status: to})
			require.Error(t, err, "transition %s -> %s must fail", from, to)
			assert.Equal(t, apperrors.ErrInvalidTransition, apperrors.CodeOf(err))
		}
	}
}

func TestTransitionRejectsSkippingBackwards(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	actor := admin()

	apt, err := svc.Create(ctx, actor, createRequest(uuid.New(), dayAt(9, 0), 30))
	require.NoError(t, err)
	_, err = svc.Transition(ctx, actor, apt.ID, &model.TransitionAppointmentRequest{Status: model.AppointmentStatusInProgress})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, actor, apt.ID, &model.TransitionAppointmentRequest{Status: model.AppointmentStatusConfirmed})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidTransition, apperrors.CodeOf(err))
}

func TestPatientMayOnlyCancelOwnScheduled(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	staff := admin()

	patientID := uuid.New()
	patient := &model.Actor{ID: patientID, Role: model.RolePatient}

	req := createRequest(uuid.New(), dayAt(9, 0), 30)
	req.PatientID = patientID
	apt, err := svc.Create(ctx, staff, req)
	require.NoError(t, err)

	// Patient cannot confirm
	_, err = svc.Transition(ctx, patient, apt.ID, &model.TransitionAppointmentRequest{Status: model.AppointmentStatusConfirmed})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))

	// A different patient cannot cancel
	stranger := &model.Actor{ID: uuid.New(), Role: model.RolePatient}
	_, err = svc.Transition(ctx, stranger, apt.ID, &model.TransitionAppointmentRequest{Status: model.AppointmentStatusCancelled})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))

	// The owning patient can cancel while scheduled
	cancelled, err := svc.Transition(ctx, patient, apt.ID, &model.TransitionAppointmentRequest{Status: model.AppointmentStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
}

func TestDeleteOnlyWhileScheduled(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	actor := admin()

	apt, err := svc.Create(ctx, actor, createRequest(uuid.New(), dayAt(9, 0), 30))
	require.NoError(t, err)

	_, err = svc.Transition(ctx, actor, apt.ID, &model.TransitionAppointmentRequest{Status: model.AppointmentStatusCompleted})
	require.NoError(t, err)

	err = svc.Delete(ctx, actor, apt.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))

	fresh, err := svc.Create(ctx, actor, createRequest(uuid.New(), dayAt(11, 0), 30))
	require.NoError(t, err)
	assert.NoError(t, svc.Delete(ctx, actor, fresh.ID))

	_, err = svc.Get(ctx, actor, fresh.ID)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestCancelledBookingFreesTheSlot(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	actor := admin()
	practitioner := uuid.New()

	apt, err := svc.Create(ctx, actor, createRequest(practitioner, dayAt(9, 0), 30))
	require.NoError(t, err)
	_, err = svc.Transition(ctx, actor, apt.ID, &model.TransitionAppointmentRequest{Status: model.AppointmentStatusCancelled})
	require.NoError(t, err)

	_, err = svc.Create(ctx, actor, createRequest(practitioner, dayAt(9, 0), 30))
	assert.NoError(t, err)
}

func TestGetEnforcesOwnership(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	practitionerID := uuid.New()
	apt, err := svc.Create(ctx, admin(), createRequest(practitionerID, dayAt(9, 0), 30))
	require.NoError(t, err)

	owner := &model.Actor{ID: apt.PatientID, Role: model.RolePatient}
	_, err = svc.Get(ctx, owner, apt.ID)
	assert.NoError(t, err)

	doctor := &model.Actor{ID: practitionerID, Role: model.RoleDoctor}
	_, err = svc.Get(ctx, doctor, apt.ID)
	assert.NoError(t, err)

	otherDoctor := &model.Actor{ID: uuid.New(), Role: model.RoleDoctor}
	_, err = svc.Get(ctx, otherDoctor, apt.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))
}
