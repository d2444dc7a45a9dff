package appointment_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medhq/hospital-api/internal/model"
	"github.com/medhq/hospital-api/internal/service/appointment"
)

func TestFreeSlotsEmptyDay(t *testing.T) {
	svc, _ := newTestService()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	slots, err := svc.FreeSlots(context.Background(), uuid.New(), day)
	require.NoError(t, err)

	// 09:00-17:00 at 30 minutes is exactly 16 candidates
	require.Len(t, slots, 16)
	assert.Equal(t, dayAt(9, 0), slots[0].Start)
	assert.Equal(t, dayAt(9, 30), slots[0].End)
	assert.Equal(t, dayAt(16, 30), slots[15].Start)
	assert.Equal(t, dayAt(17, 0), slots[15].End)
}

func TestFreeSlotsAscendingAndUnique(t *testing.T) {
	svc, _ := newTestService()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	slots, err := svc.FreeSlots(context.Background(), uuid.New(), day)
	require.NoError(t, err)

	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].Start.Before(slots[i].Start))
	}
}

func TestFreeSlotsExcludesBookedWindow(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	practitioner := uuid.New()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	// One 60-minute booking at 11:00
	_, err := svc.Create(ctx, admin(), createRequest(practitioner, dayAt(11, 0), 60))
	require.NoError(t, err)

	slots, err := svc.FreeSlots(ctx, practitioner, day)
	require.NoError(t, err)
	require.Len(t, slots, 14)

	starts := make(map[time.Time]bool, len(slots))
	for _, slot := range slots {
		starts[slot.Start] = true
	}

	assert.False(t, starts[dayAt(11, 0)])
	assert.False(t, starts[dayAt(11, 30)])
	assert.True(t, starts[dayAt(10, 30)])
	assert.True(t, starts[dayAt(12, 0)])
}

func TestFreeSlotsIgnoresCancelled(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	actor := admin()
	practitioner := uuid.New()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	apt, err := svc.Create(ctx, actor, createRequest(practitioner, dayAt(11, 0), 30))
	require.NoError(t, err)
	_, err = svc.Transition(ctx, actor, apt.ID, &model.TransitionAppointmentRequest{Status: model.AppointmentStatusCancelled})
	require.NoError(t, err)

	slots, err := svc.FreeSlots(ctx, practitioner, day)
	require.NoError(t, err)
	assert.Len(t, slots, 16)
}

func TestFreeSlotsGridStaysAligned(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	practitioner := uuid.New()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	// A booking off the grid blocks both candidates it touches but never
	// shifts the grid itself
	_, err := svc.Create(ctx, admin(), createRequest(practitioner, dayAt(11, 15), 30))
	require.NoError(t, err)

	slots, err := svc.FreeSlots(ctx, practitioner, day)
	require.NoError(t, err)

	for _, slot := range slots {
		assert.Zero(t, slot.Start.Minute()%30, "slot %v must stay on the half-hour grid", slot.Start)
	}

	starts := make(map[time.Time]bool, len(slots))
	for _, slot := range slots {
		starts[slot.Start] = true
	}
	assert.False(t, starts[dayAt(11, 0)])
	assert.False(t, starts[dayAt(11, 30)])
	assert.True(t, starts[dayAt(12, 0)])
}

func TestFreeSlotsCustomWindow(t *testing.T) {
	cfg := appointment.DefaultSlotConfig()
	cfg.SlotMinutes = 60
	cfg.WorkStartHour = 8
	cfg.WorkEndHour = 12

	svc, _ := newTestServiceWith(cfg)

	slots, err := svc.FreeSlots(context.Background(), uuid.New(), time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, slots, 4)
	assert.Equal(t, dayAt(8, 0), slots[0].Start)
	assert.Equal(t, dayAt(11, 0), slots[3].Start)
}
