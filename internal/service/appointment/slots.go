package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medhq/hospital-api/internal/model"
)

// SlotConfig fixes the candidate grid for free-slot computation. The window
// applies to every practitioner; per-practitioner calendars are out of scope.
type SlotConfig struct {
	SlotMinutes   int
	WorkStartHour int
	WorkStartMin  int
	WorkEndHour   int
	WorkEndMin    int
	Location      *time.Location
}

func DefaultSlotConfig() SlotConfig {
	return SlotConfig{
		SlotMinutes:   30,
		WorkStartHour: 9,
		WorkEndHour:   17,
		Location:      time.UTC,
	}
}

func (c SlotConfig) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.UTC
}

// FreeSlots enumerates candidate slots at the configured granularity across
// the working window of the given day and drops every candidate that
// overlaps a busy appointment. Slots come back grid-aligned and in ascending
// start order; existing appointment boundaries never shift the grid.
func (s *Service) FreeSlots(ctx context.Context, practitionerID uuid.UUID, day time.Time) ([]model.TimeSlot, error) {
	loc := s.slots.location()
	y, m, d := day.In(loc).Date()
	workStart := time.Date(y, m, d, s.slots.WorkStartHour, s.slots.WorkStartMin, 0, 0, loc)
	workEnd := time.Date(y, m, d, s.slots.WorkEndHour, s.slots.WorkEndMin, 0, 0, loc)

	if !workStart.Before(workEnd) {
		return nil, fmt.Errorf("invalid working window: %v - %v", workStart, workEnd)
	}

	busy, err := s.repo.ListBusyForPractitioner(ctx, practitionerID, workStart, workEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch busy appointments: %w", err)
	}

	busyIntervals := make([]model.TimeInterval, 0, len(busy))
	for _, apt := range busy {
		interval := apt.Slot
		if interval.DurationMinutes == 0 {
			interval.DurationMinutes = DefaultDurationMinutes
		}
		busyIntervals = append(busyIntervals, interval)
	}

	step := time.Duration(s.slots.SlotMinutes) * time.Minute
	free := make([]model.TimeSlot, 0)
	for t := workStart; !t.Add(step).After(workEnd); t = t.Add(step) {
		candidate := model.TimeInterval{Start: t, DurationMinutes: s.slots.SlotMinutes}
		if overlapsAny(candidate, busyIntervals) {
			continue
		}
		free = append(free, model.TimeSlot{Start: t, End: candidate.End()})
	}
	return free, nil
}

func overlapsAny(candidate model.TimeInterval, busy []model.TimeInterval) bool {
	for _, interval := range busy {
		if candidate.Overlaps(interval) {
			return true
		}
	}
	return false
}
