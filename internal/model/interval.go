package model

import (
	"fmt"
	"time"
)

// MinIntervalMinutes is the shortest bookable duration.
const MinIntervalMinutes = 15

// TimeInterval is a half-open window [Start, Start+Duration). Storing the
// duration instead of the end keeps the two from drifting apart.
type TimeInterval struct {
	Start           time.Time `db:"start_time" json:"start_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
}

func NewTimeInterval(start time.Time, durationMinutes int) (TimeInterval, error) {
	if durationMinutes < MinIntervalMinutes {
		return TimeInterval{}, fmt.Errorf("duration must be at least %d minutes, got %d", MinIntervalMinutes, durationMinutes)
	}
	return TimeInterval{Start: start, DurationMinutes: durationMinutes}, nil
}

// End is the exclusive upper bound of the interval.
func (i TimeInterval) End() time.Time {
	return i.Start.Add(time.Duration(i.DurationMinutes) * time.Minute)
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching endpoints, back-to-back bookings, are not an overlap.
func (i TimeInterval) Overlaps(other TimeInterval) bool {
	return i.Start.Before(other.End()) && other.Start.Before(i.End())
}
