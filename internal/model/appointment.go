package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed  AppointmentStatus = "confirmed"
	AppointmentStatusInProgress AppointmentStatus = "in-progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
	AppointmentStatusNoShow     AppointmentStatus = "no-show"
)

type AppointmentType string

const (
	AppointmentTypeConsultation AppointmentType = "consultation"
	AppointmentTypeFollowUp     AppointmentType = "follow-up"
	AppointmentTypeEmergency    AppointmentType = "emergency"
	AppointmentTypeSurgery      AppointmentType = "surgery"
	AppointmentTypeCheckup      AppointmentType = "checkup"
)

type Appointment struct {
	Base
	PatientID      uuid.UUID         `db:"patient_id" json:"patient_id"`
	PractitionerID uuid.UUID         `db:"practitioner_id" json:"practitioner_id"`
	DepartmentID   uuid.UUID         `db:"department_id" json:"department_id"`
	RoomID         *uuid.UUID        `db:"room_id" json:"room_id,omitempty"`
	Slot           TimeInterval      `json:"slot"`
	Status         AppointmentStatus `db:"status" json:"status"`
	Type           AppointmentType   `db:"appointment_type" json:"appointment_type"`
	Reason         string            `db:"reason" json:"reason,omitempty"`
	Diagnosis      string            `db:"diagnosis" json:"diagnosis,omitempty"`
	Treatment      string            `db:"treatment" json:"treatment,omitempty"`
	Notes          string            `db:"notes" json:"notes,omitempty"`
	IsUrgent       bool              `db:"is_urgent" json:"is_urgent"`
	CreatedBy      uuid.UUID         `db:"created_by" json:"created_by"`
}

// IsTerminal reports whether no further status transition is accepted.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// Busy reports whether the appointment blocks its practitioner's calendar.
func (a *Appointment) Busy() bool {
	return a.Status == AppointmentStatusScheduled || a.Status == AppointmentStatusConfirmed
}

type CreateAppointmentRequest struct {
	PatientID       uuid.UUID  `json:"patient_id" binding:"required"`
	PractitionerID  uuid.UUID  `json:"practitioner_id" binding:"required"`
	DepartmentID    uuid.UUID  `json:"department_id" binding:"required"`
	RoomID          *uuid.UUID `json:"room_id"`
	StartTime       time.Time  `json:"start_time" binding:"required"`
	DurationMinutes int        `json:"duration_minutes" validate:"omitempty,gte=15"`
	Type            string     `json:"appointment_type" validate:"required,oneof=consultation follow-up emergency surgery checkup"`
	Reason          string     `json:"reason" validate:"required,max=1000"`
	IsUrgent        bool       `json:"is_urgent"`
	// ContactEmail, when present, is where the confirmation mail goes.
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
}

type RescheduleAppointmentRequest struct {
	StartTime       time.Time `json:"start_time" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"omitempty,gte=15"`
}

type TransitionAppointmentRequest struct {
	Status    AppointmentStatus `json:"status" validate:"required,oneof=scheduled confirmed in-progress completed cancelled no-show"`
	Diagnosis *string           `json:"diagnosis"`
	Treatment *string           `json:"treatment"`
	Notes     *string           `json:"notes"`
}

type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AppointmentFilters struct {
	PractitionerID uuid.UUID
	PatientID      uuid.UUID
	DepartmentID   uuid.UUID
	Status         AppointmentStatus
	StartDate      time.Time
	EndDate        time.Time
}
