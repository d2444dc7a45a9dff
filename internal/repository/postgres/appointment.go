package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medhq/hospital-api/internal/model"
	"github.com/medhq/hospital-api/internal/repository"
)

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{BaseRepository: NewBaseRepository(db)}
}

// appointmentRow is the flat scan target; the interval is stored as
// start_time plus duration_minutes.
type appointmentRow struct {
	ID              uuid.UUID  `db:"id"`
	PatientID       uuid.UUID  `db:"patient_id"`
	PractitionerID  uuid.UUID  `db:"practitioner_id"`
	DepartmentID    uuid.UUID  `db:"department_id"`
	RoomID          *uuid.UUID `db:"room_id"`
	StartTime       time.Time  `db:"start_time"`
	DurationMinutes int        `db:"duration_minutes"`
	Status          string     `db:"status"`
	Type            string     `db:"appointment_type"`
	Reason          string     `db:"reason"`
	Diagnosis       string     `db:"diagnosis"`
	Treatment       string     `db:"treatment"`
	Notes           string     `db:"notes"`
	IsUrgent        bool       `db:"is_urgent"`
	CreatedBy       uuid.UUID  `db:"created_by"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func (row *appointmentRow) toModel() *model.Appointment {
	apt := &model.Appointment{
		PatientID:      row.PatientID,
		PractitionerID: row.PractitionerID,
		DepartmentID:   row.DepartmentID,
		RoomID:         row.RoomID,
		Slot:           model.TimeInterval{Start: row.StartTime, DurationMinutes: row.DurationMinutes},
		Status:         model.AppointmentStatus(row.Status),
		Type:           model.AppointmentType(row.Type),
		Reason:         row.Reason,
		Diagnosis:      row.Diagnosis,
		Treatment:      row.Treatment,
		Notes:          row.Notes,
		IsUrgent:       row.IsUrgent,
		CreatedBy:      row.CreatedBy,
	}
	apt.ID = row.ID
	apt.CreatedAt = row.CreatedAt
	apt.UpdatedAt = row.UpdatedAt
	return apt
}

const appointmentColumns = `
	id, patient_id, practitioner_id, department_id, room_id,
	start_time, duration_minutes, status, appointment_type,
	reason, diagnosis, treatment, notes, is_urgent,
	created_by, created_at, updated_at
`

func (r *appointmentRepository) Create(ctx context.Context, apt *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, practitioner_id, department_id, room_id,
			start_time, duration_minutes, status, appointment_type,
			reason, is_urgent, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		apt.ID,
		apt.PatientID,
		apt.PractitionerID,
		apt.DepartmentID,
		apt.RoomID,
		apt.Slot.Start,
		apt.Slot.DurationMinutes,
		apt.Status,
		apt.Type,
		apt.Reason,
		apt.IsUrgent,
		apt.CreatedBy,
		apt.CreatedAt,
		apt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var row appointmentRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return row.toModel(), nil
}

func (r *appointmentRepository) Update(ctx context.Context, apt *model.Appointment) error {
	query := `
		UPDATE appointments
		SET start_time = $1, duration_minutes = $2, status = $3,
			diagnosis = $4, treatment = $5, notes = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := r.db.ExecContext(ctx, query,
		apt.Slot.Start,
		apt.Slot.DurationMinutes,
		apt.Status,
		apt.Diagnosis,
		apt.Treatment,
		apt.Notes,
		apt.UpdatedAt,
		apt.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters.PractitionerID != uuid.Nil {
		query += fmt.Sprintf(" AND practitioner_id = $%d", argCount)
		args = append(args, filters.PractitionerID)
		argCount++
	}

	if filters.PatientID != uuid.Nil {
		query += fmt.Sprintf(" AND patient_id = $%d", argCount)
		args = append(args, filters.PatientID)
		argCount++
	}

	if filters.DepartmentID != uuid.Nil {
		query += fmt.Sprintf(" AND department_id = $%d", argCount)
		args = append(args, filters.DepartmentID)
		argCount++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}

	if !filters.StartDate.IsZero() {
		query += fmt.Sprintf(" AND start_time >= $%d", argCount)
		args = append(args, filters.StartDate)
		argCount++
	}

	if !filters.EndDate.IsZero() {
		query += fmt.Sprintf(" AND start_time < $%d", argCount)
		args = append(args, filters.EndDate)
		argCount++
	}

	query += " ORDER BY start_time ASC"

	var rows []appointmentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}

	appointments := make([]*model.Appointment, 0, len(rows))
	for i := range rows {
		appointments = append(appointments, rows[i].toModel())
	}
	return appointments, nil
}

func (r *appointmentRepository) ListBusyForPractitioner(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE practitioner_id = $1
		AND status IN ('scheduled', 'confirmed')
		AND start_time < $3
		AND start_time + duration_minutes * interval '1 minute' > $2
		ORDER BY start_time ASC
	`
	var rows []appointmentRow
	if err := r.db.SelectContext(ctx, &rows, query, practitionerID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list busy appointments: %w", err)
	}

	appointments := make([]*model.Appointment, 0, len(rows))
	for i := range rows {
		appointments = append(appointments, rows[i].toModel())
	}
	return appointments, nil
}
