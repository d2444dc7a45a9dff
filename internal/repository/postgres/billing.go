package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medhq/hospital-api/internal/model"
	"github.com/medhq/hospital-api/internal/repository"
)

type billingRepository struct {
	BaseRepository
}

func NewBillingRepository(db *sqlx.DB) repository.BillingRepository {
	return &billingRepository{BaseRepository: NewBaseRepository(db)}
}

type billRow struct {
	ID            uuid.UUID  `db:"id"`
	BillNumber    string     `db:"bill_number"`
	PatientID     uuid.UUID  `db:"patient_id"`
	AppointmentID *uuid.UUID `db:"appointment_id"`
	Subtotal      float64    `db:"subtotal"`
	Tax           float64    `db:"tax"`
	Discount      float64    `db:"discount"`
	Total         float64    `db:"total"`
	Status        string     `db:"status"`
	PaymentMethod *string    `db:"payment_method"`
	PaymentDate   *time.Time `db:"payment_date"`
	DueDate       time.Time  `db:"due_date"`
	CreatedBy     uuid.UUID  `db:"created_by"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

type billItemRow struct {
	BillID    uuid.UUID `db:"bill_id"`
	Position  int       `db:"position"`
	Name      string    `db:"name"`
	Quantity  int       `db:"quantity"`
	UnitPrice float64   `db:"unit_price"`
	Category  string    `db:"category"`
}

func (row *billRow) toModel(items []billItemRow) *model.Bill {
	bill := &model.Bill{
		BillNumber:    row.BillNumber,
		PatientID:     row.PatientID,
		AppointmentID: row.AppointmentID,
		Subtotal:      row.Subtotal,
		Tax:           row.Tax,
		Discount:      row.Discount,
		Total:         row.Total,
		Status:        model.BillStatus(row.Status),
		PaymentMethod: row.PaymentMethod,
		PaymentDate:   row.PaymentDate,
		DueDate:       row.DueDate,
		CreatedBy:     row.CreatedBy,
	}
	bill.ID = row.ID
	bill.CreatedAt = row.CreatedAt
	bill.UpdatedAt = row.UpdatedAt

	bill.Items = make([]model.BillItem, 0, len(items))
	for _, item := range items {
		bill.Items = append(bill.Items, model.BillItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Category:  model.BillItemCategory(item.Category),
		})
	}
	return bill
}

const billColumns = `
	id, bill_number, patient_id, appointment_id,
	subtotal, tax, discount, total, status,
	payment_method, payment_date, due_date,
	created_by, created_at, updated_at
`

func (r *billingRepository) Create(ctx context.Context, bill *model.Bill) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO bills (
				id, bill_number, patient_id, appointment_id,
				subtotal, tax, discount, total, status,
				due_date, created_by, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		_, err := tx.ExecContext(ctx, query,
			bill.ID,
			bill.BillNumber,
			bill.PatientID,
			bill.AppointmentID,
			bill.Subtotal,
			bill.Tax,
			bill.Discount,
			bill.Total,
			bill.Status,
			bill.DueDate,
			bill.CreatedBy,
			bill.CreatedAt,
			bill.UpdatedAt,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return repository.ErrDuplicate
			}
			return fmt.Errorf("failed to create bill: %w", err)
		}

		return insertItems(ctx, tx, bill.ID, bill.Items)
	})
}

func insertItems(ctx context.Context, tx *sqlx.Tx, billID uuid.UUID, items []model.BillItem) error {
	query := `
		INSERT INTO bill_items (bill_id, position, name, quantity, unit_price, category)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i, item := range items {
		if _, err := tx.ExecContext(ctx, query, billID, i, item.Name, item.Quantity, item.UnitPrice, item.Category); err != nil {
			return fmt.Errorf("failed to insert bill item: %w", err)
		}
	}
	return nil
}

func (r *billingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE id = $1`

	var row billRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}

	items, err := r.itemsFor(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	return row.toModel(items), nil
}

func (r *billingRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE appointment_id = $1`

	var row billRow
	err := r.db.GetContext(ctx, &row, query, appointmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill by appointment: %w", err)
	}

	items, err := r.itemsFor(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	return row.toModel(items), nil
}

func (r *billingRepository) itemsFor(ctx context.Context, billID uuid.UUID) ([]billItemRow, error) {
	query := `
		SELECT bill_id, position, name, quantity, unit_price, category
		FROM bill_items
		WHERE bill_id = $1
		ORDER BY position ASC
	`
	var items []billItemRow
	if err := r.db.SelectContext(ctx, &items, query, billID); err != nil {
		return nil, fmt.Errorf("failed to get bill items: %w", err)
	}
	return items, nil
}

// Update rewrites the bill header and replaces the item list in one
// transaction so subtotal, total and items always change together.
func (r *billingRepository) Update(ctx context.Context, bill *model.Bill) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE bills
			SET subtotal = $1, tax = $2, discount = $3, total = $4,
				status = $5, payment_method = $6, payment_date = $7, updated_at = $8
			WHERE id = $9
		`
		result, err := tx.ExecContext(ctx, query,
			bill.Subtotal,
			bill.Tax,
			bill.Discount,
			bill.Total,
			bill.Status,
			bill.PaymentMethod,
			bill.PaymentDate,
			bill.UpdatedAt,
			bill.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update bill: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return repository.ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM bill_items WHERE bill_id = $1`, bill.ID); err != nil {
			return fmt.Errorf("failed to clear bill items: %w", err)
		}
		return insertItems(ctx, tx, bill.ID, bill.Items)
	})
}

// List returns a patient's bills, or every bill when patientID is the zero
// UUID.
func (r *billingRepository) List(ctx context.Context, patientID uuid.UUID) ([]*model.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills ORDER BY created_at DESC`
	args := []interface{}{}
	if patientID != uuid.Nil {
		query = `SELECT ` + billColumns + ` FROM bills WHERE patient_id = $1 ORDER BY created_at DESC`
		args = append(args, patientID)
	}

	var rows []billRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}

	bills := make([]*model.Bill, 0, len(rows))
	for i := range rows {
		items, err := r.itemsFor(ctx, rows[i].ID)
		if err != nil {
			return nil, err
		}
		bills = append(bills, rows[i].toModel(items))
	}
	return bills, nil
}

// NextBillSequence draws from a database sequence, so concurrent allocations
// are serialized by the store rather than by a read-then-write in Go.
func (r *billingRepository) NextBillSequence(ctx context.Context) (int64, error) {
	var seq int64
	if err := r.db.GetContext(ctx, &seq, `SELECT nextval('bill_number_seq')`); err != nil {
		return 0, fmt.Errorf("failed to get next bill sequence: %w", err)
	}
	return seq, nil
}
