package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/medhq/hospital-api/internal/model"
	"github.com/medhq/hospital-api/internal/repository"
)

// BillingRepository is a mutex-guarded in-memory implementation. The bill
// sequence is an atomic counter, mirroring the database sequence the
// postgres implementation draws from.
type BillingRepository struct {
	mu            sync.RWMutex
	bills         map[uuid.UUID]*model.Bill
	byAppointment map[uuid.UUID]uuid.UUID
	seq           atomic.Int64
}

func NewBillingRepository() *BillingRepository {
	return &BillingRepository{
		bills:         make(map[uuid.UUID]*model.Bill),
		byAppointment: make(map[uuid.UUID]uuid.UUID),
	}
}

func copyBill(b *model.Bill) *model.Bill {
	cp := *b
	cp.Items = append([]model.BillItem(nil), b.Items...)
	return &cp
}

// Create enforces at most one bill per appointment under the write lock,
// matching the UNIQUE constraint the postgres store relies on.
func (r *BillingRepository) Create(ctx context.Context, bill *model.Bill) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bill.AppointmentID != nil {
		if _, exists := r.byAppointment[*bill.AppointmentID]; exists {
			return repository.ErrDuplicate
		}
		r.byAppointment[*bill.AppointmentID] = bill.ID
	}
	r.bills[bill.ID] = copyBill(bill)
	return nil
}

func (r *BillingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bill, ok := r.bills[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyBill(bill), nil
}

func (r *BillingRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Bill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	billID, ok := r.byAppointment[appointmentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyBill(r.bills[billID]), nil
}

func (r *BillingRepository) Update(ctx context.Context, bill *model.Bill) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bills[bill.ID]; !ok {
		return repository.ErrNotFound
	}
	r.bills[bill.ID] = copyBill(bill)
	return nil
}

func (r *BillingRepository) List(ctx context.Context, patientID uuid.UUID) ([]*model.Bill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Bill
	for _, bill := range r.bills {
		if patientID != uuid.Nil && bill.PatientID != patientID {
			continue
		}
		out = append(out, copyBill(bill))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BillNumber < out[j].BillNumber })
	return out, nil
}

func (r *BillingRepository) NextBillSequence(ctx context.Context) (int64, error) {
	return r.seq.Add(1), nil
}
