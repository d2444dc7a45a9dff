package billing

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
)

type Service struct {
	repo      repository.BillingRepository
	allocator NumberAllocator
	events    event.Emitter
}

func NewService(repo repository.BillingRepository, allocator NumberAllocator, events event.Emitter) *Service {
	return &Service{
		repo:      repo,
		allocator: allocator,
		events:    events,
	}
}

// requireStaff gates every bill mutation. Patients read their own bills;
// writing the ledger is a desk operation.
func requireStaff(actor *model.Actor) error {
	if actor.Role == model.RolePatient {
		return apperrors.Forbidden("patients may not modify bills")
	}
	return nil
}

// Create opens the ledger for a patient, at most one per appointment.
// Subtotal and total are derived before the write and never stored stale.
func (s *Service) Create(ctx context.Context, actor *model.Actor, req *model.CreateBillRequest) (*model.Bill, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if req.AppointmentID != nil {
		existing, err := s.repo.GetByAppointment(ctx, *req.AppointmentID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to check existing bill: %w", err)
		}
		if existing != nil {
			return nil, apperrors.Conflict("a bill already exists for this appointment")
		}
	}

	number, err := s.allocator.Next(ctx)
	if err != nil {
		return nil, err
	}

	bill := &model.Bill{
		BillNumber:    number,
		PatientID:     req.PatientID,
		AppointmentID: req.AppointmentID,
		Items:         toItems(req.Items),
		Tax:           req.Tax,
		Discount:      req.Discount,
		Status:        model.BillStatusPending,
		DueDate:       req.DueDate,
		CreatedBy:     actor.ID,
	}
	bill.ID = uuid.New()
	now := time.Now()
	bill.CreatedAt = now
	bill.UpdatedAt = now
	bill.Recompute()

	if bill.Total < 0 {
		return nil, apperrors.Validation("bill total cannot be negative", nil)
	}

	if err := s.repo.Create(ctx, bill); err != nil {
		// The store's uniqueness guard closes the race two concurrent
		// creates can win against the check above.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("a bill already exists for this appointment")
		}
		return nil, fmt.Errorf("failed to create bill: %w", err)
	}

	s.events.Emit(ctx, event.TypeBillingCreated, map[string]interface{}{
		"bill_id":     bill.ID,
		"bill_number": bill.BillNumber,
		"patient_id":  bill.PatientID,
		"total":       bill.Total,
	})

	return bill, nil
}

// UpdateItems replaces the item list and recomputes both derived totals.
// Items are immutable once the bill is paid.
func (s *Service) UpdateItems(ctx context.Context, actor *model.Actor, id uuid.UUID, req *model.UpdateBillItemsRequest) (*model.Bill, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	bill, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill.Status == model.BillStatusPaid {
		return nil, apperrors.Forbidden("items cannot be changed after payment")
	}

	bill.Items = toItems(req.Items)
	if req.Tax != nil {
		bill.Tax = *req.Tax
	}
	if req.Discount != nil {
		bill.Discount = *req.Discount
	}
	bill.UpdatedAt = time.Now()
	bill.Recompute()

	if bill.Total < 0 {
		return nil, apperrors.Validation("bill total cannot be negative", nil)
	}

	if err := s.repo.Update(ctx, bill); err != nil {
		return nil, s.translate(err)
	}
	return bill, nil
}

// Pay settles the bill in full. No partial-payment arithmetic happens here;
// the partial status is set manually through SetStatus.
func (s *Service) Pay(ctx context.Context, actor *model.Actor, id uuid.UUID, req *model.PayBillRequest) (*model.Bill, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	bill, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill.Status == model.BillStatusPaid {
		return nil, apperrors.AlreadyPaid("bill is already paid")
	}
	if req.AmountTendered < bill.Total {
		return nil, apperrors.AmountTooLow(fmt.Sprintf("amount tendered %.2f is below total %.2f", req.AmountTendered, bill.Total))
	}

	now := time.Now()
	bill.Status = model.BillStatusPaid
	bill.PaymentMethod = &req.Method
	bill.PaymentDate = &now
	bill.UpdatedAt = now

	if err := s.repo.Update(ctx, bill); err != nil {
		return nil, s.translate(err)
	}

	s.events.Emit(ctx, event.TypeBillingPaid, map[string]interface{}{
		"bill_id":       bill.ID,
		"bill_number":   bill.BillNumber,
		"patient_id":    bill.PatientID,
		"total":         bill.Total,
		"method":        req.Method,
		"contact_email": req.ContactEmail,
	})

	return bill, nil
}

// SetStatus handles the manual billing states: partial, cancelled, refunded.
// Cancellation and refund are terminal records, never row removals.
func (s *Service) SetStatus(ctx context.Context, actor *model.Actor, id uuid.UUID, status model.BillStatus) (*model.Bill, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	bill, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch status {
	case model.BillStatusPartial, model.BillStatusCancelled, model.BillStatusRefunded:
	default:
		return nil, apperrors.InvalidTransition(string(bill.Status), string(status))
	}
	if bill.Status != model.BillStatusPending && !(bill.Status == model.BillStatusPaid && status == model.BillStatusRefunded) {
		return nil, apperrors.InvalidTransition(string(bill.Status), string(status))
	}

	bill.Status = status
	bill.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, bill); err != nil {
		return nil, s.translate(err)
	}
	return bill, nil
}

func (s *Service) Get(ctx context.Context, actor *model.Actor, id uuid.UUID) (*model.Bill, error) {
	bill, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == model.RolePatient && bill.PatientID != actor.ID {
		return nil, apperrors.Forbidden("not allowed to read this bill")
	}
	return bill, nil
}

func (s *Service) List(ctx context.Context, actor *model.Actor, patientID uuid.UUID) ([]*model.Bill, error) {
	if actor.Role == model.RolePatient {
		patientID = actor.ID
	}
	bills, err := s.repo.List(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	return bills, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	bill, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.translate(err)
	}
	return bill, nil
}

func (s *Service) translate(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("bill", err)
	}
	return err
}

func toItems(reqs []model.BillItemRequest) []model.BillItem {
	items := make([]model.BillItem, 0, len(reqs))
	for _, r := range reqs {
		items = append(items, model.BillItem{
			Name:      r.Name,
			Quantity:  r.Quantity,
			UnitPrice: r.UnitPrice,
			Category:  model.BillItemCategory(r.Category),
		})
	}
	return items
}
