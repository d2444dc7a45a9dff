package billing_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medhq/hospital-api/internal/model"
	"github.com/medhq/hospital-api/internal/repository/memory"
	"github.com/medhq/hospital-api/internal/service/billing"
	"github.com/medhq/hospital-api/internal/service/event"
	apperrors "github.com/medhq/hospital-api/pkg/errors"
)

func newTestService() *billing.Service {
	repo := memory.NewBillingRepository()
	allocator := billing.NewNumberAllocator(repo, "BILL")
	return billing.NewService(repo, allocator, event.NopEmitter{})
}

func staff() *model.Actor {
	return &model.Actor{ID: uuid.New(), Role: model.RoleAdmin}
}

func billRequest() *model.CreateBillRequest {
	return &model.CreateBillRequest{
		PatientID: uuid.New(),
		Items: []model.BillItemRequest{
			{Name: "Consultation", Quantity: 2, UnitPrice: 50, Category: "consultation"},
			{Name: "Blood panel", Quantity: 1, UnitPrice: 100, Category: "procedure"},
		},
		Tax:      10,
		Discount: 5,
		DueDate:  time.Now().Add(14 * 24 * time.Hour),
	}
}

func TestCreateComputesTotals(t *testing.T) {
	svc := newTestService()

	bill, err := svc.Create(context.Background(), staff(), billRequest())
	require.NoError(t, err)

	assert.Equal(t, 200.0, bill.Subtotal)
	assert.Equal(t, 205.0, bill.Total)
	assert.Equal(t, model.BillStatusPending, bill.Status)
	assert.Equal(t, "BILL-000001", bill.BillNumber)
}

func TestCreateRejectsSecondBillForAppointment(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	actor := staff()

	appointmentID := uuid.New()
	req := billRequest()
	req.AppointmentID = &appointmentID

	_, err := svc.Create(ctx, actor, req)
	require.NoError(t, err)

	again := billRequest()
	again.AppointmentID = &appointmentID
	_, err = svc.Create(ctx, actor, again)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))
}

func TestUpdateItemsRecomputesBothTotals(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	actor := staff()

	bill, err := svc.Create(ctx, actor, billRequest())
	require.NoError(t, err)

	updated, err := svc.UpdateItems(ctx, actor, bill.ID, &model.UpdateBillItemsRequest{
		Items: []model.BillItemRequest{
			{Name: "Surgery", Quantity: 1, UnitPrice: 1000, Category: "procedure"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1000.0, updated.Subtotal)
	// Tax and discount carry over when not supplied
	assert.Equal(t, 1005.0, updated.Total)

	reread, err := svc.Get(ctx, actor, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Subtotal, reread.Subtotal)
	assert.Equal(t, updated.Total, reread.Total)
}

func TestUpdateItemsForbiddenAfterPayment(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	actor := staff()

	bill, err := svc.Create(ctx, actor, billRequest())
	require.NoError(t, err)

	_, err = svc.Pay(ctx, actor, bill.ID, &model.PayBillRequest{Method: "cash", AmountTendered: 205})
	require.NoError(t, err)

	_, err = svc.UpdateItems(ctx, actor, bill.ID, &model.UpdateBillItemsRequest{
		Items: []model.BillItemRequest{{Name: "Extra", Quantity: 1, UnitPrice: 1, Category: "other"}},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))
}

func TestPayGuards(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	actor := staff()

	bill, err := svc.Create(ctx, actor, billRequest())
	require.NoError(t, err)

	// Short payment is rejected without touching state
	_, err = svc.Pay(ctx, actor, bill.ID, &model.PayBillRequest{Method: "cash", AmountTendered: 100})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrAmountTooLow, apperrors.CodeOf(err))

	pending, err := svc.Get(ctx, actor, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BillStatusPending, pending.Status)

	paid, err := svc.Pay(ctx, actor, bill.ID, &model.PayBillRequest{Method: "cash", AmountTendered: 205})
	require.NoError(t, err)
	assert.Equal(t, model.BillStatusPaid, paid.Status)
	require.NotNil(t, paid.PaymentMethod)
	assert.Equal(t, "cash", *paid.PaymentMethod)
	assert.NotNil(t, paid.PaymentDate)

	_, err = svc.Pay(ctx, actor, bill.ID, &model.PayBillRequest{Method: "cash", AmountTendered: 205})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrAlreadyPaid, apperrors.CodeOf(err))
}

func TestPayNotFound(t *testing.T) {
	svc := newTestService()

	_, err := svc.Pay(context.Background(), staff(), uuid.New(), &model.PayBillRequest{Method: "cash", AmountTendered: 1})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestSetStatusGraph(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	actor := staff()

	bill, err := svc.Create(ctx, actor, billRequest())
	require.NoError(t, err)

	cancelled, err := svc.SetStatus(ctx, actor, bill.ID, model.BillStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, model.BillStatusCancelled, cancelled.Status)

	// Cancelled is terminal
	_, err = svc.SetStatus(ctx, actor, bill.ID, model.BillStatusPartial)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidTransition, apperrors.CodeOf(err))

	// Paid bills may be refunded
	other, err := svc.Create(ctx, actor, billRequest())
	require.NoError(t, err)
	_, err = svc.Pay(ctx, actor, other.ID, &model.PayBillRequest{Method: "card", AmountTendered: 205})
	require.NoError(t, err)
	refunded, err := svc.SetStatus(ctx, actor, other.ID, model.BillStatusRefunded)
	require.NoError(t, err)
	assert.Equal(t, model.BillStatusRefunded, refunded.Status)
}

// N concurrent creates must yield N distinct, contiguous bill numbers; the
// sequence lives in the store, never read-then-write in the service.
func TestConcurrentBillNumbering(t *testing.T) {
	svc := newTestService()
	actor := staff()

	const n = 50
	numbers := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bill, err := svc.Create(context.Background(), actor, billRequest())
			if err != nil {
				t.Error(err)
				return
			}
			numbers <- bill.BillNumber
		}()
	}
	wg.Wait()
	close(numbers)

	got := make([]string, 0, n)
	for number := range numbers {
		got = append(got, number)
	}
	require.Len(t, got, n)

	sort.Strings(got)
	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf("BILL-%06d", i+1), got[i])
	}
}

func TestPatientReadRestrictedToOwnBills(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	bill, err := svc.Create(ctx, staff(), billRequest())
	require.NoError(t, err)

	owner := &model.Actor{ID: bill.PatientID, Role: model.RolePatient}
	_, err = svc.Get(ctx, owner, bill.ID)
	assert.NoError(t, err)

	stranger := &model.Actor{ID: uuid.New(), Role: model.RolePatient}
	_, err = svc.Get(ctx, stranger, bill.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))
}

// A patient must not be able to touch any bill, their own included; the
// ledger only changes at the desk.
func TestPatientsCannotMutateBills(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	bill, err := svc.Create(ctx, staff(), billRequest())
	require.NoError(t, err)

	zeroing := &model.UpdateBillItemsRequest{
		Items: []model.BillItemRequest{{Name: "Nothing", Quantity: 1, UnitPrice: 0.01, Category: "other"}},
	}

	for name, actor := range map[string]*model.Actor{
		"owner":    {ID: bill.PatientID, Role: model.RolePatient},
		"stranger": {ID: uuid.New(), Role: model.RolePatient},
	} {
		_, err = svc.UpdateItems(ctx, actor, bill.ID, zeroing)
		require.Error(t, err, "%s must not update items", name)
		assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))

		_, err = svc.SetStatus(ctx, actor, bill.ID, model.BillStatusCancelled)
		require.Error(t, err, "%s must not cancel", name)
		assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))

		_, err = svc.Pay(ctx, actor, bill.ID, &model.PayBillRequest{Method: "cash", AmountTendered: 205})
		require.Error(t, err, "%s must not pay", name)
		assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))

		_, err = svc.Create(ctx, actor, billRequest())
		require.Error(t, err, "%s must not create", name)
		assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))
	}

	// Nothing changed
	reread, err := svc.Get(ctx, staff(), bill.ID)
	require.NoError(t, err)
	assert.Equal(t, 200.0, reread.Subtotal)
	assert.Equal(t, 205.0, reread.Total)
	assert.Equal(t, model.BillStatusPending, reread.Status)
	assert.Len(t, reread.Items, 2)
}

// Concurrent creates for the same appointment must yield one bill. The
// pre-check can race; the store's uniqueness guard decides the winner.
func TestConcurrentCreateSameAppointmentOneWins(t *testing.T) {
	svc := newTestService()
	actor := staff()
	appointmentID := uuid.New()

	const n = 8
	results := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := billRequest()
			req.AppointmentID = &appointmentID
			_, err := svc.Create(context.Background(), actor, req)
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
	assert.Equal(t, n-1, conflicts, "every loser must see a conflict")
}

func TestRoundingToCents(t *testing.T) {
	svc := newTestService()

	req := &model.CreateBillRequest{
		PatientID: uuid.New(),
		Items: []model.BillItemRequest{
			{Name: "Tablets", Quantity: 3, UnitPrice: 0.1, Category: "medicine"},
		},
		DueDate: time.Now().Add(24 * time.Hour),
	}
	bill, err := svc.Create(context.Background(), staff(), req)
	require.NoError(t, err)

	assert.Equal(t, 0.3, bill.Subtotal)
	assert.Equal(t, 0.3, bill.Total)
}
