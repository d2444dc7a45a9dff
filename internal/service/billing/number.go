package billing

import (
	"context"
	"fmt"

	"github.com/medhq/hospital-api/internal/repository"
)

// DefaultBillPrefix is used when configuration leaves the prefix empty.
const DefaultBillPrefix = "BILL"

// NumberAllocator produces unique, strictly increasing bill numbers. The
// sequence itself lives in the store (database sequence or atomic counter),
// so allocation is never a read-then-write in this layer.
type NumberAllocator interface {
	Next(ctx context.Context) (string, error)
}

type sequenceAllocator struct {
	repo   repository.BillingRepository
	prefix string
}

func NewNumberAllocator(repo repository.BillingRepository, prefix string) NumberAllocator {
	if prefix == "" {
		prefix = DefaultBillPrefix
	}
	return &sequenceAllocator{repo: repo, prefix: prefix}
}

func (a *sequenceAllocator) Next(ctx context.Context) (string, error) {
	seq, err := a.repo.NextBillSequence(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to allocate bill number: %w", err)
	}
	return fmt.Sprintf("%s-%06d", a.prefix, seq), nil
}
