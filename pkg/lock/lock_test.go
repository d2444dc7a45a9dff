package lock_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medhq/hospital-api/pkg/lock"
)

func TestMemoryLockerSerializesSameKey(t *testing.T) {
	locker := lock.NewMemoryLocker()

	const n = 100
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), "practitioner:1", func(ctx context.Context) error {
				// Unsynchronized increment; only safe if the lock holds.
				counter++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, n, counter)
}

func TestMemoryLockerIndependentKeys(t *testing.T) {
	locker := lock.NewMemoryLocker()

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = locker.WithLock(context.Background(), "a", func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	// A different key must not block behind "a".
	err := locker.WithLock(context.Background(), "b", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	close(release)
}

func TestMemoryLockerCancelledContext(t *testing.T) {
	locker := lock.NewMemoryLocker()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := locker.WithLock(ctx, "a", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}
