package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireWithRetryEventuallyWins(t *testing.T) {
	calls := 0
	ok, err := acquireWithRetry(context.Background(), 5, time.Millisecond, func(ctx context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, calls)
}

func TestAcquireWithRetryGivesUp(t *testing.T) {
	calls := 0
	ok, err := acquireWithRetry(context.Background(), 4, time.Millisecond, func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 4, calls)
}

func TestAcquireWithRetryStopsOnError(t *testing.T) {
	boom := errors.New("connection refused")
	calls := 0
	_, err := acquireWithRetry(context.Background(), 5, time.Millisecond, func(ctx context.Context) (bool, error) {
		calls++
		return false, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestAcquireWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	ok, err := acquireWithRetry(ctx, 10, 10*time.Millisecond, func(ctx context.Context) (bool, error) {
		calls++
		cancel()
		return false, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}
