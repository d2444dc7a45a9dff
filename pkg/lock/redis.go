package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// A held lease is usually released within milliseconds, so a few short
// retries turn most same-key collisions into a brief wait instead of a
// spurious rejection.
const (
	acquireAttempts = 5
	acquireDelay    = 50 * time.Millisecond
)

// NewRedisLocker creates a locker backed by a per-key Redis SETNX lease.
func NewRedisLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{client: client, ttl: ttl}
}

func (l *redisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lockKey := fmt.Sprintf("lock:%s", key)
	token := uuid.NewString()

	ok, err := acquireWithRetry(ctx, acquireAttempts, acquireDelay, func(ctx context.Context) (bool, error) {
		return l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	})
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrNotAcquired
	}

	defer func() {
		_ = l.release(ctx, lockKey, token)
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(lockCtx)
}

// Release only deletes the key when the token still matches, so an expired
// lease cannot delete a lock now held by someone else.
var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// acquireWithRetry calls try until it reports the lease acquired, an error,
// exhausted attempts, or a cancelled context.
func acquireWithRetry(ctx context.Context, attempts int, delay time.Duration, try func(context.Context) (bool, error)) (bool, error) {
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(delay):
			}
		}
		ok, err := try(ctx)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}
