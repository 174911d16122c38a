package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNotAcquired is returned when a lock could not be obtained within its
// wait window. Callers use it to tell "busy, retry later" apart from a
// business failure such as insufficient stock.
var ErrNotAcquired = errors.New("lock not acquired within wait window")

const retryBackoff = 100 * time.Millisecond

// Manager provides named distributed mutual exclusion backed by Redis.
// Every lock has a bounded wait-to-acquire and a bounded hold-lease after
// which it auto-expires even if the holder crashed.
type Manager struct {
	locker *redislock.Client
	logger *zap.Logger
}

func NewManager(client *redis.Client, logger *zap.Logger) *Manager {
	return &Manager{
		locker: redislock.New(client),
		logger: logger,
	}
}

// WithLock runs fn while holding the named lock. It waits up to wait for the
// lock and holds it for at most lease. Returns ErrNotAcquired when the wait
// window elapses without obtaining the lock; fn is not invoked in that case.
func (m *Manager) WithLock(ctx context.Context, name string, wait, lease time.Duration, fn func(ctx context.Context) error) error {
	retries := int(wait / retryBackoff)
	if retries < 1 {
		retries = 1
	}

	lock, err := m.locker.Obtain(ctx, name, lease, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(retryBackoff), retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		m.logger.Warn("failed to acquire lock", zap.String("lock", name))
		return ErrNotAcquired
	}
	if err != nil {
		return fmt.Errorf("obtain lock %q: %w", name, err)
	}

	defer func() {
		if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil &&
			!errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			m.logger.Error("failed to release lock", zap.String("lock", name), zap.Error(releaseErr))
		}
	}()

	return fn(ctx)
}
