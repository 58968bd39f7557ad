package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/botforge/flowengine/internal/engine"
	"github.com/botforge/flowengine/pkg/metrics"
)

const (
	flowLockKeyPattern = "flow:lock:%s:%d"

	// defaultLockTTL caps how long a crashed handler can hold the lock.
	defaultLockTTL = 10 * time.Second
	// defaultLockWait is how long a competing update waits before being
	// dropped instead of queued.
	defaultLockWait = 3 * time.Second
	lockRetryStep   = 50 * time.Millisecond
)

// FlowLocker serializes updates per (bot, end-user) pair with a Redis
// SETNX lock, so concurrent deliveries for the same pair cannot race on
// the session row.
type FlowLocker struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
	wait   time.Duration
}

// NewFlowLocker creates a Redis-backed locker with default TTL and wait.
func NewFlowLocker(client *redis.Client, log *slog.Logger) *FlowLocker {
	if log == nil {
		log = slog.Default()
	}

	return &FlowLocker{
		client: client,
		log:    log,
		ttl:    defaultLockTTL,
		wait:   defaultLockWait,
	}
}

// Acquire takes the lock for (bot, user), retrying within the wait budget.
// The returned release function must be called once processing finishes.
func (l *FlowLocker) Acquire(ctx context.Context, botID string, userID int64) (func(), error) {
	key := fmt.Sprintf(flowLockKeyPattern, botID, userID)
	deadline := time.Now().Add(l.wait)

	for {
		acquired, err := l.client.SetNX(ctx, key, 1, l.ttl).Result()
		if err != nil {
			l.log.Error("failed to acquire flow lock", slog.String("key", key), slog.Any("error", err))
			return nil, fmt.Errorf("acquire flow lock: %w", err)
		}

		if acquired {
			metrics.LockAcquired()
			return func() { l.release(key) }, nil
		}

		if time.Now().After(deadline) {
			l.log.Warn("flow lock still held after wait budget", slog.String("key", key))
			return nil, engine.ErrLocked
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryStep):
		}
	}
}

func (l *FlowLocker) release(key string) {
	metrics.LockReleased()

	// Release on a fresh context: the update's context may already be
	// cancelled when the deferred release runs.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := l.client.Del(ctx, key).Err(); err != nil {
		l.log.Error("failed to release flow lock", slog.String("key", key), slog.Any("error", err))
	}
}
