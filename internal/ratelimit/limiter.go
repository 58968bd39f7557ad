// Package ratelimit throttles inbound webhook updates per (bot, end-user)
// pair. Over-limit updates are acknowledged and dropped: answering with an
// error would only make Telegram redeliver them.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const limiterKeyPattern = "ratelimit:%s:%d"

// Limiter decides whether an update from (bot, user) may be processed.
type Limiter interface {
	Allow(ctx context.Context, botID string, userID int64) (bool, error)
}

// RedisLimiter implements a fixed-window counter per (bot, user).
type RedisLimiter struct {
	client *redis.Client
	log    *slog.Logger
	limit  int64
	window time.Duration
}

// NewRedisLimiter creates a limiter allowing limit updates per window.
func NewRedisLimiter(client *redis.Client, log *slog.Logger, limit int, window time.Duration) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}
	if limit <= 0 {
		limit = 30
	}
	if window <= 0 {
		window = time.Minute
	}

	return &RedisLimiter{
		client: client,
		log:    log,
		limit:  int64(limit),
		window: window,
	}
}

// Allow counts the update against the current window.
func (l *RedisLimiter) Allow(ctx context.Context, botID string, userID int64) (bool, error) {
	key := fmt.Sprintf(limiterKeyPattern, botID, userID)

	pipe := l.client.TxPipeline()
	countCmd := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error("rate limiter pipeline failed", slog.String("key", key), slog.Any("error", err))
		return false, err
	}

	return countCmd.Val() <= l.limit, nil
}
