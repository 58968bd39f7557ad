// Package idempotency deduplicates webhook deliveries. Telegram retries
// any update the handler did not answer 200, so the same update_id can
// arrive more than once; replays must not re-run the flow.
package idempotency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	updateKeyPattern = "update:%s:%d"

	// DefaultTTL covers Telegram's redelivery horizon with a wide margin.
	DefaultTTL = 24 * time.Hour
)

// Deduper reports whether an update was already processed.
type Deduper interface {
	// Seen atomically marks (bot, update) as processed and reports whether
	// it had been marked before.
	Seen(ctx context.Context, botID string, updateID int64) (bool, error)
}

// RedisDeduper implements Deduper with SETNX markers.
type RedisDeduper struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
}

// NewRedisDeduper creates a Redis-backed deduper with the default TTL.
func NewRedisDeduper(client *redis.Client, log *slog.Logger) *RedisDeduper {
	if log == nil {
		log = slog.Default()
	}

	return &RedisDeduper{
		client: client,
		log:    log,
		ttl:    DefaultTTL,
	}
}

// Seen marks the update and reports a replay. Updates without an id bypass
// deduplication.
func (d *RedisDeduper) Seen(ctx context.Context, botID string, updateID int64) (bool, error) {
	if updateID == 0 {
		return false, nil
	}

	key := fmt.Sprintf(updateKeyPattern, botID, updateID)
	created, err := d.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		d.log.Error("failed to mark update as seen", slog.String("key", key), slog.Any("error", err))
		return false, err
	}

	return !created, nil
}
