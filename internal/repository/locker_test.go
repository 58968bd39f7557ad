package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/botforge/flowengine/internal/engine"
)

func newTestLocker(t *testing.T) (*FlowLocker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewFlowLocker(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return locker, mr
}

func TestFlowLocker_AcquireAndRelease(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "bot-1", 42)
	require.NoError(t, err)
	require.True(t, mr.Exists("flow:lock:bot-1:42"))

	release()
	require.False(t, mr.Exists("flow:lock:bot-1:42"))
}

func TestFlowLocker_ContentionTimesOut(t *testing.T) {
	locker, _ := newTestLocker(t)
	locker.wait = 150 * time.Millisecond
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "bot-1", 42)
	require.NoError(t, err)
	defer release()

	_, err = locker.Acquire(ctx, "bot-1", 42)
	require.ErrorIs(t, err, engine.ErrLocked)
}

func TestFlowLocker_DistinctPairsDoNotContend(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, "bot-1", 42)
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := locker.Acquire(ctx, "bot-1", 43)
	require.NoError(t, err)
	defer releaseB()

	releaseC, err := locker.Acquire(ctx, "bot-2", 42)
	require.NoError(t, err)
	defer releaseC()
}

func TestFlowLocker_AcquireAfterRelease(t *testing.T) {
	locker, _ := newTestLocker(t)
	locker.wait = 150 * time.Millisecond
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "bot-1", 42)
	require.NoError(t, err)
	release()

	release2, err := locker.Acquire(ctx, "bot-1", 42)
	require.NoError(t, err)
	release2()
}
