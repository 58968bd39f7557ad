package redis

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	goredis "github.com/redis/go-redis/v9"
)

var (
	redisCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_commands_total",
			Help: "Total number of Redis commands by name and status.",
		},
		[]string{"command", "status"},
	)
	redisCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_command_duration_seconds",
			Help:    "Redis command latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
)

// metricsHook instruments every command issued through the client,
// including SETNX and pipelined INCR which have no typed wrapper here.
type metricsHook struct{}

func newMetricsHook() *metricsHook {
	return &metricsHook{}
}

func (h *metricsHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return next
}

func (h *metricsHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		observe(cmd.Name(), start, err)
		return err
	}
}

func (h *metricsHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		for _, cmd := range cmds {
			observe(cmd.Name(), start, cmd.Err())
		}
		return err
	}
}

func observe(command string, start time.Time, err error) {
	status := "ok"
	if err != nil && err != goredis.Nil {
		status = "error"
	}

	redisCommandsTotal.WithLabelValues(command, status).Inc()
	redisCommandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}

var _ goredis.Hook = (*metricsHook)(nil)
