// Package metrics exposes Prometheus collectors for the flow runtime.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_updates_total",
			Help: "Total number of webhook updates received labeled by kind and status",
		},
		[]string{"kind", "status"},
	)
	updateDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flow_update_duration_seconds",
			Help:    "Duration of webhook update handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	traversalHops = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flow_traversal_hops",
			Help:    "Number of nodes visited per update traversal",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 34, 64},
		},
	)
	outboundSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_outbound_sends_total",
			Help: "Total number of outbound Bot API sends labeled by block type and status",
		},
		[]string{"type", "status"},
	)
	invoicesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_invoices_total",
			Help: "Total number of invoices issued labeled by status",
		},
		[]string{"status"},
	)
	duplicateUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flow_duplicate_updates_total",
			Help: "Total number of webhook updates dropped as duplicate deliveries",
		},
	)
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_http_requests_total",
			Help: "Total number of HTTP requests labeled by method, path and status code",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flow_http_request_duration_seconds",
			Help:    "Duration of HTTP request handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	activeLocks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flow_active_locks",
			Help: "Number of per-user flow locks currently held by this process",
		},
	)
)

// RecordUpdate increments update counters and records handling duration.
func RecordUpdate(kind, status string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	updatesTotal.WithLabelValues(kind, status).Inc()
	updateDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordHops records the number of nodes visited during one traversal.
func RecordHops(n int) {
	traversalHops.Observe(float64(n))
}

// RecordSend increments the outbound send counter.
func RecordSend(blockType, status string) {
	outboundSendsTotal.WithLabelValues(blockType, status).Inc()
}

// RecordInvoice increments the invoice counter.
func RecordInvoice(status string) {
	invoicesTotal.WithLabelValues(status).Inc()
}

// RecordDuplicateUpdate increments the duplicate delivery counter.
func RecordDuplicateUpdate() {
	duplicateUpdatesTotal.Inc()
}

// RecordHTTPRequest increments the request counter and records duration.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, path).Observe(duration.Seconds())
}

// LockAcquired and LockReleased track the held-lock gauge.
func LockAcquired() {
	activeLocks.Inc()
}

func LockReleased() {
	activeLocks.Dec()
}
