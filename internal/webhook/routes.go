package webhook

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/botforge/flowengine/internal/health"
	"github.com/botforge/flowengine/pkg/logger"
)

// NewRouter wires the webhook, health and metrics routes.
func NewRouter(h *Handler, checker *health.Checker, log *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhook/{bot_id}", h.HandleUpdate)
	mux.Handle("GET /healthz", healthHandler(checker))
	mux.Handle("GET /metrics", promhttp.Handler())

	return logger.Middleware(Logging(log)(mux))
}

func healthHandler(checker *health.Checker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		results := map[string]string{}
		if checker != nil {
			results = checker.Check(r.Context())
		}

		status := http.StatusOK
		for _, result := range results {
			if result != "OK" {
				status = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(results)
	})
}
