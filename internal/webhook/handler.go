// Package webhook exposes the HTTP surface of the flow runtime: one
// webhook route per bot plus health and metrics endpoints.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/botforge/flowengine/internal/engine"
	apperrors "github.com/botforge/flowengine/internal/errors"
	"github.com/botforge/flowengine/internal/idempotency"
	"github.com/botforge/flowengine/internal/ratelimit"
	"github.com/botforge/flowengine/pkg/metrics"
)

// UpdateHandler is the engine contract the webhook depends on.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, botID string, upd engine.Update) error
}

// Handler processes POST /webhook/{bot_id} deliveries.
type Handler struct {
	engine     UpdateHandler
	deduper    idempotency.Deduper
	limiter    ratelimit.Limiter
	errHandler *apperrors.Handler
	log        *slog.Logger
}

// NewHandler builds the webhook handler. deduper and limiter are optional;
// nil disables the corresponding gate.
func NewHandler(eng UpdateHandler, deduper idempotency.Deduper, limiter ratelimit.Limiter, errHandler *apperrors.Handler, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}

	return &Handler{
		engine:     eng,
		deduper:    deduper,
		limiter:    limiter,
		errHandler: errHandler,
		log:        log,
	}
}

// HandleUpdate decodes the envelope, runs the dedupe and rate-limit gates,
// and invokes the engine. Any outcome that is not a configuration or
// processing failure answers 200, since Telegram redelivers everything
// else.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	botID := r.PathValue("bot_id")
	if botID == "" {
		respondError(w, http.StatusNotFound, "bot not found")
		return
	}

	ctx := r.Context()
	upd := decodeUpdate(r.Body)
	start := time.Now()

	if h.deduper != nil && upd.ID != 0 {
		seen, err := h.deduper.Seen(ctx, botID, upd.ID)
		if err != nil {
			// Dedupe is best-effort: losing Redis should not take the
			// webhook down, so the update is processed anyway.
			h.log.Warn("dedupe check failed, processing update anyway",
				slog.String("bot_id", botID),
				slog.Any("error", err),
			)
		} else if seen {
			metrics.RecordDuplicateUpdate()
			respondOK(w)
			return
		}
	}

	if h.limiter != nil && upd.Kind != engine.UpdateUnknown {
		allowed, err := h.limiter.Allow(ctx, botID, upd.UserID)
		if err != nil {
			h.log.Warn("rate limit check failed, processing update anyway",
				slog.String("bot_id", botID),
				slog.Any("error", err),
			)
		} else if !allowed {
			h.log.Info("update dropped by rate limit",
				slog.String("bot_id", botID),
				slog.Int64("tg_user_id", upd.UserID),
			)
			metrics.RecordUpdate(string(upd.Kind), "rate_limited", time.Since(start))
			respondOK(w)
			return
		}
	}

	err := h.engine.HandleUpdate(ctx, botID, upd)

	switch {
	case err == nil:
		metrics.RecordUpdate(string(upd.Kind), "ok", time.Since(start))
		respondOK(w)

	case errors.Is(err, engine.ErrBotNotFound):
		metrics.RecordUpdate(string(upd.Kind), "bot_not_found", time.Since(start))
		respondError(w, http.StatusNotFound, "bot not found or missing token")

	case errors.Is(err, engine.ErrLocked):
		// A concurrent update for the same pair is in flight; this one is
		// intentionally dropped, not queued or retried.
		metrics.RecordUpdate(string(upd.Kind), "locked", time.Since(start))
		respondOK(w)

	default:
		h.report(ctx, err)
		metrics.RecordUpdate(string(upd.Kind), "error", time.Since(start))
		respondError(w, http.StatusInternalServerError, "update processing failed")
	}
}

func (h *Handler) report(ctx context.Context, err error) {
	if h.errHandler != nil {
		h.errHandler.Handle(ctx, err)
		return
	}
	h.log.Error("update processing failed", slog.Any("error", err))
}

func respondOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
