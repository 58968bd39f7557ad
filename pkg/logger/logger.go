// Package logger builds the process-wide slog logger: JSON or text output,
// optional file rotation, secret masking and Sentry fan-out.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/botforge/flowengine/pkg/config"
)

// level is shared by every handler the package builds so SetLevel can
// retune a running process.
var level = new(slog.LevelVar)

// New builds the root logger from config.
func New(cfg config.Config) *slog.Logger {
	level.Set(parseLevel(cfg.Logger.Level))

	var out io.Writer = os.Stdout
	if cfg.Logger.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.Logger.File,
			MaxSize:    cfg.Logger.MaxSizeMB,
			MaxBackups: cfg.Logger.MaxBackups,
			MaxAge:     cfg.Logger.MaxAgeDays,
			Compress:   true,
		}
	}

	opts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if strings.EqualFold(cfg.Logger.Format, "text") {
		base = slog.NewTextHandler(out, opts)
	} else {
		base = slog.NewJSONHandler(out, opts)
	}

	handlers := []slog.Handler{NewMaskingHandler(base)}
	if cfg.Sentry.Enabled {
		handlers = append(handlers, slogsentry.Option{
			Level: slog.LevelError,
		}.NewSentryHandler())
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = newFanoutHandler(handlers...)
	}

	return slog.New(handler).With(slog.String("env", cfg.AppEnv))
}

// SetLevel retunes the shared log level at runtime. Unknown values are
// ignored.
func SetLevel(raw string) {
	if raw == "" {
		return
	}
	level.Set(parseLevel(raw))
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
