package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/getsentry/sentry-go"
	_ "github.com/lib/pq"

	"github.com/botforge/flowengine/internal/database"
	"github.com/botforge/flowengine/internal/engine"
	apperrors "github.com/botforge/flowengine/internal/errors"
	"github.com/botforge/flowengine/internal/health"
	"github.com/botforge/flowengine/internal/idempotency"
	"github.com/botforge/flowengine/internal/ratelimit"
	"github.com/botforge/flowengine/internal/repository"
	"github.com/botforge/flowengine/internal/telegram"
	"github.com/botforge/flowengine/internal/webhook"
	"github.com/botforge/flowengine/pkg/config"
	"github.com/botforge/flowengine/pkg/graceful"
	"github.com/botforge/flowengine/pkg/logger"
	appredis "github.com/botforge/flowengine/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Log level follows the config file without a restart.
	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		logger.SetLevel(v.GetString("logger.level"))
		log.Info("config reloaded", slog.String("level", v.GetString("logger.level")))
	})

	log.Info("starting flow webhook service",
		slog.String("env", cfg.AppEnv),
		slog.Int("port", cfg.Server.Port),
	)

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Error("close database", slog.Any("error", cerr))
		}
	}()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	migrator := database.NewMigrator(db, log)
	if err := migrator.ApplyDir(ctx, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	redisClient, err := appredis.New(ctx, appredis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := redisClient.Close(); cerr != nil {
			log.Error("close redis", slog.Any("error", cerr))
		}
	}()

	registry := telegram.NewRegistry(cfg.Telegram.Timeout)
	dispatcher := telegram.NewDispatcher(registry, cfg.Telegram.ProviderToken, log)

	eng := engine.New(engine.Config{
		Bots:      repository.NewBotRepository(db, log),
		Graph:     repository.NewGraphRepository(db, log),
		Variables: repository.NewVariableRepository(db, log),
		Sessions:  repository.NewSessionRepository(db, log),
		Products:  repository.NewProductRepository(db, log),
		Outbox:    dispatcher,
		Locker:    repository.NewFlowLocker(redisClient.Client, log),
		Log:       log,
		MaxHops:   cfg.Engine.MaxHops,
	})

	deduper := idempotency.NewRedisDeduper(redisClient.Client, log)

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewRedisLimiter(redisClient.Client, log, cfg.RateLimit.Limit, cfg.RateLimit.Window)
	}

	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)
	handler := webhook.NewHandler(eng, deduper, limiter, errHandler, log)

	checker := health.NewChecker(log)
	checker.AddCheck("postgres", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(redisClient.Client))

	router := webhook.NewRouter(handler, checker, log)

	server := graceful.NewServer(log, &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}, cfg.Server.ShutdownTimeout)

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("flow webhook service stopped")
	return nil
}
