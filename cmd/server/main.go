// Package main is the entrypoint for the rankpulse scheduler service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marketops/rankpulse/internal/api"
	"github.com/marketops/rankpulse/internal/api/handler"
	mw "github.com/marketops/rankpulse/internal/api/middleware"
	"github.com/marketops/rankpulse/internal/api/response"
	"github.com/marketops/rankpulse/internal/cache"
	"github.com/marketops/rankpulse/internal/config"
	engine "github.com/marketops/rankpulse/internal/engine/factory"
	"github.com/marketops/rankpulse/internal/notify"
	"github.com/marketops/rankpulse/internal/scheduler"
	"github.com/marketops/rankpulse/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"engine_provider", cfg.Engine.Provider,
		"scheduler_enabled", cfg.Scheduler.Enabled,
		"env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create analysis engine
	eng, err := engine.NewEngine(cfg.Engine)
	if err != nil {
		return fmt.Errorf("create analysis engine: %w", err)
	}
	slog.Info("analysis engine initialized", "provider", eng.Name())

	// 6. Create notifier
	var notifier notify.Dispatcher
	if cfg.Notify.SlackWebhookURL != "" {
		notifier = notify.NewSlackDispatcher(cfg.Notify.SlackWebhookURL)
		slog.Info("slack notifications enabled", "channel", cfg.Notify.Channel)
	} else {
		notifier = notify.LogDispatcher{}
		slog.Info("no slack webhook configured, notifications go to the log")
	}

	// 7. Create store, executor, scheduler
	pgStore := store.NewPostgresStore(pool)
	exec := scheduler.NewExecutor(pgStore, eng, notifier, redisCache, cfg.Notify.Channel)
	sched := scheduler.New(pgStore, exec, redisCache, cfg.Scheduler)

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	} else {
		slog.Info("periodic trigger disabled, relying on the poll endpoint")
	}

	// 8. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:      healthHandler(pgStore, redisCache),
		PollHandler:        handler.NewPollHandler(cfg.Scheduler.PollToken, sched),
		RunNowHandler:      handler.NewRunNowHandler(sched),
		GetScheduleHandler: handler.NewGetScheduleHandler(pgStore),
		ListRunsHandler:    handler.NewListRunsHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
