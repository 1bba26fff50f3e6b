package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"shopsquad/internal/config"
	"shopsquad/internal/metrics"
	"shopsquad/internal/services"
	"shopsquad/internal/tasks"
	"shopsquad/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL not set")
		os.Exit(1)
	}

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	db, err := services.InitDB(cfg.DatabaseURL, false)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := services.AutoMigrate(db, cfg.Backend == config.BackendPostgres); err != nil {
		logger.Error("failed to run database migrations", "error", err)
		os.Exit(1)
	}

	var cache *services.RedisCache
	if cfg.RedisURL != "" {
		cache, err = services.NewRedisCache(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer cache.Close()
	}

	var fb *services.Firebase
	if cfg.Backend == config.BackendFirestore {
		fb, err = services.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseProjectID)
		if err != nil {
			logger.Error("firebase initialization failed", "error", err)
			os.Exit(1)
		}
	}
	backend, err := services.OpenBackend(ctx, cfg, services.BackendDeps{Firebase: fb, DB: db, Redis: cache}, logger)
	if err != nil {
		logger.Error("failed to open squad store", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	gormStore := tasks.NewGormStore(db)
	deps := tasks.Deps{
		Tasks:       gormStore,
		Preferences: gormStore,
		Sender:      services.NewNotifications(cfg),
		Squads:      backend,
		Cache:       cache,
		Location:    cfg.DisplayTimezone,
		AppURL:      cfg.AppURL,
		Logger:      logger,
	}
	m := metrics.New()
	worker := tasks.NewWorker(tasks.DefineTasks(tasks.NewRegistry()), deps, cfg.WorkerInterval, m, cache)

	// metrics endpoint
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics endpoint stopped", "error", err)
		}
	}()

	logger.Info("worker started", "interval", cfg.WorkerInterval)
	worker.Run(ctx)
	logger.Info("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.Shutdown(shutdownCtx)
}
