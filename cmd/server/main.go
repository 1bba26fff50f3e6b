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
	echomw "github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"shopsquad/internal/config"
	"shopsquad/internal/handlers"
	"shopsquad/internal/metrics"
	"shopsquad/internal/middleware"
	"shopsquad/internal/products"
	"shopsquad/internal/services"
	"shopsquad/internal/session"
	"shopsquad/internal/squads"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Firebase
	var (
		fb   *services.Firebase
		auth session.Provider
	)
	fb, err = services.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseProjectID)
	if err != nil {
		logger.Warn("firebase initialization failed, sign-in is disabled", "error", err)
	} else {
		auth = fb.Auth
	}

	// Initialize Database
	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		db, err = services.InitDB(cfg.DatabaseURL, !cfg.IsProduction())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := services.AutoMigrate(db, cfg.Backend == config.BackendPostgres); err != nil {
			logger.Error("failed to run database migrations", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("DATABASE_URL not set, reminders and notification preferences are disabled")
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

	backend, err := services.OpenBackend(ctx, cfg, services.BackendDeps{Firebase: fb, DB: db, Redis: cache}, logger)
	if err != nil {
		logger.Error("failed to open squad store", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	m := metrics.New()
	squadHooks := squads.Hooks{}
	if db != nil {
		squadHooks = tasks.NewScheduler(tasks.NewGormStore(db), cfg.ReminderLead, logger).Hooks(squadHooks)
	}
	directory := squads.NewDirectory(backend, squads.WithHooks(m.SquadHooks(squadHooks)), squads.WithLogger(logger))
	manager := products.NewManager(backend, m.ProductHooks(), logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Middleware
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	// Static file serving
	e.Static("/static", "web/static")

	deps := handlers.Deps{
		Directory: directory,
		Products:  manager,
		Auth:      auth,
		DB:        db,
		Cache:     cache,
		Metrics:   m,
		Config:    cfg,
		Logger:    logger,
		Shutdown:  ctx.Done(),
	}
	if db != nil {
		deps.Preferences = tasks.NewGormStore(db)
	}
	handlers.RegisterRoutes(e, deps)

	go func() {
		logger.Info("server starting", "port", cfg.Port, "backend", cfg.Backend)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
