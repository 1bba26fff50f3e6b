package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"shopsquad/internal/config"
	"shopsquad/internal/metrics"
	"shopsquad/internal/middleware"
	"shopsquad/internal/products"
	"shopsquad/internal/services"
	"shopsquad/internal/session"
	"shopsquad/internal/squads"
)

// Deps is everything the HTTP layer needs. Auth, DB, Preferences, Cache and
// Metrics may be nil; the routes that depend on them degrade accordingly.
type Deps struct {
	Directory   *squads.Directory
	Products    *products.Manager
	Auth        session.Provider
	DB          *gorm.DB
	Preferences PreferenceStore // backs /api/me/notifications
	Cache       *services.RedisCache
	Metrics     *metrics.Metrics
	Config      config.Config
	Logger      *slog.Logger
	// Shutdown, when closed, ends open event streams so the server can drain.
	Shutdown <-chan struct{}
}

// RegisterRoutes wires every page and API route onto e.
func RegisterRoutes(e *echo.Echo, deps Deps) {
	var (
		verifier session.Verifier
		issuer   session.Issuer
	)
	if deps.Auth != nil {
		verifier, issuer = deps.Auth, deps.Auth
	}

	authHandler := NewAuthHandler(issuer, deps.Config)
	squadHandler := NewSquadHandler(deps.Directory, deps.Config.AppURL, deps.Config.DisplayTimezone)
	productHandler := NewProductHandler(squadHandler, deps.Products)
	streamHandler := NewStreamHandler(deps.Directory, deps.Metrics, deps.Logger)
	streamHandler.shutdown = deps.Shutdown
	catalogHandler := NewCatalogHandler(deps.Cache)
	prefHandler := NewUserPreferenceHandler(deps.Preferences, deps.Logger)

	// Public Routes
	e.GET("/healthz", Health(deps))
	e.GET("/login", authHandler.LoginPage)
	e.POST("/auth/login", authHandler.HandleLogin)
	e.POST("/auth/logout", authHandler.HandleLogout)
	e.GET("/logout", authHandler.HandleLogout)
	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}

	requireAuth := middleware.RequireAuth(verifier)

	// Pages
	e.GET("/", func(c echo.Context) error { return redirect(c, "/squads") })
	pages := e.Group("", requireAuth)
	pages.GET("/squads", squadHandler.ListPage)
	pages.POST("/squads", squadHandler.CreateFromForm)
	pages.GET("/squads/:id", squadHandler.DetailPage)
	pages.POST("/squads/:id/products", productHandler.AddFromForm)
	pages.POST("/squads/:id/products/:productId/assignee", productHandler.AssignFromForm)
	pages.GET("/join/:id", squadHandler.JoinPage)
	pages.POST("/join/:id", squadHandler.JoinFromForm)

	// API
	api := e.Group("/api", requireAuth)
	api.GET("/squads", squadHandler.List)
	api.POST("/squads", squadHandler.Create)
	api.GET("/squads/stream", streamHandler.Squads)
	api.GET("/squads/:id", squadHandler.Get)
	api.PATCH("/squads/:id", squadHandler.Update)
	api.POST("/squads/:id/join", squadHandler.Join)
	api.POST("/squads/:id/products", productHandler.Add)
	api.PUT("/squads/:id/products/:productId/assignee", productHandler.Assign)
	api.GET("/catalog", catalogHandler.Search)
	api.GET("/me/notifications", prefHandler.GetUserPreference)
	api.PUT("/me/notifications", prefHandler.UpdateUserPreference)
}

// HealthResponse reports the state of each configured dependency
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health pings the database and Redis when they are configured.
func Health(deps Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		resp := HealthResponse{Status: "ok", Checks: map[string]string{}}
		if deps.DB != nil {
			resp.Checks["database"] = "ok"
			sqlDB, err := deps.DB.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				resp.Status, resp.Checks["database"] = "degraded", err.Error()
			}
		}
		if deps.Cache != nil {
			resp.Checks["redis"] = "ok"
			if err := deps.Cache.Client().Ping(ctx).Err(); err != nil {
				resp.Status, resp.Checks["redis"] = "degraded", err.Error()
			}
		}

		code := http.StatusOK
		if resp.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, resp)
	}
}
