// Package config reads process configuration from the environment, after
// loading a .env file when one is present.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Backend string

const (
	BackendMemory    Backend = "memory"
	BackendFirestore Backend = "firestore"
	BackendPostgres  Backend = "postgres"
)

type Config struct {
	Env      string
	Port     string
	AppURL   string
	LogLevel string

	Backend Backend

	FirebaseCredentialsPath string
	FirebaseProjectID       string
	FirebaseAPIKey          string
	FirebaseAuthDomain      string

	DatabaseURL string
	RedisURL    string

	DisplayTimezone *time.Location
	ReminderLead    time.Duration
	WorkerInterval  time.Duration

	SMTP SMTPConfig

	WahaBaseURL     string
	WahaAPIKey      string
	WahaCountryCode string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Enabled reports whether enough is configured to send mail.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != ""
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using system environment")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv and validates it.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		Env:                     get("ENV", "development"),
		Port:                    get("PORT", "8080"),
		LogLevel:                get("LOG_LEVEL", "info"),
		Backend:                 Backend(strings.ToLower(get("BACKEND", string(BackendFirestore)))),
		FirebaseCredentialsPath: get("FIREBASE_CREDENTIALS_PATH", "./firebase-service-account.json"),
		FirebaseProjectID:       get("FIREBASE_PROJECT_ID", ""),
		FirebaseAPIKey:          get("FIREBASE_API_KEY", ""),
		FirebaseAuthDomain:      get("FIREBASE_AUTH_DOMAIN", ""),
		DatabaseURL:             get("DATABASE_URL", ""),
		RedisURL:                get("REDIS_URL", ""),
		WahaBaseURL:             get("WAHA_BASE_URL", ""),
		WahaAPIKey:              get("WAHA_API_KEY", ""),
		WahaCountryCode:         get("WAHA_COUNTRY_CODE", ""),
		SMTP: SMTPConfig{
			Host:     get("SMTP_HOST", ""),
			User:     get("SMTP_USER", ""),
			Password: get("SMTP_PASS", ""),
			From:     get("EMAIL_FROM", ""),
		},
	}
	cfg.AppURL = strings.TrimRight(get("APP_URL", "http://localhost:"+cfg.Port), "/")

	var err error
	if cfg.SMTP.Port, err = strconv.Atoi(get("SMTP_PORT", "587")); err != nil {
		return Config{}, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	if cfg.ReminderLead, err = time.ParseDuration(get("REMINDER_LEAD", "24h")); err != nil {
		return Config{}, fmt.Errorf("invalid REMINDER_LEAD: %w", err)
	}
	if cfg.WorkerInterval, err = time.ParseDuration(get("WORKER_INTERVAL", "5m")); err != nil {
		return Config{}, fmt.Errorf("invalid WORKER_INTERVAL: %w", err)
	}
	if cfg.WorkerInterval <= 0 {
		return Config{}, fmt.Errorf("invalid WORKER_INTERVAL: must be positive")
	}
	if cfg.DisplayTimezone, err = time.LoadLocation(get("DISPLAY_TIMEZONE", "Local")); err != nil {
		return Config{}, fmt.Errorf("invalid DISPLAY_TIMEZONE: %w", err)
	}

	switch cfg.Backend {
	case BackendMemory, BackendFirestore:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown BACKEND %q", cfg.Backend)
	}

	return cfg, nil
}
