// Package config builds process configuration from the environment so main
// stays lean. A .env file is honoured when present (local development).
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"consentgate/internal/notify"
	"consentgate/internal/terms/service"
)

// Server captures everything the process needs at startup.
type Server struct {
	Addr          string
	SiteTitle     string
	ManageTOSURL  string
	JWTSigningKey string
	AdminToken    string

	PostgresURL string
	RedisURL    string

	Consent service.Config
	SMTP    notify.SMTPConfig
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	// Missing .env is fine; the environment may be fully populated already.
	_ = godotenv.Load()

	cfg := Server{
		Addr:          getenv("CONSENTGATE_ADDR", ":8080"),
		SiteTitle:     getenv("CONSENTGATE_SITE_TITLE", "consentgate"),
		ManageTOSURL:  getenv("CONSENTGATE_MANAGE_TOS_URL", "/admin/terms"),
		JWTSigningKey: getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		AdminToken:    os.Getenv("CONSENTGATE_ADMIN_TOKEN"),
		PostgresURL:   os.Getenv("CONSENTGATE_POSTGRES_URL"),
		RedisURL:      os.Getenv("CONSENTGATE_REDIS_URL"),
		Consent: service.Config{
			GracePeriod:   secondsEnv("CONSENTGATE_GRACE_SECONDS", service.DefaultGracePeriod),
			CheckInterval: secondsEnv("CONSENTGATE_CHECK_INTERVAL", service.DefaultCheckInterval),
		},
		SMTP: notify.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getenv("SMTP_PORT", "587"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			FromName: os.Getenv("SMTP_FROM_NAME"),
		},
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func secondsEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		slog.Warn("ignoring invalid duration setting", "key", key, "value", raw)
		return fallback
	}
	return time.Duration(n) * time.Second
}
