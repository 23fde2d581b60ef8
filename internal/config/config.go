// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// JWTSecret signs and verifies HS256 bearer tokens. Required.
	JWTSecret string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// NATSURL is the NATS server to publish live positions to.
	// Empty disables publishing.
	NATSURL string

	// MetricsAddr is the listen address for the Prometheus /metrics server.
	// Empty disables the metrics listener.
	MetricsAddr string

	// ReminderCooldown is the minimum gap between proximity reminders for
	// the same student. Defaults to 15m. Set REMINDER_COOLDOWN to a Go
	// duration string to override.
	ReminderCooldown time.Duration

	// ReminderQueueSize bounds the background task queue. Defaults to 256.
	ReminderQueueSize int
}

// Load reads configuration from environment variables and returns a Config.
// A .env file in the working directory is loaded first when present, without
// overriding variables already set in the environment.
// Returns an error listing any required variables that are not set.
func Load() (Config, error) {
	// Best effort: absence of a .env file is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		NATSURL:     os.Getenv("NATS_URL"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	cooldown, err := parseDuration(getEnv("REMINDER_COOLDOWN", "15m"))
	if err != nil {
		return Config{}, fmt.Errorf("REMINDER_COOLDOWN: %w", err)
	}
	cfg.ReminderCooldown = cooldown

	queueSize, err := parsePositiveInt(getEnv("REMINDER_QUEUE_SIZE", "256"))
	if err != nil {
		return Config{}, fmt.Errorf("REMINDER_QUEUE_SIZE: %w", err)
	}
	cfg.ReminderQueueSize = queueSize

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %q", s)
	}
	return d, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %q", s)
	}
	return n, nil
}
