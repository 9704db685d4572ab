package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone names work without a system tz database

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/campus-energy-week/internal/energy/archive"
)

var validate = validator.New()

type AppConfig struct {
	// ArchiveBaseURL is the directory holding the daily exports.
	ArchiveBaseURL string `validate:"required,url"`

	// ArchiveLocation is the zone used for "today" and for parsing timestamps.
	ArchiveLocation *time.Location `validate:"required"`

	// HTTPTimeout bounds each archive request.
	HTTPTimeout time.Duration `validate:"gt=0"`
	// RequestTimeout bounds a whole API request (up to seven archive loads).
	RequestTimeout time.Duration `validate:"gt=0"`

	FetchMaxRetries     int           `validate:"gte=0,lte=10"`
	FetchBackoffInitial time.Duration `validate:"gt=0"`
	FetchBackoffMax     time.Duration `validate:"gtefield=FetchBackoffInitial"`
	FetchMaxBodyBytes   int64         `validate:"gte=0"`

	// Day cache retention (HTTP server only).
	CacheMaxDays int           `validate:"gte=0"` // 0 disables the cache
	CacheMaxAge  time.Duration `validate:"gte=0"` // 0 = no expiry

	LogLevel slog.Level

	Port string `validate:"required,numeric"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}

	cfg.ArchiveBaseURL = getenvDefault("ARCHIVE_BASE_URL", archive.DefaultBaseURL)

	tz := getenvDefault("ARCHIVE_TIMEZONE", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid ARCHIVE_TIMEZONE: %w", err)
	}
	cfg.ArchiveLocation = loc

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", "30s", &cfg.HTTPTimeout},
		{"REQUEST_TIMEOUT", "2m", &cfg.RequestTimeout},
		{"FETCH_BACKOFF_INITIAL", "500ms", &cfg.FetchBackoffInitial},
		{"FETCH_BACKOFF_MAX", "5s", &cfg.FetchBackoffMax},
		{"CACHE_MAX_AGE", "24h", &cfg.CacheMaxAge},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getenvDefault(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	var maxBody int
	ints := []struct {
		key string
		def int
		dst *int
	}{
		// A single attempt per day unless retries are asked for.
		{"FETCH_MAX_RETRIES", 0, &cfg.FetchMaxRetries},
		{"FETCH_MAX_BODY_BYTES", 32 << 20, &maxBody},
		{"CACHE_MAX_DAYS", 14, &cfg.CacheMaxDays}, // two weeks of past days
	}
	for _, n := range ints {
		v, err := getenvInt(n.key, n.def)
		if err != nil {
			return nil, err
		}
		*n.dst = v
	}
	cfg.FetchMaxBodyBytes = int64(maxBody)

	level, err := parseLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// BackoffConfig returns the archive client's retry settings.
func (c *AppConfig) BackoffConfig() archive.BackoffConfig {
	return archive.BackoffConfig{
		MaxRetries:      c.FetchMaxRetries,
		InitialInterval: c.FetchBackoffInitial,
		MaxInterval:     c.FetchBackoffMax,
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return level, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
