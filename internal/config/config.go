// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkordes/photo-trips/internal/domain"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// LogFormat is "json" (default) or "text" for colourised development output.
	LogFormat string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"].
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	// MigrateOnStart applies pending goose migrations before serving.
	MigrateOnStart bool

	// Cluster holds the auto-cluster thresholds used when a request omits them.
	Cluster domain.ClusterOptions

	// Geocoder configures reverse geocoding for trip names.
	Geocoder GeocoderConfig
}

// GeocoderConfig configures the Nominatim-compatible reverse geocoder.
// An empty URL disables place lookups; trip names then use coordinates.
type GeocoderConfig struct {
	URL           string
	UserAgent     string
	RatePerSecond float64
	Timeout       time.Duration
}

// Enabled reports whether a geocoder URL is configured.
func (g GeocoderConfig) Enabled() bool { return g.URL != "" }

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set, or
// naming each variable whose value cannot be parsed.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "json")),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		Geocoder: GeocoderConfig{
			URL:       os.Getenv("GEOCODER_URL"),
			UserAgent: getEnv("GEOCODER_USER_AGENT", "photo-trips/1.0"),
		},
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	var errs []error
	p := parser{errs: &errs}
	cfg.MaxBodyBytes = p.positiveInt("MAX_BODY_BYTES", 1<<20)
	cfg.MigrateOnStart = p.flag("MIGRATE_ON_START", false)
	cfg.Cluster = domain.ClusterOptions{
		MaxDistanceKm:   p.positiveFloat("CLUSTER_MAX_DISTANCE_KM", domain.DefaultMaxDistanceKm),
		MaxTimeGapHours: p.positiveFloat("CLUSTER_MAX_TIME_GAP_HOURS", domain.DefaultMaxTimeGapHours),
		MinSize:         int(p.positiveInt("CLUSTER_MIN_SIZE", domain.DefaultMinSize)),
	}
	cfg.Geocoder.RatePerSecond = p.positiveFloat("GEOCODER_RATE_PER_SEC", 1)
	cfg.Geocoder.Timeout = p.duration("GEOCODER_TIMEOUT", 5*time.Second)

	switch cfg.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT: must be json or text, got %q", cfg.LogFormat))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// parser reads typed optional variables, collecting one error per bad value.
type parser struct {
	errs *[]error
}

func (p parser) fail(key, v string, err error) {
	*p.errs = append(*p.errs, fmt.Errorf("%s: invalid value %q: %w", key, v, err))
}

func (p parser) positiveInt(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err == nil && n <= 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p parser) positiveFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err == nil && f <= 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return f
}

func (p parser) flag(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return b
}

func (p parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err == nil && d <= 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
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
