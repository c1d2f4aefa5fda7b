// Package config loads server configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mcoot/puzzlegame/internal/services/lifecycle"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// minOwnerSecretLength matches the owner issuer's HS256 key requirement
const minOwnerSecretLength = 16

// Config is the full server configuration
type Config struct {
	Server    Server
	Log       Log
	Storage   Storage
	Sessions  Sessions
	Owner     Owner
	Auth      Auth
	Telemetry Telemetry
}

// Server controls the HTTP listener
type Server struct {
	Host            string        `env:"PUZZLE_HOST"`
	Port            int           `env:"PUZZLE_PORT"             envDefault:"8080"`
	ReadTimeout     time.Duration `env:"PUZZLE_READ_TIMEOUT"     envDefault:"15s"`
	WriteTimeout    time.Duration `env:"PUZZLE_WRITE_TIMEOUT"    envDefault:"0s"`
	ShutdownTimeout time.Duration `env:"PUZZLE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	StaticDir       string        `env:"PUZZLE_STATIC_DIR"`
}

// Log controls the slog handler
type Log struct {
	Level  slog.Level `env:"LOG_LEVEL"  envDefault:"info"`
	Format string     `env:"LOG_FORMAT" envDefault:"json"`
}

// Storage selects and configures the session store
type Storage struct {
	Type        string `env:"STORAGE_TYPE" envDefault:"memory"`
	RedisURL    string `env:"REDIS_URL"    envDefault:"redis://localhost:6379"`
	SQLitePath  string `env:"SQLITE_PATH"  envDefault:"puzzlegame.db"`
	DatabaseURL string `env:"DATABASE_URL"`
}

// Sessions controls lifecycle behaviour and the puzzle catalog
type Sessions struct {
	CompletionPolicy string        `env:"COMPLETION_POLICY" envDefault:"idempotent"`
	CatalogPath      string        `env:"CATALOG_PATH"`
	HubCleanup       time.Duration `env:"SSE_HUB_CLEANUP_INTERVAL" envDefault:"1m"`
}

// Owner configures anonymous owner tokens
type Owner struct {
	Secret string        `env:"OWNER_TOKEN_SECRET"`
	TTL    time.Duration `env:"OWNER_TOKEN_TTL" envDefault:"720h"`
}

// Auth configures player login tokens
type Auth struct {
	TokenTTL        time.Duration `env:"AUTH_TOKEN_TTL"          envDefault:"24h"`
	JanitorInterval time.Duration `env:"AUTH_JANITOR_INTERVAL"   envDefault:"10m"`
}

// Telemetry configures OpenTelemetry tracing; an empty endpoint disables export
type Telemetry struct {
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"puzzlegame"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the server configuration
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PUZZLE_PORT %d out of range", c.Server.Port))
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for redis storage"))
		}
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for sqlite storage"))
		}
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_TYPE %q must be one of memory, redis, sqlite, postgres", c.Storage.Type))
	}

	if _, err := c.CompletionPolicy(); err != nil {
		errs = append(errs, fmt.Errorf("COMPLETION_POLICY: %w", err))
	}

	if c.Owner.Secret != "" && len(c.Owner.Secret) < minOwnerSecretLength {
		errs = append(errs, fmt.Errorf("OWNER_TOKEN_SECRET must be at least %d bytes", minOwnerSecretLength))
	}
	if c.Owner.TTL <= 0 {
		errs = append(errs, errors.New("OWNER_TOKEN_TTL must be positive"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("AUTH_TOKEN_TTL must be positive"))
	}
	if c.Auth.JanitorInterval <= 0 {
		errs = append(errs, errors.New("AUTH_JANITOR_INTERVAL must be positive"))
	}
	if c.Sessions.HubCleanup <= 0 {
		errs = append(errs, errors.New("SSE_HUB_CLEANUP_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}

// CompletionPolicy returns the parsed completion policy
func (c Config) CompletionPolicy() (lifecycle.CompletionPolicy, error) {
	return lifecycle.ParseCompletionPolicy(c.Sessions.CompletionPolicy)
}
