package factory

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/mcoot/puzzlegame/internal/dependencies/clock"
	"github.com/mcoot/puzzlegame/internal/dependencies/ids"
	"github.com/mcoot/puzzlegame/internal/services/auth"
	"github.com/mcoot/puzzlegame/internal/services/catalog"
	"github.com/mcoot/puzzlegame/internal/services/lifecycle"
	"github.com/mcoot/puzzlegame/internal/services/owner"
	"github.com/mcoot/puzzlegame/internal/storage"
	"github.com/mcoot/puzzlegame/internal/storage/memory"
	"github.com/mcoot/puzzlegame/internal/storage/postgres"
	redisstorage "github.com/mcoot/puzzlegame/internal/storage/redis"
	"github.com/mcoot/puzzlegame/internal/storage/sqlite"
	"github.com/mcoot/puzzlegame/internal/web/sse"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypeSQLite   = "sqlite"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage     storage.Storage
	StorageType string

	// External dependencies
	Clock clock.Clock
	IDs   ids.Generator

	// Services
	LifecycleManager *lifecycle.Manager
	AuthService      *auth.Service
	OwnerIssuer      *owner.Issuer
	Catalog          *catalog.Catalog
	HubManager       *sse.HubManager
	Broadcaster      *sse.Broadcaster
}

// Close releases the hub streams and the storage backend
func (a *App) Close() error {
	a.HubManager.Close()
	return a.Storage.Close()
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// PostgresConfig holds the DSN (required if StorageType is "postgres")
	PostgresConfig *postgres.Config

	// Zero values fall back to each service's defaults
	LifecycleConfig lifecycle.Config
	AuthConfig      auth.Config
	OwnerConfig     owner.Config

	// Catalog lists the playable puzzles; nil uses catalog.Default()
	Catalog *catalog.Catalog
	// TracerProvider traces lifecycle operations; nil uses the global provider
	TracerProvider trace.TracerProvider
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	store, err := openStorage(ctx, storageType, cfg)
	if err != nil {
		return nil, err
	}

	if len(cfg.OwnerConfig.Secret) == 0 {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("generating owner secret: %w", err)
		}
		cfg.OwnerConfig.Secret = secret
		logger.Warn("OWNER_TOKEN_SECRET not set, anonymous owners will not survive a restart")
	}

	app, err := newWithDependencies(store, clock.New(), ids.New(), cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	app.StorageType = storageType
	return app, nil
}

func openStorage(ctx context.Context, storageType string, cfg Config) (storage.Storage, error) {
	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQLite:
		return sqlite.Open(cfg.SQLitePath)
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		return postgres.Open(ctx, *cfg.PostgresConfig)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be memory, redis, sqlite or postgres", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, gen ids.Generator, cfg Config, logger *slog.Logger) (*App, error) {
	issuer, err := owner.New(cfg.OwnerConfig, clk, gen)
	if err != nil {
		return nil, err
	}

	puzzles := cfg.Catalog
	if puzzles == nil {
		puzzles = catalog.Default()
	}

	hubManager := sse.NewHubManager(logger)
	broadcaster := sse.NewBroadcaster(hubManager, logger)

	manager := lifecycle.New(store, clk, gen, cfg.LifecycleConfig, logger,
		lifecycle.WithPublisher(broadcaster),
		lifecycle.WithTracerProvider(cfg.TracerProvider),
	)
	authService := auth.New(store, clk, gen, cfg.AuthConfig, logger)

	return &App{
		Storage:          store,
		StorageType:      StorageTypeMemory,
		Clock:            clk,
		IDs:              gen,
		LifecycleManager: manager,
		AuthService:      authService,
		OwnerIssuer:      issuer,
		Catalog:          puzzles,
		HubManager:       hubManager,
		Broadcaster:      broadcaster,
	}, nil
}
