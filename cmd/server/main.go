package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mcoot/puzzlegame/internal/api"
	"github.com/mcoot/puzzlegame/internal/config"
	"github.com/mcoot/puzzlegame/internal/factory"
	"github.com/mcoot/puzzlegame/internal/services/auth"
	"github.com/mcoot/puzzlegame/internal/services/catalog"
	"github.com/mcoot/puzzlegame/internal/services/lifecycle"
	"github.com/mcoot/puzzlegame/internal/services/owner"
	"github.com/mcoot/puzzlegame/internal/storage/postgres"
	redisstorage "github.com/mcoot/puzzlegame/internal/storage/redis"
	"github.com/mcoot/puzzlegame/internal/telemetry"
	"github.com/mcoot/puzzlegame/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()
	if tracing.Enabled() {
		logger.Info("tracing enabled", slog.String("endpoint", cfg.Telemetry.Endpoint))
	}

	puzzles := catalog.Default()
	if cfg.Sessions.CatalogPath != "" {
		puzzles, err = catalog.Load(cfg.Sessions.CatalogPath)
		if err != nil {
			return err
		}
	}

	policy, err := cfg.CompletionPolicy()
	if err != nil {
		return err
	}

	factoryCfg := factory.Config{
		Logger:          logger,
		StorageType:     cfg.Storage.Type,
		SQLitePath:      cfg.Storage.SQLitePath,
		LifecycleConfig: lifecycle.Config{CompletionPolicy: policy},
		AuthConfig:      auth.Config{TokenDuration: cfg.Auth.TokenTTL},
		OwnerConfig:     owner.Config{Secret: []byte(cfg.Owner.Secret), TTL: cfg.Owner.TTL},
		Catalog:         puzzles,
		TracerProvider:  tracing,
	}
	switch cfg.Storage.Type {
	case config.StorageRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.Storage.RedisURL
		factoryCfg.RedisConfig = &redisCfg
	case config.StoragePostgres:
		factoryCfg.PostgresConfig = &postgres.Config{DSN: cfg.Storage.DatabaseURL}
	}

	app, err := factory.New(ctx, factoryCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("storage close failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("application ready",
		slog.String("storage", app.StorageType),
		slog.String("completion_policy", string(app.LifecycleManager.Policy())),
		slog.Int("puzzles", len(puzzles.List())),
	)

	apiRouter := api.NewRouter(api.RouterConfig{
		Logger:           logger,
		AuthService:      app.AuthService,
		LifecycleManager: app.LifecycleManager,
		OwnerIssuer:      app.OwnerIssuer,
		HubManager:       app.HubManager,
		TracerProvider:   tracing,
		StorageName:      app.StorageType,
	})

	webRouter := web.NewRouter(web.RouterConfig{
		Logger:           logger,
		AuthService:      app.AuthService,
		LifecycleManager: app.LifecycleManager,
		OwnerIssuer:      app.OwnerIssuer,
		Catalog:          app.Catalog,
		TracerProvider:   tracing,
		StaticDir:        findStaticDir(cfg.Server.StaticDir),
	})

	// Combine routers
	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("/", webRouter)

	server := api.NewServer(mux, api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)
	// Open event streams would otherwise hold Shutdown until its timeout
	server.RegisterOnShutdown(app.HubManager.Close)

	janitorCtx, stopJanitors := context.WithCancel(context.Background())
	defer stopJanitors()
	go app.AuthService.RunJanitor(janitorCtx, cfg.Auth.JanitorInterval)
	go app.HubManager.RunJanitor(janitorCtx, cfg.Sessions.HubCleanup)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		return server.Shutdown(context.Background())
	}
}

func newLogger(cfg config.Log) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// findStaticDir returns configured if set, else the first static directory found
func findStaticDir(configured string) string {
	if configured != "" {
		return configured
	}

	candidates := []string{
		"internal/web/static",
		filepath.Join(os.Getenv("PWD"), "internal/web/static"),
	}
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}
