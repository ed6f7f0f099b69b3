// Package main is the entrypoint for the ma'aser API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/tzedaka/maaser/internal/auth"
	"github.com/tzedaka/maaser/internal/cache"
	"github.com/tzedaka/maaser/internal/catalog"
	"github.com/tzedaka/maaser/internal/clock"
	"github.com/tzedaka/maaser/internal/config"
	"github.com/tzedaka/maaser/internal/handler"
	"github.com/tzedaka/maaser/internal/integration"
	"github.com/tzedaka/maaser/internal/metrics"
	"github.com/tzedaka/maaser/internal/repository"
	"github.com/tzedaka/maaser/internal/server"
	"github.com/tzedaka/maaser/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat).With("service", "maaser-api")
	slog.SetDefault(logger)

	if err := run(context.Background(), cfg, logger); err != nil {
		// Driver errors can echo the DSN back; scrub both URLs.
		logger.Error("maaser-api stopped", "error", sanitizeError(err, cfg.DatabaseURL, cfg.RedisURL))
		os.Exit(1)
	}
}

// run wires the process together and blocks until the server has shut down.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.AutoMigrate {
		if err := migrate(ctx, cfg.DatabaseURL, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres %s: %w", redactURL(cfg.DatabaseURL), err)
	}
	defer repo.Close()

	cat := catalog.Default()
	if err := repo.UpsertCharities(ctx, cat.SortedCharities()); err != nil {
		return fmt.Errorf("sync charity catalog: %w", err)
	}

	redisCache, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis %s: %w", redactURL(cfg.RedisURL), err)
	}
	defer redisCache.Close()
	logger.Info("backing stores ready",
		"postgres", redactURL(cfg.DatabaseURL),
		"redis", redactURL(cfg.RedisURL),
	)

	clk := clock.NewSystem()
	rec := metrics.NewInMemory()

	authSvc := service.NewAuthService(repo, redisCache, redisCache, clk, logger, rec, service.AuthOptions{
		SessionTTL:           cfg.SessionTTL,
		PinAttemptsPerMinute: cfg.RateLimitPinPerMin,
		HashParams:           auth.DefaultParams,
	})
	ledgerSvc := service.NewLedgerService(repo, cat, clk, logger, rec, cfg.SeedStarterData)

	hub := integration.NewHub(cfg.Integrations, integration.NewClient(
		integration.NewHTTPClient(cfg.IntegrationTimeout),
		cfg.IntegrationMaxRetries,
		logger,
	), logger, rec)
	syncSvc := service.NewIntegrationService(repo, hub, clk, logger, rec, cfg.SyncLookback)

	router := server.NewRouter(server.RouterConfig{
		Logger:             logger,
		Authenticator:      authSvc,
		Limiter:            redisCache,
		RateLimitEnabled:   cfg.RateLimitEnabled,
		APIPerMinute:       cfg.RateLimitAPIPerMinute,
		AuthPerMinute:      cfg.RateLimitAuthPerMin,
		CORSAllowedOrigins: cfg.GetCORSAllowedOrigins(),
		IsDevelopment:      cfg.IsDevelopment(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}, server.Handlers{
		Base:         handler.New(),
		Health:       handler.NewHealthHandler(repo, redisCache),
		Metrics:      handler.NewMetricsHandler(rec),
		Auth:         handler.NewAuthHandler(authSvc, logger),
		Ledger:       handler.NewLedgerHandler(ledgerSvc, logger),
		Integrations: handler.NewIntegrationHandler(syncSvc, logger),
	})

	srv := server.New(router, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	if cfg.SyncWorkerEnabled {
		worker := integration.NewWorker(syncSvc, redisCache, logger, cfg.SyncWorkerInterval)
		go func() {
			if err := worker.Run(ctx); err != nil {
				logger.Error("sync worker exited", "error", err)
			}
		}()
		srv.OnShutdown("sync-worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"providers", hub.Status(),
		"sync_worker", cfg.SyncWorkerEnabled,
	)
	return srv.Run(ctx)
}

// migrate applies any pending embedded migrations.
func migrate(ctx context.Context, databaseURL string, logger *slog.Logger) error {
	m, err := repository.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	applied, err := m.Up(ctx)
	if err != nil {
		return err
	}
	version, err := m.Version(ctx)
	if err != nil {
		return err
	}
	logger.Info("database migrated", "applied", applied, "version", version)
	return nil
}
