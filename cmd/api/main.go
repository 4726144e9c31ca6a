package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/replenish-backend/api/controllers"
	"github.com/angelmondragon/replenish-backend/api/routes"
	"github.com/angelmondragon/replenish-backend/internal/inventory"
	"github.com/angelmondragon/replenish-backend/internal/replenishment"
	"github.com/angelmondragon/replenish-backend/internal/stats"
	"github.com/angelmondragon/replenish-backend/pkg/config"
	"github.com/angelmondragon/replenish-backend/pkg/db"
	"github.com/angelmondragon/replenish-backend/pkg/instance"
	"github.com/angelmondragon/replenish-backend/pkg/logger"
	"github.com/angelmondragon/replenish-backend/pkg/metrics"
	"github.com/angelmondragon/replenish-backend/pkg/migrate"
	"github.com/angelmondragon/replenish-backend/pkg/outbox"
	"github.com/angelmondragon/replenish-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	domainMetrics := metrics.NewReplenishmentMetrics(registry)

	var cache *stats.Cache
	if cfg.FeatureFlags.StatsCache {
		cache = stats.NewCache(redisClient, cfg.Replenishment.StatsCacheTTL, logg, domainMetrics)
	}
	aggregator, err := stats.NewAggregator(stats.Params{
		Repository:   stats.NewRepository(dbClient.DB()),
		Cache:        cache,
		RecentWindow: cfg.Replenishment.RecentTransferWindow(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stats aggregator", err)
		os.Exit(1)
	}

	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ledger, err := inventory.NewLedger(inventory.Params{
		DB:          dbClient,
		Repository:  inventory.NewRepository(dbClient.DB()),
		Events:      events,
		Invalidator: aggregator,
		Metrics:     domainMetrics,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory ledger", err)
		os.Exit(1)
	}

	replenishments, err := replenishment.NewService(replenishment.Params{
		DB:          dbClient,
		Repository:  replenishment.NewRepository(dbClient.DB()),
		Shipper:     ledger,
		Events:      events,
		Invalidator: aggregator,
		Metrics:     domainMetrics,
		Logger:      logg,
		MaxAttempts: cfg.Replenishment.MaxTransitionAttempts,
		PageSize:    cfg.Replenishment.ListPageSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create replenishment service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			Readiness:     map[string]controllers.Pinger{"db": dbClient, "redis": redisClient},
			Idempotency:   redisClient,
			Replenishment: replenishments,
			Inventory:     ledger,
			Stats:         aggregator,
			Gatherer:      registry,
			HTTPMetrics:   metrics.NewHTTPMetrics(registry),
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
		return
	case <-sigCtx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
	}
}
