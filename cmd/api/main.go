package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/learnhub/payrecon/api/routes"
	"github.com/learnhub/payrecon/internal/alerts"
	"github.com/learnhub/payrecon/internal/bankapi"
	"github.com/learnhub/payrecon/internal/fulfillment"
	"github.com/learnhub/payrecon/internal/ledger"
	"github.com/learnhub/payrecon/internal/orders"
	"github.com/learnhub/payrecon/internal/reconcile"
	"github.com/learnhub/payrecon/pkg/config"
	"github.com/learnhub/payrecon/pkg/db"
	"github.com/learnhub/payrecon/pkg/logger"
	"github.com/learnhub/payrecon/pkg/metrics"
	"github.com/learnhub/payrecon/pkg/migrate"
	"github.com/learnhub/payrecon/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
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

	// Redis only backs the poll rate limit; without it polling is unthrottled.
	var (
		rateLimiter redis.RateLimiter
		redisPinger redis.Pinger
	)
	if cfg.Redis.Enabled() {
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
		rateLimiter = redisClient
		redisPinger = redisClient
	} else {
		logg.Warn(context.Background(), "redis not configured, poll rate limit disabled")
	}

	provider, err := bankapi.New(cfg.BankAPI)
	if err != nil {
		logg.Error(context.Background(), "failed to create bank api provider", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reconcileMetrics := metrics.NewReconcileMetrics(registry)

	svc, err := newReconcileService(cfg, dbClient, provider, reconcileMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"bankProvider": cfg.BankAPI.ProviderName(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			Webhooks:    svc,
			Payments:    svc,
			Metrics:     reconcileMetrics,
			Gatherer:    registry,
			RateLimiter: rateLimiter,
			DBPinger:    dbClient,
			RedisPinger: redisPinger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

func newReconcileService(cfg *config.Config, dbClient *db.Client, provider bankapi.Provider, m *metrics.ReconcileMetrics, logg *logger.Logger) (*reconcile.Service, error) {
	ordersRepo := orders.NewRepository(dbClient.DB())

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}

	dispatcher, err := fulfillment.NewDispatcher(fulfillment.DispatcherParams{
		Repo:              fulfillment.NewRepository(dbClient.DB()),
		Orders:            ordersRepo,
		TransactionRunner: dbClient,
	})
	if err != nil {
		return nil, err
	}

	return reconcile.NewService(reconcile.ServiceParams{
		Settings:          reconcile.SettingsFromConfig(cfg),
		Ledger:            ledgerSvc,
		Orders:            ordersRepo,
		Fulfiller:         dispatcher,
		Notifier:          alerts.New(cfg.Alerts, logg),
		Provider:          provider,
		TransactionRunner: dbClient,
		Metrics:           m,
		Logger:            logg,
	})
}
