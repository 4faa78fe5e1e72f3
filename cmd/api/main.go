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

	"github.com/mavilaortega/caja-backend/api/routes"
	"github.com/mavilaortega/caja-backend/internal/catalog"
	"github.com/mavilaortega/caja-backend/internal/cron"
	"github.com/mavilaortega/caja-backend/internal/restock"
	"github.com/mavilaortega/caja-backend/internal/sales"
	"github.com/mavilaortega/caja-backend/internal/session"
	"github.com/mavilaortega/caja-backend/internal/stock"
	"github.com/mavilaortega/caja-backend/pkg/config"
	"github.com/mavilaortega/caja-backend/pkg/db"
	"github.com/mavilaortega/caja-backend/pkg/logger"
	"github.com/mavilaortega/caja-backend/pkg/metrics"
	"github.com/mavilaortega/caja-backend/pkg/migrate"
	pkgredis "github.com/mavilaortega/caja-backend/pkg/redis"
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

	redisClient, err := pkgredis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	catalogMetrics := metrics.NewCatalogMetrics(prometheus.DefaultRegisterer)
	saleMetrics := metrics.NewSaleMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	reader, err := catalog.NewReader(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog reader", err)
		os.Exit(1)
	}
	cache, err := catalog.NewCache(catalog.CacheOptions{
		Reader:          reader,
		Logger:          logg,
		Metrics:         catalogMetrics,
		RefreshInterval: cfg.Catalog.RefreshInterval,
		RefreshTimeout:  cfg.Catalog.RefreshTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog cache", err)
		os.Exit(1)
	}

	advisor, err := restock.NewAdvisor(dbClient.DB(), logg, cfg.Restock.DefaultThreshold)
	if err != nil {
		logg.Error(context.Background(), "failed to create restock advisor", err)
		os.Exit(1)
	}

	checkoutFactory := func() (*sales.Checkout, error) {
		gate, err := stock.NewGate(dbClient.DB())
		if err != nil {
			return nil, err
		}
		committer, err := sales.NewCommitter(dbClient, cache, logg, saleMetrics)
		if err != nil {
			return nil, err
		}
		return sales.NewCheckout(gate, committer)
	}
	registry, err := session.NewRegistry(checkoutFactory, logg, cfg.Session.IdleTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create session registry", err)
		os.Exit(1)
	}

	sweepJob, err := cron.NewSessionSweepJob(cron.SessionSweepJobParams{
		Logger:   logg,
		Registry: registry,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create session sweep job", err)
		os.Exit(1)
	}
	sweeper, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob),
		Lock:     cron.LocalLock{},
		Metrics:  cronMetrics,
		Interval: cfg.Session.IdleTTL / 2,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create session sweeper", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go cache.Run(ctx)
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "session sweeper stopped unexpectedly", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Catalog:  cache,
			Sessions: registry,
			Advisor:  advisor,
			Gatherer: prometheus.DefaultGatherer,
		}),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(logCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(logCtx, "api server shut down gracefully")
}
