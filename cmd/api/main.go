package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/menusam/partner-billing/api/routes"
	"github.com/menusam/partner-billing/internal/billing"
	"github.com/menusam/partner-billing/internal/notifications"
	"github.com/menusam/partner-billing/pkg/config"
	"github.com/menusam/partner-billing/pkg/db"
	"github.com/menusam/partner-billing/pkg/env"
	"github.com/menusam/partner-billing/pkg/instance"
	"github.com/menusam/partner-billing/pkg/logger"
	"github.com/menusam/partner-billing/pkg/metrics"
	"github.com/menusam/partner-billing/pkg/migrate"
	"github.com/menusam/partner-billing/pkg/outbox"
	"github.com/menusam/partner-billing/pkg/redis"
)

const (
	serviceKind       = "api"
	readHeaderTimeout = 10 * time.Second
	shutdownGrace     = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind
	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer redisClient.Close()

	billingService, err := billing.NewService(billing.ServiceParams{
		Repo:    billing.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Outbox:  outbox.NewWriter(outbox.NewStore(dbClient.DB()), logg),
		Logger:  logg,
		Metrics: metrics.NewBillingMetrics(prometheus.DefaultRegisterer),
		Config:  cfg.Billing,
	})
	if err != nil {
		return fmt.Errorf("billing service: %w", err)
	}
	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		return fmt.Errorf("notifications service: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", routes.NewRouter(cfg, logg, dbClient, redisClient, redisClient, billingService, notificationsService))

	server := &http.Server{
		Addr:              ":" + env.Get("PORT", cfg.App.Port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(logg.WithField(ctx, "addr", server.Addr), "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
