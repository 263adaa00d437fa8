package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/menusam/partner-billing/internal/billing"
	"github.com/menusam/partner-billing/internal/cron"
	"github.com/menusam/partner-billing/internal/notifications"
	"github.com/menusam/partner-billing/pkg/config"
	"github.com/menusam/partner-billing/pkg/db"
	"github.com/menusam/partner-billing/pkg/instance"
	"github.com/menusam/partner-billing/pkg/logger"
	"github.com/menusam/partner-billing/pkg/metrics"
	"github.com/menusam/partner-billing/pkg/migrate"
	"github.com/menusam/partner-billing/pkg/outbox"
	"github.com/menusam/partner-billing/pkg/redis"
)

const serviceKind = "cron-worker"

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

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
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

	lock, err := cron.NewBillingCronLock(redisClient, cfg.Cron.LockTTL)
	if err != nil {
		return err
	}

	outboxStore := outbox.NewStore(dbClient.DB())
	billingService, err := billing.NewService(billing.ServiceParams{
		Repo:    billing.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Outbox:  outbox.NewWriter(outboxStore, logg),
		Logger:  logg,
		Metrics: metrics.NewBillingMetrics(prometheus.DefaultRegisterer),
		Config:  cfg.Billing,
	})
	if err != nil {
		return fmt.Errorf("billing service: %w", err)
	}

	registry, err := buildRegistry(cfg.Cron, logg, dbClient, billingService, outboxStore)
	if err != nil {
		return err
	}

	scheduler, err := cron.NewScheduler(cron.SchedulerParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewSchedulerMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	logg.Info(logg.WithField(ctx, "jobs", registry.Names()), "starting cron worker")
	return scheduler.Run(ctx)
}

// buildRegistry orders the cycle: close, reminders, rollover, then housekeeping.
func buildRegistry(cronCfg config.CronConfig, logg *logger.Logger, dbClient *db.Client, billingService *billing.Service, outboxStore *outbox.Store) (*cron.Registry, error) {
	billingJobs, err := cron.NewBillingJobs(cron.BillingJobParams{Logger: logg, Billing: billingService})
	if err != nil {
		return nil, fmt.Errorf("billing jobs: %w", err)
	}
	notificationCleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(dbClient.DB()),
		Retention:  cronCfg.NotificationRetention,
		BatchSize:  cronCfg.PurgeBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("notification cleanup job: %w", err)
	}
	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxStore,
		Retention:   cronCfg.OutboxRetention,
		BatchSize:   cronCfg.PurgeBatchSize,
		MinAttempts: cronCfg.OutboxPurgeMinAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	return cron.NewRegistry(append(billingJobs, notificationCleanup, outboxRetention)...)
}
