package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/menusam/partner-billing/internal/billing"
	"github.com/menusam/partner-billing/internal/notifications"
	"github.com/menusam/partner-billing/pkg/config"
	"github.com/menusam/partner-billing/pkg/db"
	"github.com/menusam/partner-billing/pkg/instance"
	"github.com/menusam/partner-billing/pkg/logger"
	"github.com/menusam/partner-billing/pkg/migrate"
	"github.com/menusam/partner-billing/pkg/outbox"
	"github.com/menusam/partner-billing/pkg/outbox/idempotency"
	"github.com/menusam/partner-billing/pkg/pubsub"
	"github.com/menusam/partner-billing/pkg/redis"
)

const serviceKind = "worker"

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
		logg.Error(ctx, "worker stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shut down")
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

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.RoleConsumer, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer pubsubClient.Close()

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}
	dedupe, err := idempotency.NewGuard(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}
	subscription := pubsubClient.NotificationSubscription()
	if subscription == nil {
		return errors.New("notification subscription not configured")
	}
	consumer, err := notifications.NewConsumer(notificationsService, subscription, dedupe, logg)
	if err != nil {
		return err
	}

	periods, err := newPeriodService(cfg, dbClient, logg)
	if err != nil {
		return err
	}
	transactions := pubsubClient.TransactionSubscription()
	if transactions == nil {
		return errors.New("transaction subscription not configured")
	}
	transactionConsumer, err := billing.NewTransactionConsumer(periods, transactions, logg)
	if err != nil {
		return err
	}

	supervisor, err := NewSupervisor(logg, consumerSet{consumer, transactionConsumer}, defaultCheckInterval,
		Dependency{Name: "database", Ping: dbClient.Ping},
		Dependency{Name: "redis", Ping: redisClient.Ping},
		Dependency{Name: "pubsub", Ping: pubsubClient.Ping},
	)
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting worker")
	return supervisor.Run(ctx)
}

// newPeriodService builds the billing service the transaction consumer opens periods with.
func newPeriodService(cfg *config.Config, dbClient *db.Client, logg *logger.Logger) (*billing.Service, error) {
	svc, err := billing.NewService(billing.ServiceParams{
		Repo:   billing.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Outbox: outbox.NewWriter(outbox.NewStore(dbClient.DB()), logg),
		Logger: logg,
		Config: cfg.Billing,
	})
	if err != nil {
		return nil, fmt.Errorf("billing service: %w", err)
	}
	return svc, nil
}
