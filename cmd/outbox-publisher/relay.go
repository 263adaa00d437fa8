package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/menusam/partner-billing/pkg/config"
	"github.com/menusam/partner-billing/pkg/db/models"
	"github.com/menusam/partner-billing/pkg/enums"
	"github.com/menusam/partner-billing/pkg/logger"
	"github.com/menusam/partner-billing/pkg/metrics"
	"github.com/menusam/partner-billing/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	backoffCeiling     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pendingStore interface {
	ClaimPending(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error
	RecordAttempt(tx *gorm.DB, id uuid.UUID, cause error) error
	Exhaust(tx *gorm.DB, id uuid.UUID, cause error, ceiling int) error
}

type graveyard interface {
	Bury(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, at time.Time) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// RelayParams wires the outbox relay. Topics defaults to the Pub/Sub client's publishers.
type RelayParams struct {
	Outbox      config.OutboxConfig
	Logger      *logger.Logger
	DB          txRunner
	Broker      broker
	Store       pendingStore
	DeadLetters graveyard
	Resolver    eventResolver
	Topics      topicPublishers
	Metrics     *metrics.RelayMetrics
	Now         func() time.Time
}

// Relay drains outbox_events to Pub/Sub. Every claimed row ends the batch in exactly one state:
// published, retried later, or dead-lettered.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	broker      broker
	store       pendingStore
	dlq         graveyard
	resolver    eventResolver
	topics      topicPublishers
	metrics     *metrics.RelayMetrics
	now         func() time.Time
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Broker == nil:
		return nil, errors.New("pubsub client is required")
	case p.Store == nil:
		return nil, errors.New("outbox store is required")
	case p.DeadLetters == nil:
		return nil, errors.New("dead letter store is required")
	case p.Resolver == nil:
		return nil, errors.New("event registry is required")
	}
	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		broker:      p.Broker,
		store:       p.Store,
		dlq:         p.DeadLetters,
		resolver:    p.Resolver,
		topics:      p.Topics,
		metrics:     p.Metrics,
		now:         p.Now,
		batchSize:   positiveOr(p.Outbox.BatchSize, defaultBatchSize),
		maxAttempts: positiveOr(p.Outbox.MaxAttempts, defaultMaxAttempts),
		poll:        time.Duration(p.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if r.poll <= 0 {
		r.poll = defaultPoll
	}
	if r.topics == nil {
		r.topics = brokerTopics(p.Broker)
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Run polls until ctx ends. A full batch is followed immediately by the next one; an empty batch
// waits one poll interval; a failed batch backs off exponentially up to backoffCeiling.
func (r *Relay) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": r.db.Ping, "pubsub": r.broker.Ping} {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	wait := r.poll
	for {
		n, err := r.drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay batch failed", err)
			wait = min(wait*2, backoffCeiling)
		case n >= r.batchSize:
			wait = r.poll
			continue
		default:
			wait = r.poll
		}
		if err := pause(ctx, wait+time.Duration(rand.Int64N(int64(jitterWindow)))); err != nil {
			return err
		}
	}
}

// drain claims one batch and settles every row inside the claiming transaction.
func (r *Relay) drain(ctx context.Context) (int, error) {
	var claimed int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.ClaimPending(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim pending: %w", err)
		}
		claimed = len(rows)
		for _, row := range rows {
			if err := r.settle(ctx, tx, r.deliver(ctx, row)); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
