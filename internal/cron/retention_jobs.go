package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/menusam/partner-billing/pkg/logger"
)

const (
	defaultRetention      = 30 * 24 * time.Hour
	defaultPurgeBatch     = 1000
	defaultOutboxAttempts = 5
	// maxPurgeBatches bounds one run; whatever is left goes on the next tick.
	maxPurgeBatches = 500
)

type notificationsCleanupRepo interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

type outboxRetentionRepo interface {
	Purge(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttempts, limit int) (int64, error)
}

// purgeFunc deletes at most limit rows older than cutoff and reports how many went.
type purgeFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error)

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationsCleanupRepo
	Retention  time.Duration
	BatchSize  int
}

// OutboxRetentionJobParams configure the outbox purge. Unpublished rows go only
// once they reached MinAttempts.
type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxRetentionRepo
	Retention   time.Duration
	BatchSize   int
	MinAttempts int
}

func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return newRetentionJob(retentionPolicy{
		name:      "notification-cleanup",
		logg:      params.Logger,
		db:        params.DB,
		retention: params.Retention,
		batch:     params.BatchSize,
		purge:     params.Repository.DeleteOlderThan,
	})
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	minAttempts := positiveOr(params.MinAttempts, defaultOutboxAttempts)
	repo := params.Repository
	return newRetentionJob(retentionPolicy{
		name:      "outbox-retention",
		logg:      params.Logger,
		db:        params.DB,
		retention: params.Retention,
		batch:     params.BatchSize,
		fields:    map[string]any{"min_attempts": minAttempts},
		purge: func(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error) {
			return repo.Purge(ctx, tx, cutoff, minAttempts, limit)
		},
	})
}

type retentionPolicy struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	retention time.Duration
	batch     int
	fields    map[string]any
	purge     purgeFunc
}

// retentionJob deletes in batches, one transaction per batch, so a large
// backlog never holds row locks for the whole purge.
type retentionJob struct {
	retentionPolicy
	now func() time.Time
}

func newRetentionJob(policy retentionPolicy) (*retentionJob, error) {
	if policy.logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if policy.db == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if policy.retention <= 0 {
		policy.retention = defaultRetention
	}
	policy.batch = positiveOr(policy.batch, defaultPurgeBatch)
	return &retentionJob{retentionPolicy: policy, now: time.Now}, nil
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	batches := 0
	for batches < maxPurgeBatches {
		var n int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			n, err = j.purge(ctx, tx, cutoff, j.batch)
			return err
		})
		if err != nil {
			return fmt.Errorf("%s after %d rows: %w", j.name, total, err)
		}
		total += n
		batches++
		if n < int64(j.batch) {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	fields := map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": total,
		"batches":      batches,
	}
	for k, v := range j.fields {
		fields[k] = v
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "retention cleanup complete")
	return nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
