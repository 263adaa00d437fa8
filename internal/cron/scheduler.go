package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/menusam/partner-billing/pkg/logger"
	"github.com/menusam/partner-billing/pkg/metrics"
)

// Reminders are keyed on whole days since period end, so the cadence stays daily.
const defaultInterval = 24 * time.Hour

type SchedulerParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.SchedulerMetrics
	Interval time.Duration
}

// Scheduler runs every registered job once per interval while holding the cluster-wide lock.
type Scheduler struct {
	logg     *logger.Logger
	jobs     *Registry
	lock     Lock
	metrics  *metrics.SchedulerMetrics
	interval time.Duration
}

// CycleReport summarizes one pass over the registry.
type CycleReport struct {
	Skipped bool
	Ran     []string
	Failed  []string
}

func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	jobs := params.Registry
	if jobs == nil {
		jobs = &Registry{}
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		logg:     params.Logger,
		jobs:     jobs,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run fires a cycle immediately, then on every tick until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunCycle(ctx); err != nil {
			s.logg.Error(ctx, "billing cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "billing cron stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle runs each job in order under the lock. A failed job never stops the next one; the
// returned error combines every failure.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		s.metrics.RecordCycle(metrics.CycleFailed)
		return report, fmt.Errorf("lock acquire: %w", err)
	}
	if !acquired {
		report.Skipped = true
		s.metrics.RecordCycle(metrics.CycleSkipped)
		s.logg.Info(s.holderContext(ctx), "billing cron lock held elsewhere; skipping cycle")
		return report, nil
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "failed to release billing cron lock", err)
		}
	}()

	var errs error
	for _, job := range s.jobs.Jobs() {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		report.Ran = append(report.Ran, job.Name())
		if err := s.runJob(ctx, job); err != nil {
			report.Failed = append(report.Failed, job.Name())
			errs = multierr.Append(errs, err)
		}
	}

	outcome := metrics.CycleCompleted
	if errs != nil {
		outcome = metrics.CycleFailed
	}
	s.metrics.RecordCycle(outcome)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs_run":    len(report.Ran),
		"jobs_failed": report.Failed,
	}), "billing cron cycle complete")
	return report, errs
}

func (s *Scheduler) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	started := time.Now()
	err := job.Run(jobCtx)
	took := time.Since(started)
	s.metrics.RecordJob(job.Name(), took, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "billing cron job failed", err)
		return err
	}
	s.logg.Debug(jobCtx, "billing cron job done")
	return nil
}

type holderReporter interface {
	Holder(ctx context.Context) (string, error)
}

func (s *Scheduler) holderContext(ctx context.Context) context.Context {
	hr, ok := s.lock.(holderReporter)
	if !ok {
		return ctx
	}
	holder, err := hr.Holder(ctx)
	if err != nil || holder == "" {
		return ctx
	}
	return s.logg.WithField(ctx, "lock_holder", holder)
}
