package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cycle outcomes of the billing scheduler.
const (
	CycleCompleted = "completed"
	CycleFailed    = "failed"
	CycleSkipped   = "skipped_locked"
)

// SchedulerMetrics covers the cron-worker: one series per job plus a cycle counter, so a replica
// that keeps losing the lock is visible next to the one doing the work.
type SchedulerMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	cycles   *prometheus.CounterVec
}

func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	if reg == nil {
		return &SchedulerMetrics{}
	}
	m := &SchedulerMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "billing_cron_job_duration_seconds",
			Help:    "Wall time of billing cron jobs.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_cron_job_runs_total",
			Help: "Billing cron job runs by result.",
		}, []string{"job", "result"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_cron_cycles_total",
			Help: "Scheduler cycles by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.duration, m.runs, m.cycles)
	return m
}

// RecordJob observes one job run; a nil err counts as success.
func (m *SchedulerMetrics) RecordJob(job string, took time.Duration, err error) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(took.Seconds())
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.runs.WithLabelValues(job, result).Inc()
}

func (m *SchedulerMetrics) RecordCycle(outcome string) {
	if m == nil || m.cycles == nil {
		return
	}
	m.cycles.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
