package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Relay outcomes for an outbox row.
const (
	RelayPublished    = "published"
	RelayRetried      = "retried"
	RelayDeadLettered = "dead_lettered"
)

// RelayMetrics tracks outbox delivery to Pub/Sub. A growing dead_lettered count means partners or
// admins are missing billing notifications.
type RelayMetrics struct {
	events *prometheus.CounterVec
	lag    *prometheus.HistogramVec
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		return &RelayMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_relay_events_total",
		Help: "Outbox rows handled by the relay, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	lag := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_relay_lag_seconds",
		Help:    "Delay between an outbox row being written and its successful publish.",
		Buckets: []float64{0.5, 1, 5, 15, 60, 300, 900, 3600},
	}, []string{"event_type"})
	reg.MustRegister(events, lag)
	return &RelayMetrics{events: events, lag: lag}
}

func (r *RelayMetrics) Observe(eventType, outcome string) {
	if r == nil || r.events == nil {
		return
	}
	r.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (r *RelayMetrics) ObserveLag(eventType string, lag time.Duration) {
	if r == nil || r.lag == nil || lag < 0 {
		return
	}
	r.lag.WithLabelValues(normalizeLabel(eventType)).Observe(lag.Seconds())
}
