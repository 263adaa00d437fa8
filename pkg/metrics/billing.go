package metrics

import "github.com/prometheus/client_golang/prometheus"

// Transition outcomes recorded by the billing workflows.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// BillingMetrics counts billing state transitions by event and outcome.
type BillingMetrics struct {
	transitions *prometheus.CounterVec
}

// NewBillingMetrics registers the billing metrics on the provided registerer.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_transitions_total",
		Help: "Billing period and dispute transitions by event and outcome.",
	}, []string{"event", "outcome"})
	reg.MustRegister(transitions)
	return &BillingMetrics{transitions: transitions}
}

// IncTransition records one transition attempt.
func (b *BillingMetrics) IncTransition(event, outcome string) {
	if b == nil || b.transitions == nil {
		return
	}
	b.transitions.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}
