package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the consent enforcement module.
type Metrics struct {
	// Check outcomes: "ok", "cached", "skipped_manager", "needs_acceptance",
	// "not_accepted".
	CheckOutcome *prometheus.CounterVec

	// Grace periods started
	GracePeriodsStarted prometheus.Counter

	// Agreements and revocations recorded
	Agreements  prometheus.Counter
	Revocations *prometheus.CounterVec // importance: "important", "stale"
}

// New creates a Metrics instance with all consent metrics registered.
func New() *Metrics {
	return &Metrics{
		CheckOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentgate_checks_total",
			Help: "Total consent checks by outcome",
		}, []string{"outcome"}),

		GracePeriodsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentgate_grace_periods_started_total",
			Help: "Total grace periods started for users with pending terms",
		}),

		Agreements: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentgate_agreements_total",
			Help: "Total term acceptances recorded",
		}),

		Revocations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentgate_revocations_total",
			Help: "Total revocations by importance",
		}, []string{"importance"}),
	}
}

// IncrementCheck records one consent check outcome.
func (m *Metrics) IncrementCheck(outcome string) {
	if m != nil {
		m.CheckOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementGracePeriods records the start of a grace period.
func (m *Metrics) IncrementGracePeriods() {
	if m != nil {
		m.GracePeriodsStarted.Inc()
	}
}

// IncrementAgreements records n accepted terms.
func (m *Metrics) IncrementAgreements(n int) {
	if m != nil {
		m.Agreements.Add(float64(n))
	}
}

// IncrementRevocations records a revocation of the given importance.
func (m *Metrics) IncrementRevocations(importance string) {
	if m != nil {
		m.Revocations.WithLabelValues(importance).Inc()
	}
}
