// Package metrics holds the Prometheus collectors for the credential
// subsystem. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gophauth"

// Rotation outcomes.
const (
	RotationOK       = "ok"
	RotationRejected = "rejected"
	RotationError    = "error"
)

type Metrics struct {
	PairsIssued           prometheus.Counter
	Rotations             *prometheus.CounterVec
	TokensRejected        *prometheus.CounterVec
	DegradedRegistrations prometheus.Counter
	SweepDeleted          *prometheus.CounterVec
	SweepFailures         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PairsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_pairs_issued_total",
			Help:      "Access/refresh token pairs issued by login or refresh.",
		}),
		Rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_rotations_total",
			Help:      "Refresh token rotations by outcome.",
		}, []string{"outcome"}),
		TokensRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_rejected_total",
			Help:      "Tokens that failed verification, by variant.",
		}, []string{"variant"}),
		DegradedRegistrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_degraded_total",
			Help:      "Registrations that succeeded but whose activation email failed.",
		}),
		SweepDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_deleted_total",
			Help:      "Records purged by the retention sweeper, by job.",
		}, []string{"job"}),
		SweepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_failures_total",
			Help:      "Failed retention sweeper runs, by job.",
		}, []string{"job"}),
	}

	reg.MustRegister(
		m.PairsIssued,
		m.Rotations,
		m.TokensRejected,
		m.DegradedRegistrations,
		m.SweepDeleted,
		m.SweepFailures,
	)
	return m
}

func (m *Metrics) PairIssued() {
	if m == nil {
		return
	}
	m.PairsIssued.Inc()
}

func (m *Metrics) Rotation(outcome string) {
	if m == nil {
		return
	}
	m.Rotations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TokenRejected(variant string) {
	if m == nil {
		return
	}
	m.TokensRejected.WithLabelValues(variant).Inc()
}

func (m *Metrics) RegistrationDegraded() {
	if m == nil {
		return
	}
	m.DegradedRegistrations.Inc()
}

func (m *Metrics) Swept(job string, n int64) {
	if m == nil {
		return
	}
	m.SweepDeleted.WithLabelValues(job).Add(float64(n))
}

func (m *Metrics) SweepFailed(job string) {
	if m == nil {
		return
	}
	m.SweepFailures.WithLabelValues(job).Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
