// Package metrics provides Prometheus metrics for the gate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for gate operations.
type Metrics struct {
	enabled bool

	// Authentication metrics
	authRequestsTotal prometheus.Counter
	authFailuresTotal *prometheus.CounterVec
	verifyDuration    prometheus.Histogram

	// Session lifecycle metrics
	sessionsCreatedTotal   prometheus.Counter
	sessionsDestroyedTotal prometheus.Counter

	// Claims administration metrics
	claimsMutationsTotal *prometheus.CounterVec

	// Admission control metrics
	rateLimitedTotal prometheus.Counter
}

// New creates and registers Prometheus metrics.
// If enabled is false, returns a no-op Metrics instance.
func New(enabled bool) *Metrics {
	m := &Metrics{enabled: enabled}

	if !enabled {
		return m
	}

	m.authRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gate_auth_requests_total",
		Help: "Total authentication requests",
	})

	m.authFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_auth_failures_total",
		Help: "Total authentication failures",
	}, []string{"reason"})

	m.verifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gate_verify_duration_seconds",
		Help:    "Credential verification duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	m.sessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gate_sessions_created_total",
		Help: "Total sessions issued",
	})

	m.sessionsDestroyedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gate_sessions_destroyed_total",
		Help: "Total sessions destroyed",
	})

	m.claimsMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_claims_mutations_total",
		Help: "Total role-claim mutation attempts",
	}, []string{"result"})

	m.rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gate_rate_limited_total",
		Help: "Total requests refused by the rate limiter",
	})

	return m
}

// RecordAuthSuccess records a successful authentication.
func (m *Metrics) RecordAuthSuccess(durationSeconds float64) {
	if !m.enabled {
		return
	}
	m.authRequestsTotal.Inc()
	m.verifyDuration.Observe(durationSeconds)
}

// RecordAuthFailure records a failed authentication with its internal
// reason (reasons are never exposed to clients).
func (m *Metrics) RecordAuthFailure(reason string) {
	if !m.enabled {
		return
	}
	m.authRequestsTotal.Inc()
	m.authFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordSessionCreated records an issued session.
func (m *Metrics) RecordSessionCreated() {
	if !m.enabled {
		return
	}
	m.sessionsCreatedTotal.Inc()
}

// RecordSessionDestroyed records a destroyed session.
func (m *Metrics) RecordSessionDestroyed() {
	if !m.enabled {
		return
	}
	m.sessionsDestroyedTotal.Inc()
}

// RecordClaimsMutation records a role-claim write attempt.
func (m *Metrics) RecordClaimsMutation(result string) {
	if !m.enabled {
		return
	}
	m.claimsMutationsTotal.WithLabelValues(result).Inc()
}

// RecordRateLimited records a request refused by admission control.
func (m *Metrics) RecordRateLimited() {
	if !m.enabled {
		return
	}
	m.rateLimitedTotal.Inc()
}
