package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the rate limiter.
type Metrics struct {
	Checks     *prometheus.CounterVec
	Violations *prometheus.CounterVec
}

// New creates and registers all rate limiter metrics.
func New() *Metrics {
	return &Metrics{
		Checks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_rate_limit_checks_total",
			Help: "Rate limit checks by identity kind and outcome",
		}, []string{"kind", "allowed"}),
		Violations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_rate_limit_violations_total",
			Help: "Rejected requests by identity kind",
		}, []string{"kind"}),
	}
}

// RecordCheck counts one limiter decision.
func (m *Metrics) RecordCheck(kind string, allowed bool) {
	outcome := "false"
	if allowed {
		outcome = "true"
	}
	m.Checks.WithLabelValues(kind, outcome).Inc()
	if !allowed {
		m.Violations.WithLabelValues(kind).Inc()
	}
}
