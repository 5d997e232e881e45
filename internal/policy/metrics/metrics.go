// Package metrics exposes policy gate counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_policy_decisions_total",
			Help: "Policy gate decisions by outcome.",
		},
		[]string{"outcome", "cached"},
	)

	evaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "conductor_policy_evaluation_duration_ms",
			Help:    "Remote policy evaluation latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
	)
)

func RecordDecision(outcome string, cached bool) {
	label := "false"
	if cached {
		label = "true"
	}
	decisionsTotal.WithLabelValues(outcome, label).Inc()
}

func ObserveEvaluation(ms float64) {
	evaluationDuration.Observe(ms)
}
