// Package metrics exposes audit sink instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_audit_records_total",
			Help: "Audit records by outcome.",
		},
		[]string{"outcome"},
	)

	dropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conductor_audit_drops_total",
			Help: "Audit records that could not be persisted in time.",
		},
	)

	writeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "conductor_audit_write_duration_ms",
			Help:    "Audit store write latency in milliseconds.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500},
		},
	)
)

func RecordWrite(outcome string, ms float64) {
	recordsTotal.WithLabelValues(outcome).Inc()
	writeDuration.Observe(ms)
}

func RecordDrop() {
	dropsTotal.Inc()
}
