// Package metrics exposes skill dispatch instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_skill_dispatches_total",
			Help: "Skill dispatches by intent and result.",
		},
		[]string{"intent", "result"},
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conductor_skill_dispatch_duration_ms",
			Help:    "Skill handler latency in milliseconds, including retries.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"intent"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_skill_retries_total",
			Help: "Retried handler attempts by intent.",
		},
		[]string{"intent"},
	)
)

func RecordDispatch(intent, result string, ms float64) {
	dispatchesTotal.WithLabelValues(intent, result).Inc()
	dispatchDuration.WithLabelValues(intent).Observe(ms)
}

func RecordRetry(intent string) {
	retriesTotal.WithLabelValues(intent).Inc()
}
