// Package metrics exposes end-to-end pipeline instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_events_total",
			Help: "Processed events by terminal stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)

	eventDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "conductor_event_duration_ms",
			Help:    "End-to-end event processing latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)
)

func RecordEvent(stage, outcome string, ms float64) {
	eventsTotal.WithLabelValues(stage, outcome).Inc()
	eventDuration.Observe(ms)
}
