// Package audit emits one record per event on every exit path. Recording
// is mandatory: the pipeline does not answer until the record is accepted,
// and a sink that stops accepting flips readiness.
package audit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"conductor/internal/audit/metrics"
)

// Sink receives records alongside the primary store. Optional; used for
// the Kafka fan-out.
type Sink interface {
	Publish(ctx context.Context, record Record) error
}

// Recorder writes records to the store under a bounded timeout. A failed
// write marks the recorder degraded so readiness can fail, but never
// blocks the response path longer than the budget.
type Recorder struct {
	store    Store
	worker   *Worker
	timeout  time.Duration
	log      *slog.Logger
	degraded atomic.Bool
}

type RecorderOption func(*Recorder)

// WithWorker routes successfully stored records to a background worker
// for sink delivery.
func WithWorker(worker *Worker) RecorderOption {
	return func(r *Recorder) { r.worker = worker }
}

func WithRecorderLogger(log *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.log = log }
}

func NewRecorder(store Store, timeout time.Duration, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:   store,
		timeout: timeout,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists one record. The write gets its own context so it
// survives a caller whose request context was already canceled.
func (r *Recorder) Record(record Record) {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	err := r.store.Append(ctx, record)
	elapsed := float64(time.Since(start).Milliseconds())

	if err != nil {
		r.degraded.Store(true)
		metrics.RecordDrop()
		metrics.RecordWrite("drop", elapsed)
		// The record still reaches the operator through the process log.
		r.log.ErrorContext(ctx, "audit write failed",
			"correlation_id", record.CorrelationID,
			"stage", record.Stage,
			"outcome", record.Outcome,
			"reason", record.Reason,
			"error", err,
		)
		return
	}
	r.degraded.Store(false)
	metrics.RecordWrite(string(record.Outcome), elapsed)

	if r.worker != nil && !r.worker.Enqueue(record) {
		r.log.WarnContext(ctx, "audit sink queue full, record not forwarded",
			"correlation_id", record.CorrelationID,
		)
	}
}

// Healthy reports whether the last store write succeeded.
func (r *Recorder) Healthy() bool {
	return !r.degraded.Load()
}
