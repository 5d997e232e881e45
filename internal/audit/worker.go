package audit

import (
	"context"
	"log/slog"
)

// Worker drains recorded events to the configured sinks in the background.
// The store write stays synchronous on the request path; sink delivery
// (Kafka) goes through this queue so a slow broker cannot slow responses.
type Worker struct {
	inbox chan Record
	sinks []Sink
	log   *slog.Logger
}

func NewWorker(buffer int, log *slog.Logger, sinks ...Sink) *Worker {
	if buffer <= 0 {
		buffer = 64
	}
	return &Worker{
		inbox: make(chan Record, buffer),
		sinks: sinks,
		log:   log,
	}
}

// Enqueue offers a record to the queue without blocking. Returns false
// when the queue is full; the caller decides how to account for the loss.
func (w *Worker) Enqueue(record Record) bool {
	select {
	case w.inbox <- record:
		return true
	default:
		return false
	}
}

// Run consumes the queue until the context is canceled. Sink failures are
// logged and skipped; the store copy already holds the durable record.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case record := <-w.inbox:
			for _, sink := range w.sinks {
				if err := sink.Publish(ctx, record); err != nil {
					w.log.WarnContext(ctx, "audit sink publish failed",
						"correlation_id", record.CorrelationID,
						"error", err,
					)
				}
			}
		}
	}
}
