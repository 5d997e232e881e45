package skills

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"conductor/internal/envelope"
	"conductor/internal/skills/metrics"
	dErrors "conductor/pkg/domain-errors"
	"conductor/pkg/platform/sentinel"
)

// Dispatcher resolves an envelope's intent and runs exactly one handler
// under the descriptor's timeout, retrying transient failures.
type Dispatcher struct {
	registry *Registry
	log      *slog.Logger

	// sleep is swapped out in tests so retry backoff does not stall them.
	sleep func(ctx context.Context, d time.Duration) error
}

type DispatcherOption func(*Dispatcher)

func WithDispatchLogger(log *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = log }
}

func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		log:      slog.Default(),
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type handlerResult struct {
	output map[string]any
	err    error
}

// Dispatch runs the handler for the envelope's intent.
func (d *Dispatcher) Dispatch(ctx context.Context, env *envelope.Envelope) (map[string]any, error) {
	desc, err := d.registry.Resolve(env.Intent)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "unknown intent: "+env.Intent)
	}

	start := time.Now()
	output, err := d.run(ctx, desc, env)
	elapsed := float64(time.Since(start).Milliseconds())

	switch {
	case err == nil:
		metrics.RecordDispatch(desc.Intent, "ok", elapsed)
	case dErrors.HasCode(err, dErrors.CodeTimeout):
		metrics.RecordDispatch(desc.Intent, "timeout", elapsed)
	default:
		metrics.RecordDispatch(desc.Intent, "error", elapsed)
	}
	return output, err
}

func (d *Dispatcher) run(ctx context.Context, desc *Descriptor, env *envelope.Envelope) (map[string]any, error) {
	var lastErr error
	for attempt := 1; attempt <= desc.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			metrics.RecordRetry(desc.Intent)
			d.log.WarnContext(ctx, "retrying skill handler",
				"intent", desc.Intent,
				"attempt", attempt,
				"error", lastErr,
			)
			if err := d.sleep(ctx, desc.Retry.Backoff); err != nil {
				break
			}
		}

		output, err := d.attempt(ctx, desc, env)
		if err == nil {
			return output, nil
		}
		lastErr = err

		// Only transient failures are worth retrying. Timeouts consumed
		// the whole budget already and everything else is deterministic.
		if !errors.Is(err, sentinel.ErrUnavailable) {
			return nil, err
		}
	}
	return nil, dErrors.Wrap(lastErr, dErrors.CodeUnavailable, "skill handler unavailable: "+desc.Intent)
}

func (d *Dispatcher) attempt(ctx context.Context, desc *Descriptor, env *envelope.Envelope) (map[string]any, error) {
	runCtx, cancel := context.WithTimeout(ctx, desc.Timeout)
	defer cancel()

	results := make(chan handlerResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- handlerResult{err: dErrors.New(dErrors.CodeInternal, "skill handler panicked")}
			}
		}()
		output, err := desc.Handler()(runCtx, env)
		results <- handlerResult{output: output, err: err}
	}()

	select {
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, dErrors.New(dErrors.CodeTimeout, "skill timed out: "+desc.Intent)
		}
		return nil, dErrors.Wrap(runCtx.Err(), dErrors.CodeInternal, "dispatch canceled")
	case result := <-results:
		return result.output, result.err
	}
}
