// Package policy gates every event on an external policy evaluator. The
// gate fails closed: an evaluator that cannot be reached, times out, or
// answers nonsense denies the event.
package policy

import (
	"context"
	"log/slog"
	"time"

	"conductor/internal/policy/metrics"
	dErrors "conductor/pkg/domain-errors"
)

// Evaluator is the port the gate consults. *Client implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, q Query) (Decision, error)
}

// Gate wraps the evaluator with a TTL cache and fail-closed semantics.
type Gate struct {
	evaluator   Evaluator
	cache       *Cache
	timeout     time.Duration
	cacheDenies bool
	log         *slog.Logger
}

type GateOption func(*Gate)

func WithLogger(log *slog.Logger) GateOption {
	return func(g *Gate) { g.log = log }
}

// WithDenyCaching makes the gate cache deny decisions too. Off by
// default so a transiently denied subject recovers without waiting out
// the TTL.
func WithDenyCaching() GateOption {
	return func(g *Gate) { g.cacheDenies = true }
}

func NewGate(evaluator Evaluator, timeout time.Duration, opts ...GateOption) *Gate {
	g := &Gate{
		evaluator: evaluator,
		cache:     NewCache(),
		timeout:   timeout,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check returns the decision for a query. A non-nil error always means
// the event is denied; the decision is still returned for auditing.
func (g *Gate) Check(ctx context.Context, q Query) (Decision, error) {
	if cached, ok := g.cache.Get(q); ok {
		metrics.RecordDecision(string(cached.Outcome), true)
		if !cached.Allowed() {
			return cached, dErrors.New(dErrors.CodePolicyDenied, "denied by policy")
		}
		return cached, nil
	}

	evalCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	decision, err := g.evaluator.Evaluate(evalCtx, q)
	metrics.ObserveEvaluation(float64(time.Since(start).Milliseconds()))

	if err != nil {
		g.log.WarnContext(ctx, "policy evaluation failed, denying",
			"subject", q.Subject,
			"intent", q.Intent,
			"error", err,
		)
		decision = Decision{
			Outcome:   OutcomeIndeterminate,
			Reason:    "evaluator unavailable",
			DecidedAt: time.Now().UTC(),
		}
		metrics.RecordDecision(string(decision.Outcome), false)
		return decision, dErrors.Wrap(err, dErrors.CodePolicyDenied, "denied by policy")
	}

	metrics.RecordDecision(string(decision.Outcome), false)

	if decision.Allowed() || g.cacheDenies {
		g.cache.Put(q, decision)
	}
	if !decision.Allowed() {
		return decision, dErrors.New(dErrors.CodePolicyDenied, "denied by policy")
	}
	return decision, nil
}

// Invalidate drops cached decisions for a subject.
func (g *Gate) Invalidate(subject string) {
	g.cache.Invalidate(subject)
}
