// Package pipeline runs every inbound event through the fixed decision
// sequence: validate, authenticate, rate limit, role check, policy gate,
// dispatch. Exactly one audit record is written per event, on every exit
// path, naming the stage that terminated processing.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"conductor/internal/audit"
	"conductor/internal/auth"
	"conductor/internal/envelope"
	"conductor/internal/pipeline/metrics"
	"conductor/internal/policy"
	"conductor/internal/ratelimit/models"
	ratelimit "conductor/internal/ratelimit/service"
	"conductor/internal/rbac"
	"conductor/internal/skills"
	dErrors "conductor/pkg/domain-errors"
)

// Request is one raw inbound event before any validation.
type Request struct {
	Body       []byte
	AuthHeader string
	ClientIP   string
	UserAgent  string
}

// Result accompanies every response, success or failure. RateLimit is set
// when the rate limiter produced a verdict, so the transport can emit
// X-RateLimit headers either way.
type Result struct {
	CorrelationID string
	Output        map[string]any
	RateLimit     *models.RateLimitResult
}

type Pipeline struct {
	auth       *auth.Service
	limiter    *ratelimit.Service
	authorizer *rbac.Authorizer
	gate       *policy.Gate
	dispatcher *skills.Dispatcher
	recorder   *audit.Recorder

	maxPayloadBytes int
	log             *slog.Logger
	tracer          trace.Tracer
}

type Option func(*Pipeline)

func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

func New(
	authService *auth.Service,
	limiter *ratelimit.Service,
	authorizer *rbac.Authorizer,
	gate *policy.Gate,
	dispatcher *skills.Dispatcher,
	recorder *audit.Recorder,
	maxPayloadBytes int,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		auth:            authService,
		limiter:         limiter,
		authorizer:      authorizer,
		gate:            gate,
		dispatcher:      dispatcher,
		recorder:        recorder,
		maxPayloadBytes: maxPayloadBytes,
		log:             slog.Default(),
		tracer:          otel.Tracer("conductor/pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// trail accumulates what the deferred audit write needs. It is mutated as
// stages advance so the record reflects exactly where processing stopped.
type trail struct {
	correlationID string
	subject       string
	intent        string
	clientIP      string
	userAgent     string
	stage         audit.Stage
	reason        string
}

// Process runs one event through every stage. The returned Result is
// non-nil whenever a correlation id exists, including on failure.
func (p *Pipeline) Process(ctx context.Context, req Request) (result *Result, err error) {
	start := time.Now()
	t := &trail{stage: audit.StageValidation, clientIP: req.ClientIP, userAgent: req.UserAgent}

	ctx, span := p.tracer.Start(ctx, "pipeline.process")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			p.log.ErrorContext(ctx, "pipeline panic", "panic", r, "correlation_id", t.correlationID)
			t.reason = "panic during processing"
			err = dErrors.New(dErrors.CodeInternal, "internal error")
			result = &Result{CorrelationID: t.correlationID}
		}

		outcome := outcomeFor(err)
		p.recorder.Record(audit.Record{
			CorrelationID: t.correlationID,
			Subject:       t.subject,
			Intent:        t.intent,
			Stage:         t.stage,
			Outcome:       outcome,
			Reason:        t.reason,
			ClientIP:      t.clientIP,
			UserAgent:     t.userAgent,
		})
		metrics.RecordEvent(string(t.stage), string(outcome), float64(time.Since(start).Milliseconds()))
		span.SetAttributes(
			attribute.String("stage", string(t.stage)),
			attribute.String("outcome", string(outcome)),
		)
	}()

	env, err := p.validate(ctx, req, t)
	if err != nil {
		return &Result{}, err
	}
	result = &Result{CorrelationID: env.CorrelationID}

	token, err := p.authenticate(ctx, req, t)
	if err != nil {
		return result, err
	}
	env.SubjectID = token.Subject
	t.subject = token.Subject

	rateResult, err := p.checkRateLimit(ctx, req, token, t)
	result.RateLimit = rateResult
	if err != nil {
		return result, err
	}

	if err := p.checkRoles(ctx, token, env, t); err != nil {
		return result, err
	}

	if err := p.checkPolicy(ctx, token, env, t); err != nil {
		return result, err
	}

	output, err := p.dispatch(ctx, env, t)
	if err != nil {
		return result, err
	}

	t.stage = audit.StageComplete
	result.Output = output
	return result, nil
}

func (p *Pipeline) validate(ctx context.Context, req Request, t *trail) (*envelope.Envelope, error) {
	_, span := p.tracer.Start(ctx, "pipeline.validate")
	defer span.End()

	t.stage = audit.StageValidation
	env, err := envelope.Parse(req.Body, p.maxPayloadBytes)
	if err != nil {
		t.reason = err.Error()
		return nil, err
	}
	t.correlationID = env.CorrelationID
	t.intent = env.Intent
	return env, nil
}

func (p *Pipeline) authenticate(ctx context.Context, req Request, t *trail) (*auth.Token, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.authenticate")
	defer span.End()

	t.stage = audit.StageAuth
	authResult, err := p.auth.Authenticate(ctx, req.AuthHeader)
	if err != nil {
		// The audit record keeps the specific failure; the client sees a
		// generic unauthorized.
		t.reason = string(authResult.Reason)
		return nil, err
	}
	return authResult.Token, nil
}

func (p *Pipeline) checkRateLimit(ctx context.Context, req Request, token *auth.Token, t *trail) (*models.RateLimitResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.ratelimit")
	defer span.End()

	t.stage = audit.StageRateLimit
	rateResult, err := p.limiter.CheckBoth(ctx, req.ClientIP, token.Subject, models.ClassEvent)
	if err != nil {
		t.reason = err.Error()
		return nil, err
	}
	if !rateResult.Allowed {
		t.reason = "rate limit exceeded"
		return rateResult, dErrors.New(dErrors.CodeRateLimited, "rate limit exceeded")
	}
	return rateResult, nil
}

func (p *Pipeline) checkRoles(ctx context.Context, token *auth.Token, env *envelope.Envelope, t *trail) error {
	_, span := p.tracer.Start(ctx, "pipeline.rbac")
	defer span.End()

	t.stage = audit.StageRBAC
	if err := p.authorizer.Authorize(token, env.Intent); err != nil {
		t.reason = "missing required role for " + env.Intent
		return err
	}
	return nil
}

func (p *Pipeline) checkPolicy(ctx context.Context, token *auth.Token, env *envelope.Envelope, t *trail) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.policy")
	defer span.End()

	t.stage = audit.StagePolicy
	decision, err := p.gate.Check(ctx, policy.Query{
		Subject:     token.Subject,
		Intent:      env.Intent,
		Roles:       token.Roles,
		Source:      env.Source,
		Fingerprint: policy.Fingerprint(env.Payload),
	})
	if err != nil {
		t.reason = decision.Reason
		if t.reason == "" {
			t.reason = "denied by policy"
		}
		return err
	}

	for _, obligation := range decision.Obligations {
		if obligation.Type == policy.ObligationRedact && obligation.Field != "" {
			delete(env.Payload, obligation.Field)
		}
	}
	return nil
}

func (p *Pipeline) dispatch(ctx context.Context, env *envelope.Envelope, t *trail) (map[string]any, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.dispatch",
		trace.WithAttributes(attribute.String("intent", env.Intent)))
	defer span.End()

	t.stage = audit.StageDispatch
	output, err := p.dispatcher.Dispatch(ctx, env)
	if err != nil {
		t.reason = err.Error()
		return nil, err
	}
	return output, nil
}

func outcomeFor(err error) audit.Outcome {
	switch {
	case err == nil:
		return audit.OutcomeAllowed
	case dErrors.HasCode(err, dErrors.CodeUnauthorized),
		dErrors.HasCode(err, dErrors.CodeForbidden),
		dErrors.HasCode(err, dErrors.CodePolicyDenied),
		dErrors.HasCode(err, dErrors.CodeRateLimited),
		dErrors.HasCode(err, dErrors.CodeValidation),
		dErrors.HasCode(err, dErrors.CodeBadRequest):
		return audit.OutcomeDenied
	default:
		return audit.OutcomeError
	}
}
