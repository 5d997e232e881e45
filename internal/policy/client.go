package policy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"conductor/pkg/platform/sentinel"
)

// httpDoer is the slice of clients.Client the evaluator needs.
type httpDoer interface {
	PostJSON(ctx context.Context, path string, body any) (int, map[string]any, error)
}

// Client evaluates queries against the remote policy service.
type Client struct {
	http       httpDoer
	defaultTTL time.Duration
}

func NewClient(http httpDoer, defaultTTL time.Duration) *Client {
	return &Client{http: http, defaultTTL: defaultTTL}
}

// Evaluate calls the policy service. Any transport failure, non-2xx
// status, or malformed body is returned as an error; the gate turns
// errors into denials.
func (c *Client) Evaluate(ctx context.Context, q Query) (Decision, error) {
	request := map[string]any{
		"subject":     q.Subject,
		"intent":      q.Intent,
		"fingerprint": q.Fingerprint,
		"context": map[string]any{
			"roles":  q.Roles,
			"source": q.Source,
		},
	}

	status, body, err := c.http.PostJSON(ctx, "/evaluate", request)
	if err != nil {
		return Decision{}, err
	}
	if status != http.StatusOK {
		return Decision{}, fmt.Errorf("policy: evaluate status %d: %w", status, sentinel.ErrUnavailable)
	}

	raw, ok := body["decision"].(map[string]any)
	if !ok {
		return Decision{}, fmt.Errorf("policy: response missing decision")
	}

	allowed, ok := raw["allowed"].(bool)
	if !ok {
		return Decision{}, fmt.Errorf("policy: decision missing allowed flag")
	}

	decision := Decision{
		Outcome:   OutcomeDeny,
		TTL:       c.defaultTTL,
		DecidedAt: time.Now().UTC(),
	}
	if allowed {
		decision.Outcome = OutcomeAllow
	}
	if reason, ok := raw["reason"].(string); ok {
		decision.Reason = reason
	}
	if ttl, ok := raw["ttl_seconds"].(float64); ok && ttl > 0 {
		decision.TTL = time.Duration(ttl) * time.Second
	}
	if obligations, ok := raw["obligations"].([]any); ok {
		for _, entry := range obligations {
			item, ok := entry.(map[string]any)
			if !ok {
				return Decision{}, fmt.Errorf("policy: malformed obligation")
			}
			obligation := Obligation{}
			if t, ok := item["type"].(string); ok {
				obligation.Type = t
			}
			if f, ok := item["field"].(string); ok {
				obligation.Field = f
			}
			if obligation.Type == "" {
				return Decision{}, fmt.Errorf("policy: obligation missing type")
			}
			decision.Obligations = append(decision.Obligations, obligation)
		}
	}
	return decision, nil
}
