package skills

import (
	"context"
	"time"

	"conductor/internal/envelope"
)

// Handler executes one intent against an envelope. Implementations must
// honor ctx cancellation; the dispatcher enforces the descriptor timeout.
type Handler func(ctx context.Context, env *envelope.Envelope) (map[string]any, error)

// RetryPolicy bounds retries for transient handler failures.
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts"`
	Backoff     time.Duration `json:"backoff"`
}

// Descriptor describes one registered skill. At most one descriptor exists
// per intent; registration is admin-gated at the transport layer.
type Descriptor struct {
	Intent        string        `json:"intent"`
	RequiredRoles []string      `json:"required_roles,omitempty"`
	HandlerName   string        `json:"handler"`
	Timeout       time.Duration `json:"timeout"`
	Retry         RetryPolicy   `json:"retry"`

	handler Handler
}

// Handler returns the bound handler function.
func (d *Descriptor) Handler() Handler {
	return d.handler
}
