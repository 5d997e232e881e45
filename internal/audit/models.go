package audit

import "time"

// Stage names how far through the pipeline an event got before it exited.
type Stage string

const (
	StageValidation Stage = "validation"
	StageAuth       Stage = "auth"
	StageRateLimit  Stage = "rate_limit"
	StageRBAC       Stage = "rbac"
	StagePolicy     Stage = "policy"
	StageDispatch   Stage = "dispatch"
	StageComplete   Stage = "complete"
)

// Outcome is the terminal disposition of an event.
type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeDenied  Outcome = "denied"
	OutcomeError   Outcome = "error"
)

// Record is emitted once per event on every exit path. Keep it
// transport-agnostic so stores and sinks can fan out.
type Record struct {
	CorrelationID string    `json:"correlation_id"`
	Subject       string    `json:"subject,omitempty"`
	Intent        string    `json:"intent,omitempty"`
	Stage         Stage     `json:"stage_reached"`
	Outcome       Outcome   `json:"outcome"`
	// Reason carries the internal failure detail, including anything
	// withheld from the client response.
	Reason    string    `json:"reason,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
