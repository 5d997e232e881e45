package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Outcome is the three-way result of a policy evaluation.
type Outcome string

const (
	OutcomeAllow Outcome = "allow"
	OutcomeDeny  Outcome = "deny"
	// OutcomeIndeterminate means the evaluator could not decide. Callers
	// must treat it as a denial.
	OutcomeIndeterminate Outcome = "indeterminate"
)

// Obligation is a constraint the caller must apply before acting on an
// allow decision.
type Obligation struct {
	Type  string `json:"type"`
	Field string `json:"field,omitempty"`
}

const ObligationRedact = "redact"

// Decision is the evaluator's answer for one (subject, intent, payload)
// triple.
type Decision struct {
	Outcome     Outcome
	Reason      string
	Obligations []Obligation
	TTL         time.Duration
	DecidedAt   time.Time
}

// Allowed reports whether the decision permits the action. Only an
// explicit allow counts.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// Query identifies one evaluation request.
type Query struct {
	Subject     string
	Intent      string
	Roles       []string
	Source      string
	Fingerprint string
}

// Fingerprint produces a stable digest of a payload so cache keys never
// hold raw payload data.
func Fingerprint(payload map[string]any) string {
	if len(payload) == 0 {
		return ""
	}
	// json.Marshal sorts map keys, so equal payloads digest identically.
	raw, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
