package models

import "time"

// EndpointClass categorizes endpoints for differentiated rate limiting.
type EndpointClass string

const (
	// ClassEvent: the event intake pipeline - /event
	ClassEvent EndpointClass = "event"
	// ClassRead: read operations - /skills
	ClassRead EndpointClass = "read"
	// ClassAdmin: admin mutations - skill registration
	ClassAdmin EndpointClass = "admin"
)

// IsValid checks if the endpoint class is one of the supported enum values.
func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassEvent, ClassRead, ClassAdmin:
		return true
	}
	return false
}

// KeyPrefix distinguishes the identity kind inside bucket keys.
type KeyPrefix string

const (
	KeyPrefixIP   KeyPrefix = "ip"
	KeyPrefixUser KeyPrefix = "user"
)

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}
