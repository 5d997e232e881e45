package auth

import "time"

// Token is the decoded, verified access token for one request.
type Token struct {
	Subject   string
	Roles     []string
	Scopes    []string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasRole reports whether the token carries the given role.
func (t *Token) HasRole(role string) bool {
	for _, r := range t.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// FailureReason classifies why authentication failed. Reasons are for the
// audit trail only; the external response is always a generic unauthorized
// so callers cannot probe which check rejected them.
type FailureReason string

const (
	ReasonExpired          FailureReason = "expired"
	ReasonInvalidSignature FailureReason = "invalid_signature"
	ReasonRevoked          FailureReason = "revoked"
	ReasonMalformed        FailureReason = "malformed"
)
