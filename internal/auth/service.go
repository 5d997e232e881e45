// Package auth authenticates bearer tokens: signature, expiry, and the
// mandatory revocation check.
package auth

import (
	"context"
	"strings"
	"time"

	dErrors "conductor/pkg/domain-errors"
)

// Verifier decodes and verifies a signed token string.
type Verifier interface {
	Verify(tokenString string) (*Token, FailureReason, error)
}

// RevocationStore is the shared revocation set.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Service performs full authentication for one bearer token. The revocation
// check is a round trip to the shared store and is never skipped.
type Service struct {
	verifier Verifier
	revoked  RevocationStore
}

func NewService(verifier Verifier, revoked RevocationStore) *Service {
	return &Service{verifier: verifier, revoked: revoked}
}

// Result carries the outcome of an authentication attempt. Reason is only
// populated on failure and is for internal audit; callers must respond with
// a generic unauthorized regardless of it.
type Result struct {
	Token  *Token
	Reason FailureReason
}

// Authenticate verifies the Authorization header value. A missing or
// non-bearer header counts as malformed.
func (s *Service) Authenticate(ctx context.Context, authHeader string) (*Result, error) {
	raw, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || raw == "" {
		return &Result{Reason: ReasonMalformed},
			dErrors.New(dErrors.CodeUnauthorized, "unauthorized")
	}

	token, reason, err := s.verifier.Verify(raw)
	if err != nil {
		return &Result{Reason: reason},
			dErrors.Wrap(err, dErrors.CodeUnauthorized, "unauthorized")
	}

	revoked, err := s.revoked.IsRevoked(ctx, token.TokenID)
	if err != nil {
		// A store failure means revocation state is unknown; fail closed.
		return &Result{Reason: ReasonRevoked},
			dErrors.Wrap(err, dErrors.CodeUnauthorized, "unauthorized")
	}
	if revoked {
		return &Result{Reason: ReasonRevoked},
			dErrors.New(dErrors.CodeUnauthorized, "unauthorized")
	}

	return &Result{Token: token}, nil
}

// Revoke invalidates a token id for the remainder of its lifetime.
func (s *Service) Revoke(ctx context.Context, token *Token) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.revoked.Revoke(ctx, token.TokenID, ttl)
}
