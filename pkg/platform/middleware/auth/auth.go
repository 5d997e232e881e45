// Package auth guards routes that require a valid bearer token.
package auth

import (
	"context"
	"log/slog"
	"net/http"

	internalauth "conductor/internal/auth"
	"conductor/pkg/requestcontext"
)

// Authenticator performs full token authentication: signature, expiry,
// and the revocation check.
type Authenticator interface {
	Authenticate(ctx context.Context, authHeader string) (*internalauth.Result, error)
}

// RequireAuth rejects requests without a valid, unrevoked bearer token.
// The response body never says why authentication failed; the specific
// reason goes to the log only.
func RequireAuth(authenticator Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			result, err := authenticator.Authenticate(ctx, r.Header.Get("Authorization"))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized request",
					"reason", string(result.Reason),
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				writeUnauthorized(w)
				return
			}

			token := result.Token
			ctx = requestcontext.WithSubject(ctx, token.Subject)
			ctx = requestcontext.WithRoles(ctx, token.Roles)
			ctx = requestcontext.WithScopes(ctx, token.Scopes)
			ctx = requestcontext.WithTokenID(ctx, token.TokenID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
