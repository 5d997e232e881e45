// Package admin guards administrative routes. A request passes with the
// admin role on its token, or with the bootstrap key when operators have
// configured one for first-time setup.
package admin

import (
	"log/slog"
	"net/http"
	"slices"

	"conductor/internal/auth"
	"conductor/pkg/requestcontext"
)

func RequireAdmin(bootstrapKeyHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if slices.Contains(requestcontext.Roles(ctx), "admin") {
				next.ServeHTTP(w, r)
				return
			}

			if key := r.Header.Get("X-Bootstrap-Key"); key != "" && bootstrapKeyHash != "" {
				if auth.VerifySecret(key, bootstrapKeyHash) == nil {
					next.ServeHTTP(w, r)
					return
				}
				logger.WarnContext(ctx, "bootstrap key mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
			}

			logger.WarnContext(ctx, "admin access denied",
				"subject", requestcontext.Subject(ctx),
				"request_id", requestcontext.RequestID(ctx),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"admin role required"}`))
		})
	}
}
