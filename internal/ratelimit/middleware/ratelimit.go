package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"conductor/internal/ratelimit/models"
	"conductor/pkg/platform/httputil"
	"conductor/pkg/requestcontext"
)

// RateLimiter is the limiter facade the middleware depends on.
type RateLimiter interface {
	CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error)
	CheckBoth(ctx context.Context, ip, subject string, class models.EndpointClass) (*models.RateLimitResult, error)
}

type Middleware struct {
	limiter RateLimiter
	logger  *slog.Logger
}

func New(limiter RateLimiter, logger *slog.Logger) *Middleware {
	return &Middleware{limiter: limiter, logger: logger}
}

// RateLimit enforces the global per-IP limit for an endpoint class.
// On limiter errors the request proceeds; availability beats strictness for
// non-pipeline endpoints, and the pipeline enforces its own limit.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, err := m.limiter.CheckIP(ctx, ip, class)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check IP rate limit", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitAuthenticated enforces both the per-IP and per-user limits.
// Requires RequireAuth to have populated the subject in the context.
func (m *Middleware) RateLimitAuthenticated(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			subject := requestcontext.Subject(ctx)

			result, err := m.limiter.CheckBoth(ctx, ip, subject, class)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check combined rate limit", "error", err, "subject", subject)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate_limited",
		"message":     "Too many requests. Please try again later.",
		"retry_after": result.RetryAfter,
	})
}
