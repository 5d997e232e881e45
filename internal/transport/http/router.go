// Package httptransport assembles the public HTTP surface. Handlers live
// with their domains; this package only mounts them and applies the shared
// middleware chain.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"conductor/internal/clients"
	pipelinehandler "conductor/internal/pipeline/handler"
	ratelimitmw "conductor/internal/ratelimit/middleware"
	"conductor/internal/ratelimit/models"
	skillshandler "conductor/internal/skills/handler"
	adminmw "conductor/pkg/platform/middleware/admin"
	authmw "conductor/pkg/platform/middleware/auth"
	"conductor/pkg/platform/middleware/metadata"
	requestmw "conductor/pkg/platform/middleware/request"
	"conductor/pkg/platform/httputil"
)

// SkillCounter reports how many skills are registered.
type SkillCounter interface {
	Len() int
}

// AuditHealth reports whether the audit sink is accepting records.
type AuditHealth interface {
	Healthy() bool
}

// Deps carries everything the router mounts.
type Deps struct {
	Logger        *slog.Logger
	Authenticator authmw.Authenticator
	RateLimit     *ratelimitmw.Middleware
	Events        *pipelinehandler.Handler
	Skills        *skillshandler.Handler
	Downstream    *clients.Set
	Registry      SkillCounter
	Audit         AuditHealth

	BootstrapKeyHash string
	AllowedHosts     []string
	CORSOrigins      []string
	ReadyTimeout     time.Duration
}

// NewRouter wires all public endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(requestmw.RequestID)
	r.Use(metadata.ClientMetadata)
	if len(deps.AllowedHosts) > 0 {
		r.Use(allowedHosts(deps.AllowedHosts))
	}
	if len(deps.CORSOrigins) > 0 {
		r.Use(cors(deps.CORSOrigins))
	}

	r.Get("/health", handleHealth)
	r.Get("/ready", handleReady(deps))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Event intake authenticates inside the pipeline so every rejection
	// is audited with the stage it happened at.
	r.Group(func(r chi.Router) {
		deps.Events.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(deps.Authenticator, deps.Logger))
		r.Use(deps.RateLimit.RateLimitAuthenticated(models.ClassRead))
		deps.Skills.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(deps.Authenticator, deps.Logger))
		r.Use(adminmw.RequireAdmin(deps.BootstrapKeyHash, deps.Logger))
		r.Use(deps.RateLimit.RateLimitAuthenticated(models.ClassAdmin))
		deps.Skills.RegisterAdmin(r)
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady aggregates downstream health, skill registration state, and
// the audit sink. Any failure reports 503 with per-check detail.
func handleReady(deps Deps) http.HandlerFunc {
	timeout := deps.ReadyTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		checks := make(map[string]string)
		ready := true

		g, gctx := errgroup.WithContext(ctx)
		results := make([]error, len(deps.Downstream.All()))
		for i, client := range deps.Downstream.All() {
			g.Go(func() error {
				results[i] = client.Health(gctx)
				return nil
			})
		}
		_ = g.Wait()

		for i, client := range deps.Downstream.All() {
			if results[i] != nil {
				checks[client.Name()] = "unavailable"
				ready = false
			} else {
				checks[client.Name()] = "ok"
			}
		}

		if deps.Registry.Len() == 0 {
			checks["skills"] = "empty"
			ready = false
		} else {
			checks["skills"] = "ok"
		}

		if !deps.Audit.Healthy() {
			checks["audit"] = "degraded"
			ready = false
		} else {
			checks["audit"] = "ok"
		}

		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status": state,
			"checks": checks,
		})
	}
}

func allowedHosts(hosts []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(hosts, r.Host) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"bad_request","error_description":"host not allowed"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func cors(origins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (slices.Contains(origins, "*") || slices.Contains(origins, origin)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID, X-Bootstrap-Key")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
