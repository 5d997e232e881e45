package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"conductor/internal/audit"
	"conductor/internal/auth"
	"conductor/internal/auth/jwt"
	"conductor/internal/auth/revocation"
	"conductor/internal/clients"
	"conductor/internal/pipeline"
	pipelinehandler "conductor/internal/pipeline/handler"
	"conductor/internal/platform/config"
	"conductor/internal/policy"
	ratelimitmw "conductor/internal/ratelimit/middleware"
	ratelimitsvc "conductor/internal/ratelimit/service"
	"conductor/internal/ratelimit/store/bucket"
	"conductor/internal/rbac"
	"conductor/internal/skills"
	skillshandler "conductor/internal/skills/handler"
)

// stubEvaluator allows everything; policy behavior is covered by the
// pipeline tests.
type stubEvaluator struct{}

func (stubEvaluator) Evaluate(context.Context, policy.Query) (policy.Decision, error) {
	return policy.Decision{Outcome: policy.OutcomeAllow}, nil
}

type RouterSuite struct {
	suite.Suite
	router     http.Handler
	tokens     *jwt.Service
	registry   *skills.Registry
	downstream *httptest.Server
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	// One stub serves all four collaborators; each answers /health.
	s.downstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))

	u, err := url.Parse(s.downstream.URL)
	s.Require().NoError(err)
	port, err := strconv.Atoi(u.Port())
	s.Require().NoError(err)
	endpoint := config.Endpoint{Host: u.Hostname(), Port: port}

	cfg := config.Config{
		Context: endpoint, Storage: endpoint, Policy: endpoint, Inference: endpoint,
		DispatchTimeout: time.Second, PolicyTimeout: time.Second,
	}
	downstream := clients.NewSet(cfg)

	s.tokens = jwt.NewService("router-test-key", "conductor", "conductor-clients")
	authSvc := auth.NewService(s.tokens, revocation.NewInMemoryStore())

	limiter, err := ratelimitsvc.New(bucket.NewInMemoryBucketStore(), ratelimitsvc.Limits{
		GlobalPerIP: 1000,
		PerUser:     1000,
		Window:      time.Minute,
	})
	s.Require().NoError(err)

	s.registry = skills.NewRegistry(time.Second, skills.RetryPolicy{MaxAttempts: 2, Backoff: time.Millisecond})
	catalog := skills.NewCatalog(downstream)
	s.Require().NoError(catalog.RegisterBuiltins(s.registry))

	recorder := audit.NewRecorder(audit.NewInMemoryStore(), time.Second)
	pipe := pipeline.New(
		authSvc,
		limiter,
		rbac.New(s.registry),
		policy.NewGate(stubEvaluator{}, time.Second),
		skills.NewDispatcher(s.registry),
		recorder,
		64*1024,
	)

	log := slog.Default()
	s.router = NewRouter(Deps{
		Logger:        log,
		Authenticator: authSvc,
		RateLimit:     ratelimitmw.New(limiter, log),
		Events:        pipelinehandler.New(pipe, 128*1024, log),
		Skills:        skillshandler.New(s.registry, catalog, log),
		Downstream:    downstream,
		Registry:      s.registry,
		Audit:         recorder,
	})
}

func (s *RouterSuite) TearDownTest() {
	s.downstream.Close()
}

func (s *RouterSuite) bearer(subject string, roles ...string) string {
	token, err := s.tokens.Generate(subject, roles, nil, time.Hour)
	s.Require().NoError(err)
	return "Bearer " + token
}

func (s *RouterSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) TestHealth() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "ok")
}

func (s *RouterSuite) TestReady() {
	s.Run("all checks pass", func() {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
		s.Equal(http.StatusOK, rec.Code)

		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal("ready", body.Status)
		s.Equal("ok", body.Checks["policy"])
		s.Equal("ok", body.Checks["skills"])
		s.Equal("ok", body.Checks["audit"])
	})

	s.Run("downstream outage reports not ready", func() {
		s.downstream.Close()
		rec := s.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
		s.Equal(http.StatusServiceUnavailable, rec.Code)
		s.Contains(rec.Body.String(), "not_ready")
	})
}

func (s *RouterSuite) TestMetrics() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestEvent() {
	s.Run("requires a token", func() {
		req := httptest.NewRequest(http.MethodPost, "/event",
			strings.NewReader(`{"intent":"echo","payload":{"msg":"hi"}}`))
		rec := s.do(req)

		s.Equal(http.StatusUnauthorized, rec.Code)
		// The body never says which auth check failed.
		s.NotContains(rec.Body.String(), "expired")
		s.NotContains(rec.Body.String(), "error_description")
	})

	s.Run("processes a valid event", func() {
		req := httptest.NewRequest(http.MethodPost, "/event",
			strings.NewReader(`{"intent":"echo","payload":{"msg":"hi"}}`))
		req.Header.Set("Authorization", s.bearer("user-1"))
		rec := s.do(req)

		s.Equal(http.StatusOK, rec.Code)

		var body struct {
			CorrelationID string         `json:"correlation_id"`
			Result        map[string]any `json:"result"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.NotEmpty(body.CorrelationID)
		s.Equal("echo", body.Result["intent"])
		s.NotEmpty(rec.Header().Get("X-RateLimit-Remaining"))
		s.NotEmpty(rec.Header().Get("X-Request-ID"))
	})

	s.Run("rejection carries the correlation id", func() {
		req := httptest.NewRequest(http.MethodPost, "/event",
			strings.NewReader(`{"intent":"no.such.intent","payload":{"a":1}}`))
		req.Header.Set("Authorization", s.bearer("user-1"))
		rec := s.do(req)

		s.Equal(http.StatusNotFound, rec.Code)
		s.Contains(rec.Body.String(), "correlation_id")
	})
}

func (s *RouterSuite) TestSkills() {
	s.Run("listing needs a token", func() {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/skills", nil))
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.NotContains(rec.Body.String(), "echo")
	})

	s.Run("authenticated caller lists skills", func() {
		req := httptest.NewRequest(http.MethodGet, "/skills", nil)
		req.Header.Set("Authorization", s.bearer("user-1"))
		rec := s.do(req)
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), "echo")
	})

	s.Run("registration needs a token", func() {
		req := httptest.NewRequest(http.MethodPost, "/skills",
			strings.NewReader(`{"intent":"custom.echo","handler":"echo"}`))
		rec := s.do(req)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("registration needs the admin role", func() {
		req := httptest.NewRequest(http.MethodPost, "/skills",
			strings.NewReader(`{"intent":"custom.echo","handler":"echo"}`))
		req.Header.Set("Authorization", s.bearer("user-1", "operator"))
		rec := s.do(req)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("admin registers a skill", func() {
		req := httptest.NewRequest(http.MethodPost, "/skills",
			strings.NewReader(`{"intent":"custom.echo","handler":"echo"}`))
		req.Header.Set("Authorization", s.bearer("admin-1", "admin"))
		rec := s.do(req)

		s.Equal(http.StatusCreated, rec.Code)
		_, err := s.registry.Resolve("custom.echo")
		s.NoError(err)
	})
}
