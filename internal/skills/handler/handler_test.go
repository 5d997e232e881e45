package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"conductor/internal/clients"
	"conductor/internal/skills"
)

type HandlerSuite struct {
	suite.Suite
	registry *skills.Registry
	router   chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.registry = skills.NewRegistry(5*time.Second, skills.RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond})
	catalog := skills.NewCatalog(&clients.Set{})
	s.Require().NoError(catalog.RegisterBuiltins(s.registry))

	h := New(s.registry, catalog, slog.Default())
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterAdmin(s.router)
}

func (s *HandlerSuite) TestList() {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/skills", nil))

	s.Equal(http.StatusOK, rec.Code)

	var body struct {
		Skills []struct {
			Intent  string `json:"intent"`
			Handler string `json:"handler"`
		} `json:"skills"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Len(body.Skills, s.registry.Len())
	s.Equal("analyze.code", body.Skills[0].Intent)
	s.Equal("inference", body.Skills[0].Handler)
}

func (s *HandlerSuite) TestRegister() {
	s.Run("valid registration", func() {
		payload := `{"intent":"echo.loud","handler":"echo","timeout_ms":1000,"max_attempts":2,"backoff_ms":50}`
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/skills", strings.NewReader(payload)))

		s.Equal(http.StatusCreated, rec.Code)

		desc, err := s.registry.Resolve("echo.loud")
		s.Require().NoError(err)
		s.Equal("echo", desc.HandlerName)
		s.Equal(time.Second, desc.Timeout)
		s.Equal(2, desc.Retry.MaxAttempts)
	})

	s.Run("duplicate intent conflicts", func() {
		payload := `{"intent":"echo","handler":"echo"}`
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/skills", strings.NewReader(payload)))

		s.Equal(http.StatusConflict, rec.Code)
		s.Contains(rec.Body.String(), "conflict")
	})

	s.Run("unknown handler name", func() {
		payload := `{"intent":"custom.x","handler":"not-a-handler"}`
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/skills", strings.NewReader(payload)))

		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("missing intent", func() {
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/skills", strings.NewReader(`{"handler":"echo"}`)))

		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "intent: required")
	})

	s.Run("malformed body", func() {
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/skills", strings.NewReader("{nope")))

		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
