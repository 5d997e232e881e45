package skills

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"conductor/internal/clients"
	"conductor/internal/envelope"
	"conductor/internal/platform/config"
	dErrors "conductor/pkg/domain-errors"
	"conductor/pkg/platform/sentinel"
)

func endpointFor(t *testing.T, server *httptest.Server) config.Endpoint {
	t.Helper()
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return config.Endpoint{Host: u.Hostname(), Port: port}
}

type BuiltinSuite struct {
	suite.Suite
	ctx context.Context
}

func TestBuiltinSuite(t *testing.T) {
	suite.Run(t, new(BuiltinSuite))
}

func (s *BuiltinSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *BuiltinSuite) catalogWith(downstream *clients.Set) *Catalog {
	if downstream == nil {
		downstream = &clients.Set{}
	}
	return NewCatalog(downstream)
}

func (s *BuiltinSuite) TestEcho() {
	catalog := s.catalogWith(nil)
	handler, err := catalog.Lookup("echo")
	s.Require().NoError(err)

	output, err := handler(s.ctx, &envelope.Envelope{
		Intent:  "echo",
		Payload: map[string]any{"msg": "hello"},
	})
	s.Require().NoError(err)
	s.Equal("echo", output["intent"])
	s.Equal(map[string]any{"msg": "hello"}, output["payload"])
}

func (s *BuiltinSuite) TestSummarize() {
	catalog := s.catalogWith(nil)
	handler, err := catalog.Lookup("summarize.doc")
	s.Require().NoError(err)

	s.Run("short text passes through", func() {
		output, err := handler(s.ctx, &envelope.Envelope{Payload: map[string]any{"text": "short"}})
		s.Require().NoError(err)
		s.Equal("short", output["summary"])
		s.Equal(5, output["length"])
	})

	s.Run("long text truncated", func() {
		long := strings.Repeat("a", 500)
		output, err := handler(s.ctx, &envelope.Envelope{Payload: map[string]any{"text": long}})
		s.Require().NoError(err)
		summary := output["summary"].(string)
		s.Len(summary, 283)
		s.True(strings.HasSuffix(summary, "..."))
		s.Equal(500, output["length"])
	})

	s.Run("missing text rejected", func() {
		_, err := handler(s.ctx, &envelope.Envelope{Payload: map[string]any{}})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *BuiltinSuite) TestCatalogLookup() {
	catalog := s.catalogWith(nil)

	_, err := catalog.Lookup("nonexistent")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.ElementsMatch(
		[]string{"echo", "summarize.doc", "context.get", "storage.put", "inference"},
		catalog.Names(),
	)
}

func (s *BuiltinSuite) TestRegisterBuiltins() {
	catalog := s.catalogWith(nil)
	registry := NewRegistry(5*time.Second, RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond})

	s.Require().NoError(catalog.RegisterBuiltins(registry))
	s.Equal([]string{
		"analyze.code", "context.get", "echo", "generate.idea",
		"storage.put", "summarize.doc", "translate.text",
	}, registry.Intents())

	// Public skills carry no role requirements.
	roles, known := registry.RequiredRoles("echo")
	s.True(known)
	s.Empty(roles)

	roles, known = registry.RequiredRoles("storage.put")
	s.True(known)
	s.Contains(roles, "operator")
}

func (s *BuiltinSuite) TestContextGet() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/context/known":
			_ = json.NewEncoder(w).Encode(map[string]any{"key": "known", "value": "v"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := clients.NewClient("context", endpointFor(s.T(), server), time.Second)
	handler := contextGetHandler(client)

	s.Run("found", func() {
		output, err := handler(s.ctx, &envelope.Envelope{Payload: map[string]any{"key": "known"}})
		s.Require().NoError(err)
		s.Equal("v", output["value"])
	})

	s.Run("missing key in payload", func() {
		_, err := handler(s.ctx, &envelope.Envelope{Payload: map[string]any{}})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("not found downstream", func() {
		_, err := handler(s.ctx, &envelope.Envelope{Payload: map[string]any{"key": "absent"}})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *BuiltinSuite) TestStoragePut() {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"stored": true})
	}))
	defer server.Close()

	client := clients.NewClient("storage", endpointFor(s.T(), server), time.Second)
	handler := storagePutHandler(client)

	output, err := handler(s.ctx, &envelope.Envelope{Payload: map[string]any{"key": "k1", "value": "v1"}})
	s.Require().NoError(err)
	s.Equal(true, output["stored"])
	s.Equal("v1", gotBody["value"])
}

func (s *BuiltinSuite) TestInference() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{"task": req["task"], "result": "done"})
	}))
	defer server.Close()

	client := clients.NewClient("inference", endpointFor(s.T(), server), time.Second)
	handler := inferenceHandler(client)

	s.Run("forwards the intent as the task", func() {
		output, err := handler(s.ctx, &envelope.Envelope{
			Intent:  "analyze.code",
			Payload: map[string]any{"prompt": "review this"},
		})
		s.Require().NoError(err)
		s.Equal("analyze.code", output["task"])
		s.Equal("done", output["result"])
	})

	s.Run("unreachable backend is transient", func() {
		down := clients.NewClient("inference", config.Endpoint{Host: "127.0.0.1", Port: 1}, 100*time.Millisecond)
		_, err := inferenceHandler(down)(s.ctx, &envelope.Envelope{
			Intent:  "analyze.code",
			Payload: map[string]any{"prompt": "x"},
		})
		s.Require().Error(err)
		s.ErrorIs(err, sentinel.ErrUnavailable)
	})
}
