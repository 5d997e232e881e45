// Package clients provides HTTP clients for the downstream collaborators:
// context, storage, inference, and policy. The pipeline only depends on
// their boundary behavior; their internals are out of scope.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"conductor/internal/platform/config"
	"conductor/pkg/platform/sentinel"
)

// Client is a JSON-over-HTTP client for one collaborator.
type Client struct {
	name    string
	baseURL string
	http    *http.Client
}

func NewClient(name string, endpoint config.Endpoint, timeout time.Duration) *Client {
	return &Client{
		name:    name,
		baseURL: fmt.Sprintf("http://%s:%d", endpoint.Host, endpoint.Port),
		http:    &http.Client{Timeout: timeout},
	}
}

// Name returns the collaborator name, used in readiness reporting.
func (c *Client) Name() string {
	return c.name
}

// PostJSON sends a JSON body and decodes a JSON response. Network-level
// failures are wrapped with sentinel.ErrUnavailable so callers can treat
// them as transient.
func (c *Client) PostJSON(ctx context.Context, path string, body any) (int, map[string]any, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: encode request: %w", c.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return 0, nil, fmt.Errorf("%s: build request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// GetJSON fetches a JSON document.
func (c *Client) GetJSON(ctx context.Context, path string) (int, map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: build request: %w", c.name, err)
	}
	return c.do(req)
}

// PutJSON sends a JSON body via PUT.
func (c *Client) PutJSON(ctx context.Context, path string, body any) (int, map[string]any, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: encode request: %w", c.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return 0, nil, fmt.Errorf("%s: build request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (int, map[string]any, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %v: %w", c.name, err, sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%s: read response: %w", c.name, sentinel.ErrUnavailable)
	}

	var decoded map[string]any
	if len(raw) > 0 {
		// Collaborators always speak JSON; a non-JSON body is reported as-is.
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("%s: malformed response body", c.name)
		}
	}
	return resp.StatusCode, decoded, nil
}

// Health probes the collaborator's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	status, _, err := c.GetJSON(ctx, "/health")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%s: health status %d: %w", c.name, status, sentinel.ErrUnavailable)
	}
	return nil
}

// Set bundles all downstream collaborators.
type Set struct {
	Context   *Client
	Storage   *Client
	Inference *Client
	Policy    *Client
}

// NewSet builds clients for every collaborator from config.
func NewSet(cfg config.Config) *Set {
	return &Set{
		Context:   NewClient("context", cfg.Context, cfg.DispatchTimeout),
		Storage:   NewClient("storage", cfg.Storage, cfg.DispatchTimeout),
		Inference: NewClient("inference", cfg.Inference, cfg.DispatchTimeout),
		Policy:    NewClient("policy", cfg.Policy, cfg.PolicyTimeout),
	}
}

// All returns every collaborator for readiness fan-out.
func (s *Set) All() []*Client {
	return []*Client{s.Context, s.Storage, s.Inference, s.Policy}
}
