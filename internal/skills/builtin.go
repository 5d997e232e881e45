package skills

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"conductor/internal/clients"
	"conductor/internal/envelope"
	dErrors "conductor/pkg/domain-errors"
	"conductor/pkg/platform/sentinel"
)

// Catalog maps handler names to handler functions. Skill registration over
// the API binds descriptors to handlers by name; arbitrary code never
// enters through the transport.
type Catalog struct {
	handlers map[string]Handler
}

func NewCatalog(downstream *clients.Set) *Catalog {
	c := &Catalog{handlers: make(map[string]Handler)}
	c.handlers["echo"] = echoHandler
	c.handlers["summarize.doc"] = summarizeHandler
	c.handlers["context.get"] = contextGetHandler(downstream.Context)
	c.handlers["storage.put"] = storagePutHandler(downstream.Storage)
	c.handlers["inference"] = inferenceHandler(downstream.Inference)
	return c
}

// Lookup returns the handler registered under name.
func (c *Catalog) Lookup(name string) (Handler, error) {
	handler, ok := c.handlers[name]
	if !ok {
		return nil, dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "unknown handler: "+name)
	}
	return handler, nil
}

// Names lists available handler names.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	return names
}

// RegisterBuiltins installs the default skill set.
func (c *Catalog) RegisterBuiltins(registry *Registry) error {
	builtins := []Descriptor{
		{Intent: "echo", HandlerName: "echo"},
		{Intent: "summarize.doc", HandlerName: "summarize.doc"},
		{Intent: "context.get", HandlerName: "context.get", RequiredRoles: []string{"operator", "admin"}},
		{Intent: "storage.put", HandlerName: "storage.put", RequiredRoles: []string{"operator", "admin"}},
		{Intent: "analyze.code", HandlerName: "inference", RequiredRoles: []string{"operator", "admin"}, Timeout: 30 * time.Second},
		{Intent: "translate.text", HandlerName: "inference", Timeout: 30 * time.Second},
		{Intent: "generate.idea", HandlerName: "inference", Timeout: 30 * time.Second},
	}
	for i := range builtins {
		handler, err := c.Lookup(builtins[i].HandlerName)
		if err != nil {
			return err
		}
		if err := registry.Register(&builtins[i], handler); err != nil {
			return err
		}
	}
	return nil
}

func echoHandler(_ context.Context, env *envelope.Envelope) (map[string]any, error) {
	return map[string]any{
		"intent":  env.Intent,
		"payload": env.Payload,
	}, nil
}

func summarizeHandler(_ context.Context, env *envelope.Envelope) (map[string]any, error) {
	text, _ := env.Payload["text"].(string)
	if text == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "payload.text is required")
	}
	const limit = 280
	summary := text
	if len(summary) > limit {
		summary = summary[:limit] + "..."
	}
	return map[string]any{
		"summary": summary,
		"length":  len(text),
	}, nil
}

func contextGetHandler(client *clients.Client) Handler {
	return func(ctx context.Context, env *envelope.Envelope) (map[string]any, error) {
		key, _ := env.Payload["key"].(string)
		if key == "" {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "payload.key is required")
		}
		status, body, err := client.GetJSON(ctx, "/context/"+url.PathEscape(key))
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			return nil, dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "context key not found: "+key)
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("context: status %d: %w", status, sentinel.ErrUnavailable)
		}
		return body, nil
	}
}

func storagePutHandler(client *clients.Client) Handler {
	return func(ctx context.Context, env *envelope.Envelope) (map[string]any, error) {
		key, _ := env.Payload["key"].(string)
		if key == "" {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "payload.key is required")
		}
		value, ok := env.Payload["value"]
		if !ok {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "payload.value is required")
		}
		status, body, err := client.PutJSON(ctx, "/objects/"+url.PathEscape(key), map[string]any{"value": value})
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK && status != http.StatusCreated {
			return nil, fmt.Errorf("storage: status %d: %w", status, sentinel.ErrUnavailable)
		}
		if body == nil {
			body = map[string]any{"stored": key}
		}
		return body, nil
	}
}

func inferenceHandler(client *clients.Client) Handler {
	return func(ctx context.Context, env *envelope.Envelope) (map[string]any, error) {
		prompt, _ := env.Payload["prompt"].(string)
		if prompt == "" {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "payload.prompt is required")
		}
		request := map[string]any{
			"task":   env.Intent,
			"prompt": prompt,
		}
		status, body, err := client.PostJSON(ctx, "/infer", request)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("inference: status %d: %w", status, sentinel.ErrUnavailable)
		}
		return body, nil
	}
}
