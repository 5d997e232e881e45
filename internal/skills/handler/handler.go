// Package handler wires skill registry endpoints to the registry.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"conductor/internal/skills"
	dErrors "conductor/pkg/domain-errors"
	"conductor/pkg/platform/httputil"
	"conductor/pkg/requestcontext"
)

// Handler serves skill listing and registration.
type Handler struct {
	registry *skills.Registry
	catalog  *skills.Catalog
	logger   *slog.Logger
}

func New(registry *skills.Registry, catalog *skills.Catalog, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		catalog:  catalog,
		logger:   logger,
	}
}

// Register mounts public skill routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/skills", h.HandleList)
}

// RegisterAdmin mounts admin-only skill routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/skills", h.HandleRegister)
}

// descriptorResponse is the wire shape of one registered skill. Durations
// are reported in milliseconds.
type descriptorResponse struct {
	Intent        string   `json:"intent"`
	RequiredRoles []string `json:"required_roles,omitempty"`
	Handler       string   `json:"handler"`
	TimeoutMS     int64    `json:"timeout_ms"`
	MaxAttempts   int      `json:"max_attempts"`
	BackoffMS     int64    `json:"backoff_ms"`
}

func toResponse(desc skills.Descriptor) descriptorResponse {
	return descriptorResponse{
		Intent:        desc.Intent,
		RequiredRoles: desc.RequiredRoles,
		Handler:       desc.HandlerName,
		TimeoutMS:     desc.Timeout.Milliseconds(),
		MaxAttempts:   desc.Retry.MaxAttempts,
		BackoffMS:     desc.Retry.Backoff.Milliseconds(),
	}
}

// HandleList handles GET /skills requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	descriptors := h.registry.Descriptors()
	out := make([]descriptorResponse, 0, len(descriptors))
	for _, desc := range descriptors {
		out = append(out, toResponse(desc))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"skills": out})
}

type registerRequest struct {
	Intent        string   `json:"intent"`
	RequiredRoles []string `json:"required_roles"`
	Handler       string   `json:"handler"`
	TimeoutMS     int64    `json:"timeout_ms"`
	MaxAttempts   int      `json:"max_attempts"`
	BackoffMS     int64    `json:"backoff_ms"`
}

// HandleRegister handles POST /skills requests. The handler field names a
// catalog entry; descriptors never carry code.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := httputil.Decode[registerRequest](r)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed request body"))
		return
	}
	if req.Intent == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "intent: required"))
		return
	}
	if req.Handler == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "handler: required"))
		return
	}

	handlerFn, err := h.catalog.Lookup(req.Handler)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	desc := &skills.Descriptor{
		Intent:        req.Intent,
		RequiredRoles: req.RequiredRoles,
		HandlerName:   req.Handler,
		Timeout:       time.Duration(req.TimeoutMS) * time.Millisecond,
		Retry: skills.RetryPolicy{
			MaxAttempts: req.MaxAttempts,
			Backoff:     time.Duration(req.BackoffMS) * time.Millisecond,
		},
	}
	if err := h.registry.Register(desc, handlerFn); err != nil {
		h.logger.WarnContext(ctx, "skill registration rejected",
			"request_id", requestID,
			"intent", req.Intent,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	// Registration is an admin action; log enough to trace the token
	// that performed it.
	h.logger.InfoContext(ctx, "skill registered",
		"request_id", requestID,
		"intent", req.Intent,
		"handler", req.Handler,
		"subject", requestcontext.Subject(ctx),
		"token_id", requestcontext.TokenID(ctx),
		"scopes", requestcontext.Scopes(ctx),
	)
	httputil.WriteJSON(w, http.StatusCreated, toResponse(*desc))
}
