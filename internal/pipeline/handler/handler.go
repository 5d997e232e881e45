// Package handler exposes the event intake endpoint.
package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"conductor/internal/pipeline"
	"conductor/internal/ratelimit/models"
	dErrors "conductor/pkg/domain-errors"
	"conductor/pkg/platform/httputil"
	"conductor/pkg/requestcontext"
)

// Handler accepts raw events and hands them to the pipeline.
type Handler struct {
	pipeline *pipeline.Pipeline
	maxBody  int64
	logger   *slog.Logger
}

func New(p *pipeline.Pipeline, maxBody int64, logger *slog.Logger) *Handler {
	return &Handler{
		pipeline: p,
		maxBody:  maxBody,
		logger:   logger,
	}
}

// Register mounts the event intake route.
func (h *Handler) Register(r chi.Router) {
	r.Post("/event", h.HandleEvent)
}

// HandleEvent handles POST /event requests.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	// Oversized bodies are cut off here; payload-level limits are
	// enforced again during validation.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "body: exceeds size limit"))
		return
	}

	result, err := h.pipeline.Process(ctx, pipeline.Request{
		Body:       body,
		AuthHeader: r.Header.Get("Authorization"),
		ClientIP:   requestcontext.ClientIP(ctx),
		UserAgent:  requestcontext.UserAgent(ctx),
	})

	if result != nil && result.RateLimit != nil {
		writeRateLimitHeaders(w, result.RateLimit)
	}

	if err != nil {
		code := dErrors.CodeOf(err)
		h.logger.WarnContext(ctx, "event rejected",
			"request_id", requestcontext.RequestID(ctx),
			"correlation_id", correlationID(result),
			"code", string(code),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		writeEventError(w, err, correlationID(result))
		return
	}

	h.logger.InfoContext(ctx, "event processed",
		"request_id", requestcontext.RequestID(ctx),
		"correlation_id", result.CorrelationID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"correlation_id": result.CorrelationID,
		"result":         result.Output,
	})
}

func correlationID(result *pipeline.Result) string {
	if result == nil {
		return ""
	}
	return result.CorrelationID
}

// writeEventError mirrors httputil.WriteError but adds the correlation id
// so callers can quote it when reporting problems.
func writeEventError(w http.ResponseWriter, err error, correlationID string) {
	code := dErrors.CodeOf(err)
	body := map[string]any{"error": string(code)}
	switch code {
	case dErrors.CodeInternal, dErrors.CodeInvariantViolation, dErrors.CodeUnauthorized:
	default:
		body["error_description"] = dErrors.MessageOf(err)
	}
	if correlationID != "" {
		body["correlation_id"] = correlationID
	}
	httputil.WriteJSON(w, httputil.StatusForCode(code), body)
}

func writeRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if !result.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	}
}
