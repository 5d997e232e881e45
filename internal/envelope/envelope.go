// Package envelope defines the EventEnvelope and its validation and
// sanitization rules. Everything here is pure in-memory normalization; no
// side effects beyond the returned envelope.
package envelope

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	dErrors "conductor/pkg/domain-errors"
)

// intentPattern is the allow-list for intent identifiers: dotted lowercase
// segments such as "echo" or "summarize.doc".
var intentPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*(\.[a-z0-9][a-z0-9_-]*)*$`)

// Envelope is the normalized per-request event. SubjectID is filled by the
// authentication stage, not by the caller.
type Envelope struct {
	ID            string         `json:"id"`
	Intent        string         `json:"intent"`
	Payload       map[string]any `json:"payload"`
	Source        string         `json:"source,omitempty"`
	SubjectID     string         `json:"subject_id,omitempty"`
	CorrelationID string         `json:"correlation_id"`
	ReceivedAt    time.Time      `json:"received_at"`
}

// rawEnvelope is the wire shape accepted from callers.
type rawEnvelope struct {
	Intent  string          `json:"intent"`
	Payload json.RawMessage `json:"payload"`
	Source  string          `json:"source"`
}

// Parse validates and sanitizes a raw request body into an Envelope.
// maxPayloadBytes bounds the payload size; the error names the offending
// field so handlers can report it without guessing.
func Parse(body []byte, maxPayloadBytes int) (*Envelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "body: malformed JSON")
	}

	raw.Intent = sanitizeString(raw.Intent)
	if raw.Intent == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "intent: required")
	}
	if !intentPattern.MatchString(raw.Intent) {
		return nil, dErrors.New(dErrors.CodeValidation, "intent: invalid format")
	}

	if len(raw.Payload) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "payload: required")
	}
	if maxPayloadBytes > 0 && len(raw.Payload) > maxPayloadBytes {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("payload: exceeds %d bytes", maxPayloadBytes))
	}

	var payload map[string]any
	if err := json.Unmarshal(raw.Payload, &payload); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "payload: must be an object")
	}
	sanitizePayload(payload)

	now := time.Now().UTC()
	return &Envelope{
		ID:            uuid.NewString(),
		Intent:        raw.Intent,
		Payload:       payload,
		Source:        sanitizeString(raw.Source),
		CorrelationID: uuid.NewString(),
		ReceivedAt:    now,
	}, nil
}

// sanitizeString trims whitespace and strips control characters and angle
// brackets from free-text input.
func sanitizeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) || r == '<' || r == '>' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// sanitizePayload walks the payload and cleans every string value in place,
// including values nested in objects and arrays.
func sanitizePayload(m map[string]any) {
	for k, v := range m {
		m[k] = sanitizeValue(v)
	}
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return sanitizeString(val)
	case map[string]any:
		sanitizePayload(val)
		return val
	case []any:
		for i, elem := range val {
			val[i] = sanitizeValue(elem)
		}
		return val
	default:
		return v
	}
}
