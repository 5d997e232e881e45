// Package skills holds the intent registry and the dispatcher that invokes
// exactly one handler per event.
package skills

import (
	"sort"
	"sync"
	"time"

	dErrors "conductor/pkg/domain-errors"
	"conductor/pkg/platform/sentinel"
)

// Registry maps intent names to descriptors. Registrations are rare and
// lookups are frequent, so reads take the shared lock and never block each
// other.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Descriptor

	defaultTimeout time.Duration
	defaultRetry   RetryPolicy
}

func NewRegistry(defaultTimeout time.Duration, defaultRetry RetryPolicy) *Registry {
	return &Registry{
		entries:        make(map[string]*Descriptor),
		defaultTimeout: defaultTimeout,
		defaultRetry:   defaultRetry,
	}
}

// Register adds a descriptor. A second registration for the same intent is
// a conflict; existing dispatches keep the descriptor they resolved.
func (r *Registry) Register(desc *Descriptor, handler Handler) error {
	if desc == nil || desc.Intent == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "descriptor intent is required")
	}
	if handler == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "handler is required")
	}
	if desc.Timeout <= 0 {
		desc.Timeout = r.defaultTimeout
	}
	if desc.Retry.MaxAttempts <= 0 {
		desc.Retry = r.defaultRetry
	}
	desc.handler = handler

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[desc.Intent]; exists {
		return dErrors.Wrap(sentinel.ErrConflict, dErrors.CodeConflict,
			"intent already registered: "+desc.Intent)
	}
	r.entries[desc.Intent] = desc
	return nil
}

// Resolve returns the descriptor for an intent, or sentinel.ErrNotFound.
func (r *Registry) Resolve(intent string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.entries[intent]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return desc, nil
}

// RequiredRoles reports the role set for an intent and whether the
// intent is registered at all.
func (r *Registry) RequiredRoles(intent string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.entries[intent]
	if !ok {
		return nil, false
	}
	return desc.RequiredRoles, true
}

// Descriptors returns a snapshot of all registered descriptors sorted by
// intent.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.entries))
	for _, desc := range r.entries {
		out = append(out, *desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Intent < out[j].Intent })
	return out
}

// Intents lists registered intent names in sorted order.
func (r *Registry) Intents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of registered skills. Readiness uses it: a
// registry with no skills cannot serve events.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
