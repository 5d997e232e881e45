package revocation

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a process-local revocation set. Entries expire at the
// revoked token's natural expiry so the set stays bounded.
type InMemoryStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{revoked: make(map[string]time.Time)}
}

// Revoke adds a token id with the given TTL.
func (s *InMemoryStore) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	if jti == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = time.Now().Add(ttl)
	return nil
}

// IsRevoked reports whether jti is in the set. Expired entries are pruned
// lazily on read.
func (s *InMemoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}

	s.mu.RLock()
	expiresAt, ok := s.revoked[jti]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().Before(expiresAt) {
		return true, nil
	}

	s.mu.Lock()
	if exp, ok := s.revoked[jti]; ok && !time.Now().Before(exp) {
		delete(s.revoked, jti)
	}
	s.mu.Unlock()
	return false, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() {}
