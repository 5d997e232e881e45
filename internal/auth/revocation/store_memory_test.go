package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"conductor/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) TestRevoke() {
	s.Run("revoked token is found", func() {
		s.Require().NoError(s.store.Revoke(s.ctx, "jti-1", time.Hour))
		revoked, err := s.store.IsRevoked(s.ctx, "jti-1")
		s.Require().NoError(err)
		s.True(revoked)
	})

	s.Run("unknown token is not revoked", func() {
		revoked, err := s.store.IsRevoked(s.ctx, "jti-unknown")
		s.Require().NoError(err)
		s.False(revoked)
	})

	s.Run("empty jti is ignored", func() {
		s.Require().NoError(s.store.Revoke(s.ctx, "", time.Hour))
		revoked, err := s.store.IsRevoked(s.ctx, "")
		s.Require().NoError(err)
		s.False(revoked)
	})

	s.Run("non-positive ttl rejected", func() {
		err := s.store.Revoke(s.ctx, "jti-2", 0)
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	})
}

func (s *InMemoryStoreSuite) TestExpiry() {
	s.Require().NoError(s.store.Revoke(s.ctx, "jti-exp", time.Hour))

	// Rewind the entry past its expiry instead of sleeping.
	s.store.mu.Lock()
	s.store.revoked["jti-exp"] = time.Now().Add(-time.Second)
	s.store.mu.Unlock()

	revoked, err := s.store.IsRevoked(s.ctx, "jti-exp")
	s.Require().NoError(err)
	s.False(revoked)

	// The expired entry was pruned.
	s.store.mu.RLock()
	_, ok := s.store.revoked["jti-exp"]
	s.store.mu.RUnlock()
	s.False(ok)
}
