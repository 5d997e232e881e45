//go:build integration

package revocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"conductor/internal/auth/revocation"
	"conductor/pkg/testutil/containers"
)

type RedisStoreIntegrationSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *revocation.RedisStore
}

func TestRedisStoreIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreIntegrationSuite))
}

func (s *RedisStoreIntegrationSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = revocation.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreIntegrationSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreIntegrationSuite) TestRevokeAndCheck() {
	ctx := context.Background()
	jti := uuid.NewString()

	revoked, err := s.store.IsRevoked(ctx, jti)
	s.Require().NoError(err)
	s.False(revoked)

	s.Require().NoError(s.store.Revoke(ctx, jti, time.Hour))

	revoked, err = s.store.IsRevoked(ctx, jti)
	s.Require().NoError(err)
	s.True(revoked)
}

func (s *RedisStoreIntegrationSuite) TestEntryExpires() {
	ctx := context.Background()
	jti := uuid.NewString()

	s.Require().NoError(s.store.Revoke(ctx, jti, 500*time.Millisecond))

	revoked, err := s.store.IsRevoked(ctx, jti)
	s.Require().NoError(err)
	s.True(revoked)

	s.Require().Eventually(func() bool {
		revoked, err := s.store.IsRevoked(ctx, jti)
		return err == nil && !revoked
	}, 3*time.Second, 100*time.Millisecond, "entry should expire with its TTL")
}

func (s *RedisStoreIntegrationSuite) TestIsolationBetweenTokens() {
	ctx := context.Background()
	revokedID := uuid.NewString()
	otherID := uuid.NewString()

	s.Require().NoError(s.store.Revoke(ctx, revokedID, time.Hour))

	revoked, err := s.store.IsRevoked(ctx, otherID)
	s.Require().NoError(err)
	s.False(revoked)
}

// TestSharedState verifies that two store instances backed by the same
// Redis see each other's revocations, which is the whole point of the
// Redis-backed implementation.
func (s *RedisStoreIntegrationSuite) TestSharedState() {
	ctx := context.Background()
	other := revocation.NewRedisStore(s.redis.Client)
	jti := uuid.NewString()

	s.Require().NoError(s.store.Revoke(ctx, jti, time.Hour))

	revoked, err := other.IsRevoked(ctx, jti)
	s.Require().NoError(err)
	s.True(revoked)
}
