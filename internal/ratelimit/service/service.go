// Package service composes the sliding-window buckets into the limiter the
// pipeline and middleware depend on: a global per-IP limit and a per-user
// limit, keyed by (identity, endpoint class).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"conductor/internal/ratelimit/metrics"
	"conductor/internal/ratelimit/models"
	dErrors "conductor/pkg/domain-errors"
)

// BucketStore is the sliding-window counter store.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
	Reset(ctx context.Context, key string) error
}

// Limits configures the two identity classes.
type Limits struct {
	GlobalPerIP int
	PerUser     int
	Window      time.Duration
}

type Service struct {
	buckets BucketStore
	limits  Limits
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(buckets BucketStore, limits Limits, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("bucket store is required")
	}
	if limits.GlobalPerIP <= 0 || limits.PerUser <= 0 || limits.Window <= 0 {
		return nil, errors.New("limits must be positive")
	}

	svc := &Service{
		buckets: buckets,
		limits:  limits,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CheckIP applies the global per-IP limit for an endpoint class.
func (s *Service) CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error) {
	result, err := s.buckets.Allow(ctx, bucketKey(models.KeyPrefixIP, ip, class), s.limits.GlobalPerIP, s.limits.Window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check ip rate limit")
	}
	s.record(string(models.KeyPrefixIP), result.Allowed)
	return result, nil
}

// CheckUser applies the per-user limit for an endpoint class.
func (s *Service) CheckUser(ctx context.Context, subject string, class models.EndpointClass) (*models.RateLimitResult, error) {
	result, err := s.buckets.Allow(ctx, bucketKey(models.KeyPrefixUser, subject, class), s.limits.PerUser, s.limits.Window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check user rate limit")
	}
	s.record(string(models.KeyPrefixUser), result.Allowed)
	return result, nil
}

// CheckBoth applies the global limit first, then the per-user limit. The
// first rejection wins; its result carries the retry hint.
func (s *Service) CheckBoth(ctx context.Context, ip, subject string, class models.EndpointClass) (*models.RateLimitResult, error) {
	ipResult, err := s.CheckIP(ctx, ip, class)
	if err != nil {
		return nil, err
	}
	if !ipResult.Allowed {
		return ipResult, nil
	}

	userResult, err := s.CheckUser(ctx, subject, class)
	if err != nil {
		return nil, err
	}
	if !userResult.Allowed {
		return userResult, nil
	}

	// Report the tighter of the two remaining quotas.
	if ipResult.Remaining < userResult.Remaining {
		return ipResult, nil
	}
	return userResult, nil
}

// Reset clears counters for an identity, for admin and test use.
func (s *Service) Reset(ctx context.Context, prefix models.KeyPrefix, identity string, class models.EndpointClass) error {
	return s.buckets.Reset(ctx, bucketKey(prefix, identity, class))
}

func (s *Service) record(kind string, allowed bool) {
	if s.metrics != nil {
		s.metrics.RecordCheck(kind, allowed)
	}
}

func bucketKey(prefix models.KeyPrefix, identity string, class models.EndpointClass) string {
	return fmt.Sprintf("%s:%s:%s", prefix, class, identity)
}
