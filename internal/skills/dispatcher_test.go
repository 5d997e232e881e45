package skills

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"conductor/internal/envelope"
	dErrors "conductor/pkg/domain-errors"
	"conductor/pkg/platform/sentinel"
)

type DispatcherSuite struct {
	suite.Suite
	registry   *Registry
	dispatcher *Dispatcher
	ctx        context.Context
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.registry = NewRegistry(time.Second, RetryPolicy{MaxAttempts: 3, Backoff: 50 * time.Millisecond})
	s.dispatcher = NewDispatcher(s.registry)
	// Retry backoff is skipped so retry tests run instantly.
	s.dispatcher.sleep = func(context.Context, time.Duration) error { return nil }
	s.ctx = context.Background()
}

func envFor(intent string) *envelope.Envelope {
	return &envelope.Envelope{
		Intent:  intent,
		Payload: map[string]any{"msg": "hi"},
	}
}

func (s *DispatcherSuite) TestDispatch() {
	s.Run("runs the resolved handler", func() {
		s.Require().NoError(s.registry.Register(&Descriptor{Intent: "ok"},
			func(_ context.Context, env *envelope.Envelope) (map[string]any, error) {
				return map[string]any{"echoed": env.Payload["msg"]}, nil
			}))

		output, err := s.dispatcher.Dispatch(s.ctx, envFor("ok"))
		s.Require().NoError(err)
		s.Equal("hi", output["echoed"])
	})

	s.Run("unknown intent", func() {
		_, err := s.dispatcher.Dispatch(s.ctx, envFor("missing"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("handler error is returned unchanged", func() {
		wantErr := dErrors.New(dErrors.CodeInvalidInput, "payload.text is required")
		s.Require().NoError(s.registry.Register(&Descriptor{Intent: "fails"},
			func(context.Context, *envelope.Envelope) (map[string]any, error) {
				return nil, wantErr
			}))

		_, err := s.dispatcher.Dispatch(s.ctx, envFor("fails"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *DispatcherSuite) TestTimeout() {
	s.Require().NoError(s.registry.Register(
		&Descriptor{Intent: "slow", Timeout: 20 * time.Millisecond},
		func(ctx context.Context, _ *envelope.Envelope) (map[string]any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return map[string]any{}, nil
			}
		}))

	start := time.Now()
	_, err := s.dispatcher.Dispatch(s.ctx, envFor("slow"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	s.Less(time.Since(start), time.Second)
}

func (s *DispatcherSuite) TestRetry() {
	s.Run("transient failures retried until success", func() {
		attempts := 0
		s.Require().NoError(s.registry.Register(&Descriptor{Intent: "flaky"},
			func(context.Context, *envelope.Envelope) (map[string]any, error) {
				attempts++
				if attempts < 3 {
					return nil, fmt.Errorf("connection refused: %w", sentinel.ErrUnavailable)
				}
				return map[string]any{"attempts": attempts}, nil
			}))

		output, err := s.dispatcher.Dispatch(s.ctx, envFor("flaky"))
		s.Require().NoError(err)
		s.Equal(3, output["attempts"])
	})

	s.Run("attempts are bounded", func() {
		attempts := 0
		s.Require().NoError(s.registry.Register(&Descriptor{Intent: "dead"},
			func(context.Context, *envelope.Envelope) (map[string]any, error) {
				attempts++
				return nil, fmt.Errorf("connection refused: %w", sentinel.ErrUnavailable)
			}))

		_, err := s.dispatcher.Dispatch(s.ctx, envFor("dead"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Equal(3, attempts)
	})

	s.Run("deterministic failures are not retried", func() {
		attempts := 0
		s.Require().NoError(s.registry.Register(&Descriptor{Intent: "hard"},
			func(context.Context, *envelope.Envelope) (map[string]any, error) {
				attempts++
				return nil, errors.New("bad input")
			}))

		_, err := s.dispatcher.Dispatch(s.ctx, envFor("hard"))
		s.Require().Error(err)
		s.Equal(1, attempts)
	})
}

func (s *DispatcherSuite) TestPanicRecovery() {
	s.Require().NoError(s.registry.Register(&Descriptor{Intent: "panics"},
		func(context.Context, *envelope.Envelope) (map[string]any, error) {
			panic("boom")
		}))

	_, err := s.dispatcher.Dispatch(s.ctx, envFor("panics"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
