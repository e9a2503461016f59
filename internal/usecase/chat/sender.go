package chat

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	domainerrors "github.com/qj0r9j0vc2/slackcat/internal/domain/errors"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/transport"
)

// RetryPolicy defines the retry behavior for failed sends.
type RetryPolicy struct {
	MaxAttempts     int           // Maximum number of attempts (including first try)
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
	Multiplier      float64       // Backoff multiplier
	JitterFactor    float64       // Random jitter factor (0.0-1.0)
}

// DefaultRetryPolicy returns a sensible default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

// RetryingSender sends through a ChatEngine, retrying transient failures.
// A delay requested by the backend (rate limiting) takes precedence over
// the computed backoff when it is longer.
type RetryingSender struct {
	engine  transport.ChatEngine
	policy  RetryPolicy
	logger  Logger
	metrics Metrics
}

// NewRetryingSender creates a RetryingSender.
func NewRetryingSender(engine transport.ChatEngine, policy RetryPolicy, logger Logger, metrics Metrics) *RetryingSender {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = nopLogger{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &RetryingSender{engine: engine, policy: policy, logger: logger, metrics: metrics}
}

// SendMessage sends msg, retrying transient failures up to the policy's attempt limit.
func (s *RetryingSender) SendMessage(ctx context.Context, msg *entity.OutgoingChatMessage, identity entity.BotIdentity) error {
	var lastErr error

	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		start := time.Now()
		lastErr = s.engine.SendMessage(ctx, msg, identity)
		s.metrics.RecordSend(ctx, s.engine.Name(), time.Since(start), lastErr)

		if lastErr == nil {
			if attempt > 1 {
				s.logger.Info("send succeeded after retry",
					"engine", s.engine.Name(),
					"channel", msg.ChannelID,
					"attempt", attempt,
				)
			}
			return nil
		}

		if !domainerrors.IsTransientError(lastErr) {
			s.logger.Warn("send failed with permanent error",
				"engine", s.engine.Name(),
				"channel", msg.ChannelID,
				"error", lastErr,
			)
			return lastErr
		}

		if attempt == s.policy.MaxAttempts {
			s.logger.Error("send failed after max retries",
				"engine", s.engine.Name(),
				"channel", msg.ChannelID,
				"attempts", attempt,
				"error", lastErr,
			)
			break
		}

		backoff := s.calculateBackoff(attempt)
		if retryAfter := domainerrors.RetryAfter(lastErr); retryAfter > backoff {
			backoff = retryAfter
		}
		s.logger.Warn("send failed, retrying",
			"engine", s.engine.Name(),
			"channel", msg.ChannelID,
			"attempt", attempt,
			"backoff", backoff,
			"error", lastErr,
		)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return lastErr
}

// calculateBackoff calculates the backoff duration with exponential growth and jitter.
// Formula: min(InitialInterval * Multiplier^(attempt-1) * (1 ± jitter), MaxInterval)
func (s *RetryingSender) calculateBackoff(attempt int) time.Duration {
	backoff := float64(s.policy.InitialInterval) * math.Pow(s.policy.Multiplier, float64(attempt-1))

	jitter := 1.0 + (rand.Float64()*2.0-1.0)*s.policy.JitterFactor
	backoff *= jitter

	if backoff > float64(s.policy.MaxInterval) {
		backoff = float64(s.policy.MaxInterval)
	}

	return time.Duration(backoff)
}
