package pagerduty

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/PagerDuty/go-pagerduty"
)

// RetryPolicy retries transient PagerDuty failures with capped exponential backoff.
type RetryPolicy struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	MaxRetries   int
}

// DefaultRetryPolicy waits 100ms, 200ms, 400ms between four attempts, never more than 5s.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		MaxRetries:   3,
	}
}

// WithRetry runs operation until it succeeds, fails permanently, exhausts
// MaxRetries, or ctx ends.
func (r *RetryPolicy) WithRetry(ctx context.Context, operation func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := operation(ctx)
		switch {
		case err == nil:
			return nil
		case !IsRetryable(err):
			return fmt.Errorf("non-retryable error: %w", err)
		case attempt >= r.MaxRetries:
			return fmt.Errorf("max retries (%d) exhausted: %w", r.MaxRetries, err)
		}

		timer := time.NewTimer(r.calculateDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry abandoned after %d attempts: %w", attempt+1, errors.Join(ctx.Err(), err))
		case <-timer.C:
		}
	}
}

// calculateDelay is InitialDelay * Multiplier^attempt, capped at MaxDelay.
func (r *RetryPolicy) calculateDelay(attempt int) time.Duration {
	delay := float64(r.InitialDelay)
	for i := 0; i < attempt && delay < float64(r.MaxDelay); i++ {
		delay *= r.Multiplier
	}
	return min(time.Duration(delay), r.MaxDelay)
}

// transportFailures are the dial errors go-pagerduty flattens into text.
var transportFailures = []string{
	"connection refused",
	"connection reset",
	"no route to host",
	"network is unreachable",
	"i/o timeout",
	"eof",
}

// IsRetryable reports whether err is worth another attempt: a 429 or 5xx
// from the API, or a transport failure. Caller cancellation never is.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr pagerduty.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// go-pagerduty formats transport errors with %v, so only the text survives.
	msg := strings.ToLower(err.Error())
	for _, s := range transportFailures {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
