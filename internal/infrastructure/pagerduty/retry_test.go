package pagerduty

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/PagerDuty/go-pagerduty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("listing: %w", context.DeadlineExceeded), false},
		{"server error", pagerduty.APIError{StatusCode: http.StatusServiceUnavailable}, true},
		{"wrapped rate limit", fmt.Errorf("listing: %w", pagerduty.APIError{StatusCode: http.StatusTooManyRequests}), true},
		{"unauthorized", pagerduty.APIError{StatusCode: http.StatusUnauthorized}, false},
		{"not found", pagerduty.APIError{StatusCode: http.StatusNotFound}, false},
		{"dial error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")}, true},
		{"flattened dial error", errors.New("error calling the API endpoint: dial tcp 127.0.0.1:1: connect: connection refused"), true},
		{"status text is not enough", errors.New("HTTP response failed with status code 503"), false},
		{"unknown", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRetryPolicy_CalculateDelay(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, 100*time.Millisecond, p.calculateDelay(0))
	assert.Equal(t, 200*time.Millisecond, p.calculateDelay(1))
	assert.Equal(t, 400*time.Millisecond, p.calculateDelay(2))
	assert.Equal(t, 5*time.Second, p.calculateDelay(10))
	assert.Equal(t, 5*time.Second, p.calculateDelay(10_000))
}

func TestRetryPolicy_WithRetry(t *testing.T) {
	p := &RetryPolicy{InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: time.Millisecond, MaxRetries: 2}

	attempts := 0
	err := p.WithRetry(context.Background(), func(context.Context) error {
		attempts++
		return pagerduty.APIError{StatusCode: http.StatusInternalServerError}
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries (2) exhausted")
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = p.WithRetry(context.Background(), func(context.Context) error {
		attempts++
		return pagerduty.APIError{StatusCode: http.StatusNotFound}
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-retryable")
	assert.Equal(t, 1, attempts)
}

func TestRetryPolicy_ContextCancelled(t *testing.T) {
	p := &RetryPolicy{InitialDelay: time.Hour, Multiplier: 2, MaxDelay: time.Hour, MaxRetries: 3}
	ctx, cancel := context.WithCancel(context.Background())

	err := p.WithRetry(ctx, func(context.Context) error {
		cancel()
		return pagerduty.APIError{StatusCode: http.StatusBadGateway}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "after 1 attempts")
}
