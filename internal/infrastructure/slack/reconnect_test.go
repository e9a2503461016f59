package slack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/config"
)

func TestNewReconnectPolicy(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ReconnectConfig
		want reconnectPolicy
	}{
		{
			name: "defaults",
			want: reconnectPolicy{initial: 500 * time.Millisecond, max: time.Minute, multiplier: 1.5, jitter: 0.1, maxFailures: 5},
		},
		{
			name: "overrides",
			cfg:  config.ReconnectConfig{InitialBackoff: time.Second, MaxBackoff: 10 * time.Second, MaxFailures: 2},
			want: reconnectPolicy{initial: time.Second, max: 10 * time.Second, multiplier: 1.5, jitter: 0.1, maxFailures: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newReconnectPolicy(tt.cfg))
		})
	}
}

func TestReconnectPolicy_Backoff(t *testing.T) {
	p := reconnectPolicy{initial: 100 * time.Millisecond, max: time.Second, multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 100 * time.Millisecond},
		{attempt: 1, want: 200 * time.Millisecond},
		{attempt: 3, want: 800 * time.Millisecond},
		{attempt: 4, want: time.Second},
		{attempt: 20, want: time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestReconnectPolicy_JitterStaysInRange(t *testing.T) {
	p := newReconnectPolicy(config.ReconnectConfig{})
	base := float64(p.initial) * p.multiplier * p.multiplier
	for i := 0; i < 100; i++ {
		assert.InDelta(t, base, float64(p.backoff(2)), base*p.jitter+1)
	}
}
