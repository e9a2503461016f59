package slack

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/config"
)

// reconnectPolicy paces Socket Mode session retries.
type reconnectPolicy struct {
	initial     time.Duration
	max         time.Duration
	multiplier  float64
	jitter      float64
	maxFailures int
}

// newReconnectPolicy fills unset fields of cfg with 500ms initial, 60s max and 5 failures.
func newReconnectPolicy(cfg config.ReconnectConfig) reconnectPolicy {
	p := reconnectPolicy{
		initial:     500 * time.Millisecond,
		max:         60 * time.Second,
		multiplier:  1.5,
		jitter:      0.1,
		maxFailures: 5,
	}
	if cfg.InitialBackoff > 0 {
		p.initial = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		p.max = cfg.MaxBackoff
	}
	if cfg.MaxFailures > 0 {
		p.maxFailures = cfg.MaxFailures
	}
	return p
}

// backoff is the wait before zero-based attempt+1: initial * multiplier^attempt,
// spread by up to ±jitter, then capped at max.
func (p reconnectPolicy) backoff(attempt int) time.Duration {
	d := float64(p.initial) * math.Pow(p.multiplier, float64(attempt))
	if p.jitter > 0 {
		d *= 1 + (rand.Float64()*2-1)*p.jitter
	}
	return time.Duration(min(d, float64(p.max)))
}
