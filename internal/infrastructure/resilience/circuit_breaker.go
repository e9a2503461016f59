package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the position of a CircuitBreaker.
type State int

const (
	// StateClosed admits every call.
	StateClosed State = iota
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen
	// StateHalfOpen admits trial calls after a cooldown.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned, wrapped with the breaker name, while a breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerOption customizes a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithTrialSuccesses sets how many half-open successes close the breaker.
func WithTrialSuccesses(n int) BreakerOption {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.trialSuccesses = n
		}
	}
}

// WithStateListener registers fn for every state transition. fn runs
// without the breaker lock held.
func WithStateListener(fn func(name string, from, to State)) BreakerOption {
	return func(cb *CircuitBreaker) { cb.onChange = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// CircuitBreaker counts consecutive failures of one dependency. At
// maxFailures it opens; after cooldown it lets trial calls through and
// closes again once enough of them succeed.
type CircuitBreaker struct {
	name           string
	maxFailures    int
	cooldown       time.Duration
	trialSuccesses int
	onChange       func(name string, from, to State)
	now            func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	trials   int
	openedAt time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(name string, maxFailures int, cooldown time.Duration, opts ...BreakerOption) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	cb := &CircuitBreaker{
		name:           name,
		maxFailures:    maxFailures,
		cooldown:       cooldown,
		trialSuccesses: 2,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Execute runs fn if the breaker admits it and records the outcome.
// A call abandoned because ctx ended does not count against the dependency.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cb.Allow(); err != nil {
		return err
	}

	err := fn()
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	cb.Record(err)
	return err
}

// Allow reports whether a call may proceed, moving an expired open breaker to half-open.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	from := cb.state
	if cb.state == StateOpen {
		if wait := cb.cooldown - cb.now().Sub(cb.openedAt); wait > 0 {
			cb.mu.Unlock()
			return fmt.Errorf("%w: %s, retry in %s", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
		}
		cb.state = StateHalfOpen
		cb.trials = 0
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return nil
}

// Record feeds one call outcome to the breaker and returns the resulting state.
func (cb *CircuitBreaker) Record(err error) State {
	cb.mu.Lock()
	from := cb.state
	switch {
	case err != nil:
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.state = StateOpen
			cb.openedAt = cb.now()
		}
	case cb.state == StateHalfOpen:
		cb.trials++
		if cb.trials >= cb.trialSuccesses {
			cb.state = StateClosed
			cb.failures = 0
		}
	default:
		cb.failures = 0
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return to
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.onChange != nil {
		cb.onChange(cb.name, from, to)
	}
}

// State returns the current state without advancing an expired cooldown.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the dependency name the breaker guards.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Failures returns the current run of consecutive failures.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}
