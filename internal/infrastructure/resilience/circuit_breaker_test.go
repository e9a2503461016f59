package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Hour)
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, func() error { return errBoom }), errBoom)
	assert.Equal(t, StateClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(ctx, func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, 2, cb.Failures())

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "test")
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Hour)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errBoom })
	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_Recovery(t *testing.T) {
	tests := []struct {
		name      string
		trials    []error
		wantState State
	}{
		{name: "one trial success stays half-open", trials: []error{nil}, wantState: StateHalfOpen},
		{name: "two trial successes close", trials: []error{nil, nil}, wantState: StateClosed},
		{name: "trial failure reopens", trials: []error{nil, errBoom}, wantState: StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			cb := NewCircuitBreaker("test", 1, time.Minute, WithClock(clock.Now))

			require.Equal(t, StateOpen, cb.Record(errBoom))
			require.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

			clock.Advance(time.Minute)
			require.NoError(t, cb.Allow())
			require.Equal(t, StateHalfOpen, cb.State())

			var state State
			for _, err := range tt.trials {
				state = cb.Record(err)
			}
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantState, cb.State())
		})
	}
}

func TestCircuitBreaker_ReopenRestartsCooldown(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker("test", 1, time.Minute, WithClock(clock.Now))

	cb.Record(errBoom)
	clock.Advance(time.Minute)
	require.NoError(t, cb.Allow())
	cb.Record(errBoom)

	clock.Advance(30 * time.Second)
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
	clock.Advance(30 * time.Second)
	assert.NoError(t, cb.Allow())
}

func TestCircuitBreaker_TrialSuccesses(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker("test", 1, time.Second, WithClock(clock.Now), WithTrialSuccesses(1))

	cb.Record(errBoom)
	clock.Advance(time.Second)
	require.NoError(t, cb.Allow())
	assert.Equal(t, StateClosed, cb.Record(nil))
	assert.Zero(t, cb.Failures())
}

func TestCircuitBreaker_StateListener(t *testing.T) {
	type transition struct{ from, to State }
	var got []transition

	clock := newFakeClock()
	cb := NewCircuitBreaker("slack", 2, time.Second,
		WithClock(clock.Now),
		WithTrialSuccesses(1),
		WithStateListener(func(name string, from, to State) {
			assert.Equal(t, "slack", name)
			got = append(got, transition{from, to})
		}))

	cb.Record(errBoom)
	cb.Record(errBoom)
	clock.Advance(time.Second)
	require.NoError(t, cb.Allow())
	cb.Record(nil)
	cb.Record(nil)

	assert.Equal(t, []transition{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}, got)
}

func TestCircuitBreaker_CancelledCallsDoNotCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)

	ctx, cancel = context.WithCancel(context.Background())
	err = cb.Execute(ctx, func() error {
		cancel()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Failures())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
