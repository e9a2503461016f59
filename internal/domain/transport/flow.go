package transport

import (
	"context"
	"sync"
)

// DefaultFlowBuffer is the per-subscriber buffer of a Flow.
const DefaultFlowBuffer = 64

// Flow is an ordered broadcast stream. Every subscriber receives every value
// published after it subscribed, in publish order. A slow subscriber applies
// backpressure to the publisher; values are never dropped.
type Flow[T any] struct {
	mu     sync.RWMutex
	subs   []chan T
	buffer int
	closed bool
}

// NewFlow creates a Flow whose subscribers buffer up to buffer values.
func NewFlow[T any](buffer int) *Flow[T] {
	if buffer < 0 {
		buffer = 0
	}
	return &Flow[T]{buffer: buffer}
}

// Subscribe returns a channel receiving subsequent values.
// The channel is closed when the Flow is closed.
func (f *Flow[T]) Subscribe() <-chan T {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan T, f.buffer)
	if f.closed {
		close(ch)
		return ch
	}
	f.subs = append(f.subs, ch)
	return ch
}

// Publish delivers v to every subscriber, blocking while a subscriber's buffer is full.
// Returns ctx.Err() if ctx is cancelled first, and ErrFlowClosed after Close.
func (f *Flow[T]) Publish(ctx context.Context, v T) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return ErrFlowClosed
	}

	for _, ch := range f.subs {
		select {
		case ch <- v:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close closes every subscriber channel. Safe to call more than once.
func (f *Flow[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
}

// Subscribers returns the current number of subscribers.
func (f *Flow[T]) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
