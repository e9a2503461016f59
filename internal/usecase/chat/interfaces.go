package chat

import (
	"context"
	"time"
)

// Logger defines the contract for logging within the chat use cases.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Routing outcomes recorded by Metrics.
const (
	OutcomeDispatched = "dispatched"
	OutcomeFallback   = "fallback"
	OutcomeUnhandled  = "unhandled"
	OutcomeAbandoned  = "abandoned"
)

// Task kinds recorded by Metrics.
const (
	KindCommand = "command"
	KindEvent   = "event"
)

// Metrics records bot activity. Implemented by the observability package.
type Metrics interface {
	RecordMessageReceived(ctx context.Context, engine string)
	RecordRouting(ctx context.Context, outcome string)
	RecordInvocation(ctx context.Context, module, kind string, duration time.Duration, err error)
	AddInFlight(ctx context.Context, delta int64)
	RecordSend(ctx context.Context, engine string, duration time.Duration, err error)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) RecordMessageReceived(context.Context, string)                          {}
func (NopMetrics) RecordRouting(context.Context, string)                                  {}
func (NopMetrics) RecordInvocation(context.Context, string, string, time.Duration, error) {}
func (NopMetrics) AddInFlight(context.Context, int64)                                     {}
func (NopMetrics) RecordSend(context.Context, string, time.Duration, error)               {}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
