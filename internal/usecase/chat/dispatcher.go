package chat

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
)

// DefaultMaxConcurrentInvocations bounds in-flight module invocations.
const DefaultMaxConcurrentInvocations = 32

// Task is one unit of module work.
type Task struct {
	Module string
	Kind   string

	// Message is the command being handled; nil for events.
	Message *entity.IncomingChatMessage

	Run func(ctx context.Context) error
}

// FailureHandler is called after a task fails or panics.
type FailureHandler func(ctx context.Context, task Task, invocationID string, err error)

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// MaxConcurrent bounds in-flight tasks. Zero means DefaultMaxConcurrentInvocations.
	MaxConcurrent int

	// Timeout bounds each task. Zero means no timeout.
	Timeout time.Duration
}

// Dispatcher runs module tasks concurrently with a fixed bound.
// Submit blocks while the bound is reached. Errors and panics are isolated
// per task: they are logged, counted, and handed to the failure handler.
type Dispatcher struct {
	sem      *semaphore.Weighted
	timeout  time.Duration
	inFlight atomic.Int64
	wg       sync.WaitGroup

	logger    Logger
	metrics   Metrics
	onFailure FailureHandler
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig, logger Logger, metrics Metrics) *Dispatcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrentInvocations
	}
	if logger == nil {
		logger = nopLogger{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}

	return &Dispatcher{
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		timeout: cfg.Timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// OnFailure sets the failure handler. Must be called before the first Submit.
func (d *Dispatcher) OnFailure(h FailureHandler) {
	d.onFailure = h
}

// Submit starts task once a slot is free.
// Returns ctx.Err() if ctx is cancelled while waiting for a slot.
func (d *Dispatcher) Submit(ctx context.Context, task Task) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	d.wg.Add(1)
	d.inFlight.Add(1)
	d.metrics.AddInFlight(ctx, 1)

	go func() {
		defer func() {
			d.metrics.AddInFlight(ctx, -1)
			d.inFlight.Add(-1)
			d.sem.Release(1)
			d.wg.Done()
		}()
		d.run(ctx, task)
	}()

	return nil
}

// Wait blocks until every submitted task has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// InFlight returns the number of running tasks.
func (d *Dispatcher) InFlight() int64 {
	return d.inFlight.Load()
}

func (d *Dispatcher) run(ctx context.Context, task Task) {
	invocationID := uuid.NewString()
	fields := []any{
		"invocation_id", invocationID,
		"module", task.Module,
		"kind", task.Kind,
	}
	if task.Message != nil {
		fields = append(fields,
			"command", task.Message.Command,
			"channel", task.Message.ChannelID,
			"user", task.Message.ChatUser.UserID,
		)
	}

	d.logger.Debug("invocation started", fields...)

	start := time.Now()
	err := d.invoke(ctx, task, fields)
	duration := time.Since(start)

	d.metrics.RecordInvocation(ctx, task.Module, task.Kind, duration, err)

	if err == nil {
		d.logger.Debug("invocation completed", append(fields, "duration", duration)...)
		return
	}

	d.logger.Error("invocation failed", append(fields, "duration", duration, "error", err)...)
	if d.onFailure != nil {
		d.onFailure(ctx, task, invocationID, err)
	}
}

func (d *Dispatcher) invoke(ctx context.Context, task Task, fields []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("module panic recovered", append(fields, "panic", r, "stack", string(debug.Stack()))...)
			err = fmt.Errorf("%w: %v", ErrModulePanic, r)
		}
	}()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	return task.Run(ctx)
}
