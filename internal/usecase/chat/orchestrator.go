package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/message"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/module"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/repository"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/transport"
)

// Phase is the startup phase of an Orchestrator.
type Phase int32

const (
	PhaseInit Phase = iota
	PhaseModulesRegistered
	PhaseStorageProvisioned
	PhaseTransportConnected
	PhaseEventLoopRunning
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseModulesRegistered:
		return "modules_registered"
	case PhaseStorageProvisioned:
		return "storage_provisioned"
	case PhaseTransportConnected:
		return "transport_connected"
	case PhaseEventLoopRunning:
		return "event_loop_running"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// OrchestratorConfig holds the collaborators of an Orchestrator.
type OrchestratorConfig struct {
	Engine  transport.ChatEngine
	Modules []module.Descriptor

	// Storage is required only when a module declares the Storage capability.
	Storage repository.Storage

	// HTTPClient is bound into Network modules. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	Identity entity.BotIdentity

	MaxConcurrentInvocations int
	InvocationTimeout        time.Duration
	RetryPolicy              RetryPolicy

	// FailOnUnhandled makes an unhandled message fatal. Set for the offline engine.
	FailOnUnhandled bool

	Logger  Logger
	Metrics Metrics
}

// Orchestrator wires modules to a ChatEngine and drives the event loop.
type Orchestrator struct {
	cfg     OrchestratorConfig
	engine  transport.ChatEngine
	logger  Logger
	metrics Metrics

	sender     *RetryingSender
	dispatcher *Dispatcher
	router     *Router

	phase atomic.Int32
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.RetryPolicy.MaxAttempts == 0 {
		cfg.RetryPolicy = DefaultRetryPolicy()
	}

	o := &Orchestrator{
		cfg:     cfg,
		engine:  cfg.Engine,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	o.sender = NewRetryingSender(cfg.Engine, cfg.RetryPolicy, cfg.Logger, cfg.Metrics)
	o.dispatcher = NewDispatcher(DispatcherConfig{
		MaxConcurrent: cfg.MaxConcurrentInvocations,
		Timeout:       cfg.InvocationTimeout,
	}, cfg.Logger, cfg.Metrics)
	o.dispatcher.OnFailure(o.replyFailure)

	return o
}

// Run performs the startup sequence and consumes the engine's flows until
// ctx is cancelled or the engine closes them. In-flight invocations are
// drained before Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.registerModules(); err != nil {
		return err
	}

	if err := o.provisionStorage(ctx); err != nil {
		return err
	}

	// Subscribe before connecting so nothing emitted on connect is missed.
	messages := o.engine.Messages().Subscribe()
	events := o.engine.Events().Subscribe()

	engineCtx, cancelEngine := context.WithCancel(ctx)
	defer cancelEngine()

	g, gctx := errgroup.WithContext(engineCtx)

	ready := make(chan struct{})
	sessionDone := make(chan struct{})
	var readyOnce sync.Once

	g.Go(func() error {
		defer close(sessionDone)
		err := o.engine.Connect(gctx, func() {
			readyOnce.Do(func() { close(ready) })
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	select {
	case <-ready:
	case <-sessionDone:
	case <-ctx.Done():
	}

	if !isClosed(ready) {
		cancelEngine()
		err := g.Wait()
		o.setPhase(PhaseStopped)
		switch {
		case err != nil:
			return fmt.Errorf("connecting %s engine: %w", o.engine.Name(), err)
		case ctx.Err() != nil:
			return nil
		default:
			return ErrEngineStopped
		}
	}

	o.setPhase(PhaseTransportConnected)
	o.logger.Info("transport connected", "engine", o.engine.Name())

	o.deliverEvent(gctx, entity.StartedEvent{At: time.Now()})

	o.setPhase(PhaseEventLoopRunning)
	loopErr := o.loop(gctx, messages, events)

	o.dispatcher.Wait()
	cancelEngine()
	engineErr := g.Wait()
	o.setPhase(PhaseStopped)

	if loopErr != nil {
		return loopErr
	}
	if engineErr != nil {
		return fmt.Errorf("%s engine: %w", o.engine.Name(), engineErr)
	}
	return nil
}

func (o *Orchestrator) registerModules() error {
	env := module.Env{
		Sender:   o.sender,
		Identity: o.cfg.Identity,
		Logger:   o.logger,
		Catalog:  o,
	}

	for _, d := range o.cfg.Modules {
		if d.Module == nil {
			return fmt.Errorf("%w: nil module", ErrInvalidModule)
		}
		d.Module.Bind(env)
		if d.Network != nil {
			d.Network.BindHTTPClient(o.cfg.HTTPClient)
		}
	}

	router, err := NewRouter(o.cfg.Modules, o.dispatcher, o.logger, o.metrics)
	if err != nil {
		return fmt.Errorf("registering modules: %w", err)
	}
	o.router = router

	o.setPhase(PhaseModulesRegistered)
	o.logger.Info("modules registered", "count", len(router.AllModules()))
	return nil
}

func (o *Orchestrator) provisionStorage(ctx context.Context) error {
	var declared [][]repository.Table
	var storageModules []module.StorageModule
	for _, d := range o.cfg.Modules {
		if d.Storage == nil {
			continue
		}
		declared = append(declared, d.Storage.Tables())
		storageModules = append(storageModules, d.Storage)
	}

	if len(storageModules) > 0 {
		if o.cfg.Storage == nil {
			return ErrStorageUnavailable
		}

		tables, err := repository.MergeTables(declared...)
		if err != nil {
			return fmt.Errorf("provisioning storage: %w", err)
		}
		if err := o.cfg.Storage.Provision(ctx, tables); err != nil {
			return fmt.Errorf("provisioning storage: %w", err)
		}

		for _, s := range storageModules {
			s.BindStorage(o.cfg.Storage.DB())
		}

		o.logger.Info("storage provisioned",
			"dialect", o.cfg.Storage.Dialect(),
			"tables", len(tables),
		)
	}

	o.setPhase(PhaseStorageProvisioned)
	return nil
}

func (o *Orchestrator) loop(ctx context.Context, messages <-chan *entity.IncomingChatMessage, events <-chan entity.SlackcatEvent) error {
	for messages != nil || events != nil {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			o.metrics.RecordMessageReceived(ctx, o.engine.Name())

			if o.router.OnMessage(ctx, msg) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			if o.cfg.FailOnUnhandled {
				return fmt.Errorf("%w: %q", ErrUnhandledLocalMessage, msg.RawMessage)
			}
			o.logger.Debug("unhandled command",
				"command", msg.Command,
				"channel", msg.ChannelID,
			)

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			o.deliverEvent(ctx, event)
		}
	}
	return nil
}

func (o *Orchestrator) deliverEvent(ctx context.Context, event entity.SlackcatEvent) {
	for _, d := range o.cfg.Modules {
		if d.Events == nil {
			continue
		}
		handler := d.Events
		task := Task{
			Module: d.Name(),
			Kind:   KindEvent,
			Run: func(ctx context.Context) error {
				return handler.OnEvent(ctx, event)
			},
		}
		if err := o.dispatcher.Submit(ctx, task); err != nil {
			o.logger.Warn("event delivery abandoned", "module", d.Name(), "error", err)
			return
		}
	}
}

// replyFailure tells the user a command failed without exposing the cause.
func (o *Orchestrator) replyFailure(ctx context.Context, task Task, invocationID string, _ error) {
	if task.Message == nil || ctx.Err() != nil {
		return
	}

	content := message.New().
		WithStyle(message.StyleError).
		Text(fmt.Sprintf("Something went wrong while running `?%s`.", task.Message.Command)).
		Context("invocation " + invocationID).
		Build()

	err := o.sender.SendMessage(ctx, &entity.OutgoingChatMessage{
		ChannelID: task.Message.ChannelID,
		Content:   content,
		ThreadID:  task.Message.ThreadID,
	}, o.cfg.Identity)
	if err != nil {
		o.logger.Warn("failed to send failure reply",
			"invocation_id", invocationID,
			"channel", task.Message.ChannelID,
			"error", err,
		)
	}
}

// AllModules returns the registered modules, empty before registration.
func (o *Orchestrator) AllModules() []module.Module {
	if o.router == nil {
		return nil
	}
	return o.router.AllModules()
}

// Phase returns the current startup phase.
func (o *Orchestrator) Phase() Phase {
	return Phase(o.phase.Load())
}

// EngineState returns the engine's connection state.
func (o *Orchestrator) EngineState() transport.State {
	return o.engine.State()
}

// EngineName returns the engine's name.
func (o *Orchestrator) EngineName() string {
	return o.engine.Name()
}

// InFlight returns the number of running invocations.
func (o *Orchestrator) InFlight() int64 {
	return o.dispatcher.InFlight()
}

func (o *Orchestrator) setPhase(p Phase) {
	o.phase.Store(int32(p))
	o.logger.Debug("orchestrator phase", "phase", p.String())
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
