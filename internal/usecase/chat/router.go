package chat

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/command"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/module"
)

// Router maps command keys to modules and dispatches matching messages.
// The registry is built once and read-only afterwards.
type Router struct {
	modules   []module.Module
	registry  map[string]module.Module
	fallbacks []fallback

	dispatcher *Dispatcher
	logger     Logger
	metrics    Metrics
}

type fallback struct {
	name    string
	handler module.UnhandledCommandModule
}

// NewRouter registers every module under its command and aliases.
// Returns ErrCommandCollision if two registrations share a key.
func NewRouter(descriptors []module.Descriptor, dispatcher *Dispatcher, logger Logger, metrics Metrics) (*Router, error) {
	if logger == nil {
		logger = nopLogger{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}

	r := &Router{
		registry:   make(map[string]module.Module),
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}

	for _, d := range descriptors {
		if err := r.register(d); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Router) register(d module.Descriptor) error {
	m := d.Module
	if m == nil || strings.TrimSpace(m.Command()) == "" {
		return fmt.Errorf("%w: module without a command", ErrInvalidModule)
	}

	keys := append([]string{m.Command()}, m.Aliases()...)
	for _, key := range keys {
		key = normalizeKey(key)
		if key == "" {
			return fmt.Errorf("%w: module %s declares an empty alias", ErrInvalidModule, m.Command())
		}
		if existing, ok := r.registry[key]; ok {
			return fmt.Errorf("%w: %q claimed by %s and %s", ErrCommandCollision, key, existing.Command(), m.Command())
		}
		r.registry[key] = m
	}

	r.modules = append(r.modules, m)
	if d.Unhandled != nil {
		r.fallbacks = append(r.fallbacks, fallback{name: m.Command(), handler: d.Unhandled})
	}

	r.logger.Debug("module registered",
		"module", m.Command(),
		"aliases", m.Aliases(),
		"capabilities", d.Capabilities().String(),
	)
	return nil
}

// OnMessage routes msg. Returns true if a module accepted it; a dispatch
// abandoned because ctx ended reports false.
// Static registrations are dispatched asynchronously; the fallback chain
// is consulted synchronously, in registration order.
func (r *Router) OnMessage(ctx context.Context, msg *entity.IncomingChatMessage) bool {
	if !command.ValidateCommandMessage(msg.RawMessage) {
		return false
	}
	if _, ok := command.ExtractCommand(msg.RawMessage); !ok {
		return false
	}

	if m, ok := r.registry[normalizeKey(msg.Command)]; ok {
		task := Task{
			Module:  m.Command(),
			Kind:    KindCommand,
			Message: msg,
			Run: func(ctx context.Context) error {
				return m.OnInvoke(ctx, msg)
			},
		}
		if err := r.dispatcher.Submit(ctx, task); err != nil {
			r.metrics.RecordRouting(ctx, OutcomeAbandoned)
			r.logger.Warn("dispatch abandoned",
				"module", m.Command(),
				"command", msg.Command,
				"error", err,
			)
			return false
		}
		r.metrics.RecordRouting(ctx, OutcomeDispatched)
		return true
	}

	for _, fb := range r.fallbacks {
		if r.offerUnhandled(ctx, fb, msg) {
			r.metrics.RecordRouting(ctx, OutcomeFallback)
			return true
		}
	}

	r.metrics.RecordRouting(ctx, OutcomeUnhandled)
	return false
}

func (r *Router) offerUnhandled(ctx context.Context, fb fallback, msg *entity.IncomingChatMessage) (handled bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("unhandled command fallback panicked",
				"module", fb.name,
				"command", msg.Command,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			handled = false
		}
	}()

	return fb.handler.OnUnhandledCommand(ctx, msg)
}

// Lookup returns the module registered for a command key.
func (r *Router) Lookup(key string) (module.Module, bool) {
	m, ok := r.registry[normalizeKey(key)]
	return m, ok
}

// AllModules returns the distinct registered modules in registration order.
func (r *Router) AllModules() []module.Module {
	out := make([]module.Module, len(r.modules))
	copy(out, r.modules)
	return out
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
