package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/transport"
	"github.com/qj0r9j0vc2/slackcat/internal/usecase/chat"
)

// BotStatus reports the runtime state of the bot.
type BotStatus interface {
	Phase() chat.Phase
	EngineName() string
	EngineState() transport.State
	InFlight() int64
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	startTime time.Time
	status    BotStatus
}

// NewHealthHandler creates a new health handler. status may be nil.
func NewHealthHandler(status BotStatus) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		status:    status,
	}
}

// ServeHTTP handles GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startTime).String(),
	}
	if h.status != nil {
		response["bot"] = map[string]any{
			"phase":        h.status.Phase().String(),
			"engine":       h.status.EngineName(),
			"engine_state": h.status.EngineState().String(),
			"in_flight":    h.status.InFlight(),
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// ReadinessChecker reports whether a dependency can serve traffic.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

// ReadinessFunc adapts a function to ReadinessChecker.
type ReadinessFunc func(ctx context.Context) error

// Ping calls f.
func (f ReadinessFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// EngineReadiness is ready once the engine has completed its handshake.
func EngineReadiness(status BotStatus) ReadinessChecker {
	return ReadinessFunc(func(context.Context) error {
		if state := status.EngineState(); state != transport.StateConnected {
			return &notReadyError{what: status.EngineName() + " engine is " + state.String()}
		}
		return nil
	})
}

type notReadyError struct{ what string }

func (e *notReadyError) Error() string { return e.what }

// ReadyHandler handles readiness requests by running every registered checker.
type ReadyHandler struct {
	checkers map[string]ReadinessChecker
	timeout  time.Duration
}

// NewReadyHandler creates a readiness handler without checkers.
func NewReadyHandler() *ReadyHandler {
	return &ReadyHandler{
		checkers: make(map[string]ReadinessChecker),
		timeout:  2 * time.Second,
	}
}

// AddChecker registers a named checker. Call before serving.
func (h *ReadyHandler) AddChecker(name string, c ReadinessChecker) {
	h.checkers[name] = c
}

// ServeHTTP handles GET /ready
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	ready := true
	checks := make(map[string]any, len(names))
	for _, name := range names {
		result := map[string]any{"ready": true}
		if err := h.checkers[name].Ping(ctx); err != nil {
			ready = false
			result["ready"] = false
			result["error"] = err.Error()
		}
		checks[name] = result
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"ready":  ready,
		"checks": checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
