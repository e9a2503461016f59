package server

import (
	"log/slog"
	"net/http"

	"github.com/qj0r9j0vc2/slackcat/internal/adapter/handler"
	"github.com/qj0r9j0vc2/slackcat/internal/adapter/handler/middleware"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/observability"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	Health  *handler.HealthHandler
	Ready   *handler.ReadyHandler
	Metrics *handler.MetricsHandler
	Reload  *handler.ReloadHandler
}

// NewRouter creates the HTTP router with all handlers. metrics and state may be nil.
func NewRouter(handlers *Handlers, metrics *observability.Metrics, state middleware.BotState, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	var routes []string
	mount := func(path string, h http.Handler) {
		mux.Handle(path, h)
		routes = append(routes, path)
	}

	// Unmatched paths fall through to health.
	mount("/health", handlers.Health)
	mount("/", handlers.Health)
	if handlers.Ready != nil {
		mount("/ready", handlers.Ready)
	}
	if handlers.Metrics != nil {
		mount("/metrics", handlers.Metrics)
	}
	if handlers.Reload != nil {
		mount("/-/reload", handlers.Reload)
	}

	// Outermost first: request ID, logging, recovery, metrics.
	var h http.Handler = mux
	if metrics != nil {
		h = middleware.Observability(metrics, routes...)(h)
	}
	h = middleware.Recovery(logger, state)(h)
	h = middleware.Logging(logger, state)(h)
	h = middleware.RequestID(h)

	return h
}
