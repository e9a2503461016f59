package app

import (
	"net/http"
	"os"

	"github.com/qj0r9j0vc2/slackcat/internal/adapter/handler"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/local"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/server"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/slack"
	"github.com/qj0r9j0vc2/slackcat/internal/usecase/chat"
)

func (app *Application) initializeEngine() error {
	logger := app.logger.Get().With("component", "engine")

	if app.opts.Local {
		out := app.opts.Output
		if out == nil {
			out = os.Stdout
		}
		app.engine = local.NewEngine(app.config.Local, app.opts.LocalMessage, out, logger)
		return nil
	}

	engine, err := slack.NewEngine(app.config.Slack, logger)
	if err != nil {
		return err
	}
	app.engine = engine
	return nil
}

func (app *Application) initializeOrchestrator() {
	policy := chat.DefaultRetryPolicy()
	policy.MaxAttempts = app.config.Bot.SendRetries

	var metrics chat.Metrics = chat.NopMetrics{}
	if app.telemetry != nil {
		metrics = app.telemetry.Metrics
	}

	app.orchestrator = chat.NewOrchestrator(chat.OrchestratorConfig{
		Engine:     app.engine,
		Modules:    app.modules,
		Storage:    app.storage,
		HTTPClient: app.httpClient,
		Identity: entity.BotIdentity{
			DisplayName: app.config.Bot.Name,
			Icon:        app.config.Bot.Icon,
		},
		MaxConcurrentInvocations: app.config.Bot.MaxConcurrentInvocations,
		InvocationTimeout:        app.config.Bot.InvocationTimeout,
		RetryPolicy:              policy,
		FailOnUnhandled:          app.opts.Local,
		Logger:                   app.logger.Get().With("component", "orchestrator"),
		Metrics:                  metrics,
	})
}

func (app *Application) setupServer() {
	if app.opts.Local || !app.config.Server.Enabled {
		return
	}

	readyHandler := handler.NewReadyHandler()
	readyHandler.AddChecker("engine", handler.EngineReadiness(app.orchestrator))
	if app.storagePinger != nil {
		readyHandler.AddChecker("database", app.storagePinger)
	}

	app.handlers = &server.Handlers{
		Health:  handler.NewHealthHandler(app.orchestrator),
		Ready:   readyHandler,
		Metrics: handler.NewMetricsHandlerFor(app.telemetry.Gatherer),
	}
	if app.configManager != nil {
		app.handlers.Reload = handler.NewReloadHandler(app.configManager, app.logger.Get())
	}

	router := server.NewRouter(app.handlers, app.telemetry.Metrics, app.orchestrator, app.logger.Get())
	app.server = server.New(app.config.Server, router, app.logger.Get())
}

// userAgentTransport stamps outbound requests with the configured User-Agent.
type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

func (app *Application) setupHTTPClient() {
	app.httpClient = &http.Client{
		Timeout: app.config.HTTP.Timeout,
		Transport: &userAgentTransport{
			userAgent: app.config.HTTP.UserAgent,
			base:      http.DefaultTransport,
		},
	}
}
