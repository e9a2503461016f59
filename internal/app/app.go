package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qj0r9j0vc2/slackcat/internal/adapter/handler"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/module"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/repository"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/transport"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/config"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/observability"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/server"
	"github.com/qj0r9j0vc2/slackcat/internal/usecase/chat"
)

// Options select how the application runs.
type Options struct {
	ConfigPath string
	Version    string

	// Local runs the offline engine on LocalMessage instead of connecting to Slack.
	Local        bool
	LocalMessage string

	// Output receives the offline engine's replies. Defaults to os.Stdout.
	Output io.Writer

	// LogOutput receives log lines. Defaults to os.Stdout, or os.Stderr when Local.
	LogOutput io.Writer
}

// Application holds all application dependencies and lifecycle
type Application struct {
	opts          Options
	config        *config.Config
	configManager *config.ConfigManager
	logger        *AtomicLogger
	telemetry     *observability.Telemetry

	// Storage
	storage       repository.Storage
	storagePinger handler.ReadinessChecker

	httpClient   *http.Client
	engine       transport.ChatEngine
	modules      []module.Descriptor
	orchestrator *chat.Orchestrator

	// HTTP layer
	handlers *server.Handlers
	server   *server.Server
}

// New creates a new Application instance
func New(opts Options) (*Application, error) {
	app := &Application{opts: opts}

	if err := app.bootstrap(); err != nil {
		app.Shutdown()
		return nil, err
	}

	return app, nil
}

// Start runs the bot until ctx is cancelled or the engine stops.
// The HTTP server and config watcher stop with it.
func (app *Application) Start(ctx context.Context) error {
	app.logger.Get().Info("starting slackcat",
		"engine", app.engine.Name(),
		"modules", len(app.modules),
		"http_server", app.server != nil,
	)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer stop()
		return app.orchestrator.Run(gctx)
	})

	if app.server != nil {
		g.Go(func() error {
			return app.server.Run(gctx)
		})
	}

	if app.configManager != nil {
		if err := app.configManager.Start(gctx); err != nil {
			app.logger.Get().Warn("config watcher disabled", "error", err)
		}
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown releases resources. Safe to call on a partially bootstrapped application.
func (app *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error

	if app.configManager != nil {
		app.configManager.Stop()
	}

	if app.telemetry != nil {
		if err := app.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down telemetry: %w", err))
		}
	}

	if app.storage != nil {
		if err := app.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing storage: %w", err))
		}
	}

	if app.logger != nil {
		for _, err := range errs {
			app.logger.Get().Error("shutdown step failed", "error", err)
		}
		app.logger.Get().Info("slackcat stopped")
	}
	return errors.Join(errs...)
}

// Config returns the loaded configuration.
func (app *Application) Config() *config.Config {
	return app.config
}

var (
	errNoModules     = errors.New("no modules enabled")
	errUnknownModule = errors.New("unknown module in bot.modules")
)
