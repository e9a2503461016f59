package app

import (
	"fmt"
	"os"

	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/config"
)

func (app *Application) bootstrap() error {
	// 1. Load configuration
	if err := app.loadConfig(); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// 2. Setup logger
	if err := app.setupLogger(); err != nil {
		return fmt.Errorf("setting up logger: %w", err)
	}

	// 3. Setup telemetry (OpenTelemetry)
	if err := app.setupTelemetry(); err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}

	// 4. Setup config manager with reload callback
	app.setupConfigManager()

	// 5. Outbound HTTP client shared by Network modules
	app.setupHTTPClient()

	// 6. Chat engine
	if err := app.initializeEngine(); err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}

	// 7. Modules
	if err := app.initializeModules(); err != nil {
		return fmt.Errorf("initializing modules: %w", err)
	}

	// 8. Storage, only when a module needs it
	if err := app.initializeStorage(); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	// 9. Orchestrator
	app.initializeOrchestrator()

	// 10. HTTP server
	app.setupServer()

	return nil
}

func (app *Application) loadConfig() error {
	cfg, err := config.Load(app.opts.ConfigPath)
	if err != nil {
		return err
	}
	if !app.opts.Local {
		if err := cfg.ValidateLive(); err != nil {
			return err
		}
	}
	app.config = cfg
	return nil
}

func (app *Application) setupLogger() error {
	w := app.opts.LogOutput
	if w == nil {
		w = os.Stdout
		if app.opts.Local {
			w = os.Stderr
		}
	}

	logger, err := NewAtomicLogger(w, app.config.Logging.Level, app.config.Logging.Format)
	if err != nil {
		return err
	}
	app.logger = logger
	return nil
}

func (app *Application) setupConfigManager() {
	// The offline engine handles one message and exits; nothing to watch.
	if app.opts.Local || app.opts.ConfigPath == "" {
		return
	}

	app.configManager = config.NewConfigManager(app.opts.ConfigPath, app.config, app.logger.Get())
	app.configManager.OnReload(func(old, updated *config.Config) {
		if old.Logging.Level == updated.Logging.Level {
			return
		}
		if err := app.logger.SetLevel(updated.Logging.Level); err != nil {
			app.logger.Get().Error("failed to apply log level", "error", err)
			return
		}
		app.logger.Get().Info("log level changed",
			"from", old.Logging.Level,
			"to", updated.Logging.Level,
		)
	})
}
