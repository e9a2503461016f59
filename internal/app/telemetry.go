package app

import (
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/local"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/observability"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/slack"
)

// setupTelemetry initializes OpenTelemetry metrics.
func (app *Application) setupTelemetry() error {
	engine := slack.EngineName
	if app.opts.Local {
		engine = local.EngineName
	}

	telemetry, err := observability.NewTelemetry(observability.Options{
		ServiceVersion: app.opts.Version,
		BotName:        app.config.Bot.Name,
		Engine:         engine,
	})
	if err != nil {
		return err
	}

	app.telemetry = telemetry

	app.logger.Get().Debug("telemetry initialized",
		"service", observability.ServiceName,
		"bot", app.config.Bot.Name,
		"engine", engine,
	)

	return nil
}
