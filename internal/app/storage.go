package app

import (
	"fmt"

	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/persistence/mysql"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/persistence/sqlite"
)

// initializeStorage opens the configured database when an enabled module
// declares tables. Provisioning happens later, in the orchestrator.
func (app *Application) initializeStorage() error {
	needed := false
	for _, d := range app.modules {
		if d.Storage != nil {
			needed = true
			break
		}
	}
	if !needed {
		app.logger.Get().Debug("no storage modules enabled, skipping storage")
		return nil
	}

	switch app.config.Storage.Type {
	case "mysql":
		db, err := mysql.NewDB(&app.config.Storage.MySQL)
		if err != nil {
			return fmt.Errorf("mysql init: %w", err)
		}
		app.storage = db
		app.storagePinger = db

		app.logger.Get().Info("MySQL storage initialized",
			"host", app.config.Storage.MySQL.Host,
			"database", app.config.Storage.MySQL.Database,
		)

	case "sqlite":
		db, err := sqlite.NewDB(app.config.Storage.SQLite.Path)
		if err != nil {
			return fmt.Errorf("sqlite init: %w", err)
		}
		app.storage = db
		app.storagePinger = db

		app.logger.Get().Info("SQLite storage initialized",
			"path", db.Path(),
		)

	default:
		return fmt.Errorf("unknown storage type: %s", app.config.Storage.Type)
	}

	if app.telemetry != nil {
		if err := app.telemetry.RegisterDB(app.storage.DB(), app.storage.Dialect()); err != nil {
			return err
		}
	}
	return nil
}
