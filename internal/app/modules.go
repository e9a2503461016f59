package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/module"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/cache"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/pagerduty"
	"github.com/qj0r9j0vc2/slackcat/internal/modules/help"
	"github.com/qj0r9j0vc2/slackcat/internal/modules/karma"
	"github.com/qj0r9j0vc2/slackcat/internal/modules/learn"
	"github.com/qj0r9j0vc2/slackcat/internal/modules/oncall"
	"github.com/qj0r9j0vc2/slackcat/internal/modules/ping"
)

// builtinModule is a module the binary ships with.
type builtinModule struct {
	name string

	// available reports whether the module's configuration is present.
	available func() bool
	build     func() module.Descriptor
}

func (app *Application) builtinModules() []builtinModule {
	always := func() bool { return true }

	return []builtinModule{
		{name: "ping", available: always, build: func() module.Descriptor { return ping.New().Describe() }},
		{name: "help", available: always, build: func() module.Descriptor { return help.New().Describe() }},
		{name: "karma", available: always, build: func() module.Descriptor { return karma.New().Describe() }},
		{name: "learn", available: always, build: func() module.Descriptor { return learn.New().Describe() }},
		{
			name:      "oncall",
			available: app.config.IsPagerDutyEnabled,
			build: func() module.Descriptor {
				pd := app.config.PagerDuty
				lists := func(client *http.Client) oncall.Lister {
					return pagerduty.NewOnCallClient(pd, client)
				}
				c := cache.NewLRU[string, []entity.OnCall](app.config.HTTP.CacheSize, app.config.HTTP.CacheTTL)
				return oncall.New(lists, c).Describe()
			},
		},
	}
}

// initializeModules builds the enabled modules in registration order.
func (app *Application) initializeModules() error {
	builtins := app.builtinModules()
	if err := checkModuleNames(app.config.Bot.Modules, builtins); err != nil {
		return err
	}

	for _, b := range builtins {
		if !app.config.IsModuleEnabled(b.name) {
			app.logger.Get().Debug("module disabled", "module", b.name)
			continue
		}
		if !b.available() {
			app.logger.Get().Info("module skipped, not configured", "module", b.name)
			continue
		}

		d := b.build()
		app.modules = append(app.modules, d)
		app.logger.Get().Debug("module enabled",
			"module", b.name,
			"capabilities", d.Capabilities().String(),
		)
	}

	if len(app.modules) == 0 {
		return errNoModules
	}
	return nil
}

// checkModuleNames rejects enabled names that no builtin module answers to.
func checkModuleNames(enabled []string, builtins []builtinModule) error {
	var unknown []string
	for _, name := range enabled {
		found := false
		for _, b := range builtins {
			if strings.EqualFold(name, b.name) {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %s", errUnknownModule, strings.Join(unknown, ", "))
	}
	return nil
}
