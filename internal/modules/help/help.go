// Package help lists the registered modules and shows per-command usage.
package help

import (
	"context"
	"fmt"
	"strings"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/message"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/module"
)

// Module implements ?help and ?help <command>.
type Module struct {
	module.Base
}

// New creates the help module.
func New() *Module {
	return &Module{}
}

// Describe returns the registration descriptor.
func (m *Module) Describe() module.Descriptor {
	return module.Describe(m)
}

func (m *Module) Command() string { return "help" }

func (m *Module) Aliases() []string { return []string{"commands"} }

func (m *Module) Help() message.BotMessage {
	return message.New().
		Heading("help", 2).
		KeyValueList(
			message.KeyValue{Key: "?help", Value: "list every command"},
			message.KeyValue{Key: "?help <command>", Value: "show usage of one command"},
		).
		Build()
}

func (m *Module) OnInvoke(ctx context.Context, msg *entity.IncomingChatMessage) error {
	catalog := m.Env().Catalog
	if catalog == nil {
		return module.ErrNotBound
	}
	modules := catalog.AllModules()

	target := strings.TrimPrefix(firstWord(msg.UserText), "?")
	if target == "" {
		return m.Reply(ctx, msg, listing(modules))
	}

	if found, ok := find(modules, target); ok {
		return m.PostHelpMessage(ctx, msg, found.Help())
	}

	return m.Reply(ctx, msg, message.New().
		WithStyle(message.StyleWarning).
		Text(fmt.Sprintf("No command named `?%s`. Try `?help`.", target)).
		Build())
}

func listing(modules []module.Module) message.BotMessage {
	items := make([]message.KeyValue, 0, len(modules))
	for _, mod := range modules {
		value := "no aliases"
		if aliases := mod.Aliases(); len(aliases) > 0 {
			value = "aliases: " + prefixed(aliases)
		}
		items = append(items, message.KeyValue{Key: "?" + mod.Command(), Value: value})
	}

	return message.New().
		Heading("Commands", 1).
		KeyValueList(items...).
		Context("Use ?help <command> for details.").
		Build()
}

func find(modules []module.Module, key string) (module.Module, bool) {
	for _, mod := range modules {
		if strings.EqualFold(mod.Command(), key) {
			return mod, true
		}
		for _, alias := range mod.Aliases() {
			if strings.EqualFold(alias, key) {
				return mod, true
			}
		}
	}
	return nil, false
}

func prefixed(keys []string) string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = "?" + k
	}
	return strings.Join(out, ", ")
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
