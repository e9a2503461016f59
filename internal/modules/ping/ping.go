// Package ping answers liveness checks from chat.
package ping

import (
	"context"
	"strings"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/message"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/module"
)

var replies = map[string]string{
	"ping": "pong",
	"bing": "bong",
	"ding": "dong",
}

// Module replies pong to ping, bong to bing and dong to ding.
type Module struct {
	module.Base
}

// New creates the ping module.
func New() *Module {
	return &Module{}
}

// Describe returns the registration descriptor.
func (m *Module) Describe() module.Descriptor {
	return module.Describe(m)
}

func (m *Module) Command() string { return "ping" }

func (m *Module) Aliases() []string { return []string{"bing", "ding"} }

func (m *Module) Help() message.BotMessage {
	return message.New().
		Heading("ping", 2).
		Text("Checks that the bot is alive.").
		KeyValueList(
			message.KeyValue{Key: "?ping", Value: "pong"},
			message.KeyValue{Key: "?bing", Value: "bong"},
			message.KeyValue{Key: "?ding", Value: "dong"},
		).
		Build()
}

func (m *Module) OnInvoke(ctx context.Context, msg *entity.IncomingChatMessage) error {
	reply, ok := replies[strings.ToLower(msg.Command)]
	if !ok {
		reply = replies["ping"]
	}
	return m.Reply(ctx, msg, message.TextMessage(reply))
}
