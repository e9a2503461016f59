// Package module defines the contract command handlers implement and the
// optional capabilities they can declare.
package module

import (
	"context"
	"errors"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/message"
)

// ErrNotBound is returned when a module sends before its environment was bound.
var ErrNotBound = errors.New("module environment not bound")

// Logger is the logging contract handed to modules.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Sender delivers an outgoing message through the active chat engine.
type Sender interface {
	SendMessage(ctx context.Context, msg *entity.OutgoingChatMessage, identity entity.BotIdentity) error
}

// Catalog lists the registered modules.
type Catalog interface {
	AllModules() []Module
}

// Env holds the shared collaborators injected into every module before registration.
type Env struct {
	Sender   Sender
	Identity entity.BotIdentity
	Logger   Logger
	Catalog  Catalog
}

// Module is a unit of command behavior.
// One instance serves its command and every alias for the process lifetime,
// and OnInvoke may run concurrently for different messages.
type Module interface {
	// Command is the primary command key, without the prefix.
	Command() string

	// Aliases are additional command keys resolving to the same module.
	Aliases() []string

	// Help describes the module's usage.
	Help() message.BotMessage

	// OnInvoke handles a message addressed to the module.
	OnInvoke(ctx context.Context, msg *entity.IncomingChatMessage) error

	// Bind injects shared collaborators. Called once, before registration.
	Bind(env Env)
}

// Base provides Bind, Aliases and send helpers. Embed it in module structs.
type Base struct {
	env Env
}

// Bind stores the environment.
func (b *Base) Bind(env Env) {
	b.env = env
}

// Aliases returns no aliases.
func (b *Base) Aliases() []string {
	return nil
}

// Env returns the bound environment.
func (b *Base) Env() Env {
	return b.env
}

// Logger returns the bound logger, or a no-op logger before Bind.
func (b *Base) Logger() Logger {
	if b.env.Logger == nil {
		return nopLogger{}
	}
	return b.env.Logger
}

// SendMessage posts content to a channel, in a thread when threadID is set.
// The transport error is returned so callers can fall back.
func (b *Base) SendMessage(ctx context.Context, channelID, threadID string, content message.BotMessage) error {
	if b.env.Sender == nil {
		return ErrNotBound
	}

	return b.env.Sender.SendMessage(ctx, &entity.OutgoingChatMessage{
		ChannelID: channelID,
		Content:   content,
		ThreadID:  threadID,
	}, b.env.Identity)
}

// Reply posts content to the channel and thread msg came from.
func (b *Base) Reply(ctx context.Context, msg *entity.IncomingChatMessage, content message.BotMessage) error {
	return b.SendMessage(ctx, msg.ChannelID, msg.ThreadID, content)
}

// PostHelpMessage replies to msg with a module's help.
func (b *Base) PostHelpMessage(ctx context.Context, msg *entity.IncomingChatMessage, help message.BotMessage) error {
	return b.Reply(ctx, msg, help)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
