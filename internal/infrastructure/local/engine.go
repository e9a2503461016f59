// Package local implements an offline chat engine for development smoke tests.
//
// The engine emits exactly one synthesized message (or reaction) after a
// startup delay and writes every reply to an io.Writer as plain text.
package local

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/qj0r9j0vc2/slackcat/internal/adapter/presenter"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/command"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	domainerrors "github.com/qj0r9j0vc2/slackcat/internal/domain/errors"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/transport"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/config"
)

// EngineName identifies the offline engine in logs and metrics.
const EngineName = "local"

// reactCommand is the micro-format for synthesizing reaction events:
// "?react :emoji: [messageTimestamp] [<@author>] [--remove]".
// The author defaults to the configured item user.
const reactCommand = "react"

// Logger interface for structured logging.
type Logger interface {
	Info(msg string, fields ...any)
	Debug(msg string, fields ...any)
}

// Engine is the offline ChatEngine. It never reconnects.
type Engine struct {
	cfg      config.LocalConfig
	raw      string
	out      io.Writer
	logger   Logger
	renderer *presenter.PlainTextRenderer

	messages *transport.Flow[*entity.IncomingChatMessage]
	events   *transport.Flow[entity.SlackcatEvent]

	state   atomic.Int32
	writeMu sync.Mutex
	now     func() time.Time
}

// NewEngine creates an offline engine that will synthesize raw.
func NewEngine(cfg config.LocalConfig, raw string, out io.Writer, logger Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		raw:      raw,
		out:      out,
		logger:   logger,
		renderer: presenter.NewPlainTextRenderer(),
		messages: transport.NewFlow[*entity.IncomingChatMessage](transport.DefaultFlowBuffer),
		events:   transport.NewFlow[entity.SlackcatEvent](transport.DefaultFlowBuffer),
		now:      time.Now,
	}
}

// Name returns the engine name.
func (e *Engine) Name() string {
	return EngineName
}

// Messages returns the inbound command flow.
func (e *Engine) Messages() *transport.Flow[*entity.IncomingChatMessage] {
	return e.messages
}

// Events returns the inbound event flow.
func (e *Engine) Events() *transport.Flow[entity.SlackcatEvent] {
	return e.events
}

// State returns the connection state.
func (e *Engine) State() transport.State {
	return transport.State(e.state.Load())
}

// Connect waits for the startup delay, reports ready, emits the synthesized
// input and returns. Both flows are closed on return.
func (e *Engine) Connect(ctx context.Context, onReady func()) error {
	defer e.messages.Close()
	defer e.events.Close()
	defer e.state.Store(int32(transport.StateDisconnected))

	e.state.Store(int32(transport.StateConnecting))

	timer := time.NewTimer(e.cfg.StartupDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.state.Store(int32(transport.StateConnected))
	e.logger.Info("local engine ready", "channel", e.cfg.ChannelID, "user", e.cfg.UserID)
	if onReady != nil {
		onReady()
	}

	if event, ok, err := e.reaction(); ok {
		if err != nil {
			return err
		}
		e.logger.Debug("synthesized reaction", "raw", e.raw)
		return e.publishEvent(ctx, event)
	}

	e.logger.Debug("synthesized message", "raw", e.raw)
	return e.messages.Publish(ctx, e.message())
}

func (e *Engine) publishEvent(ctx context.Context, event entity.SlackcatEvent) error {
	return e.events.Publish(ctx, event)
}

// message builds the synthesized message. Input that is not a well-formed
// command is still emitted so that the orchestrator reports it as unhandled.
func (e *Engine) message() *entity.IncomingChatMessage {
	messageID := uuid.NewString()
	if msg, ok := entity.NewIncomingChatMessage(e.cfg.ChannelID, e.cfg.UserID, messageID, e.raw, ""); ok {
		return msg
	}
	return &entity.IncomingChatMessage{
		ChannelID:  e.cfg.ChannelID,
		ChatUser:   entity.ChatUser{UserID: e.cfg.UserID},
		MessageID:  messageID,
		RawMessage: e.raw,
	}
}

// reaction parses the "?react" micro-format. ok is false when raw is not a
// reaction request.
func (e *Engine) reaction() (entity.SlackcatEvent, bool, error) {
	parsed, ok := command.Parse(e.raw)
	if !ok || parsed.Command != reactCommand {
		return nil, false, nil
	}

	author := e.cfg.ItemUserID
	var fields []string
	for _, token := range strings.Fields(parsed.UserText) {
		switch {
		case strings.HasPrefix(token, command.ArgumentPrefix):
		case strings.HasPrefix(token, "<@") && strings.HasSuffix(token, ">"):
			author = mentionID(token)
		default:
			fields = append(fields, token)
		}
	}
	if len(fields) == 0 {
		return nil, true, fmt.Errorf("usage: ?react :emoji: [messageTimestamp] [<@author>] [--remove]")
	}
	if author == "" {
		return nil, true, fmt.Errorf("reaction needs a message author")
	}

	now := e.now()
	emoji := strings.Trim(fields[0], ":")
	if emoji == "" {
		return nil, true, fmt.Errorf("invalid emoji %q", fields[0])
	}

	messageTS := formatTimestamp(now)
	if len(fields) > 1 {
		messageTS = fields[1]
	}

	reaction := entity.Reaction{
		Emoji:            emoji,
		UserID:           e.cfg.UserID,
		ChannelID:        e.cfg.ChannelID,
		MessageTimestamp: messageTS,
		ItemUserID:       author,
		EventTimestamp:   formatTimestamp(now),
	}

	for _, arg := range parsed.Arguments {
		if arg == "--remove" {
			return entity.ReactionRemovedEvent{Reaction: reaction}, true, nil
		}
	}
	return entity.ReactionAddedEvent{Reaction: reaction}, true, nil
}

// SendMessage writes the reply to the output as plain text.
func (e *Engine) SendMessage(_ context.Context, msg *entity.OutgoingChatMessage, identity entity.BotIdentity) error {
	if msg.Content.IsEmpty() {
		return domainerrors.NewPermanentError("message has no content", nil)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s %s] #%s", identity.DisplayName, identity.Icon, msg.ChannelID)
	if msg.ThreadID != "" {
		fmt.Fprintf(&b, " (thread %s)", msg.ThreadID)
	}
	b.WriteString("\n")
	b.WriteString(e.renderer.Render(msg.Content))
	b.WriteString("\n\n")

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if _, err := io.WriteString(e.out, b.String()); err != nil {
		return domainerrors.NewTransientError("writing local output", err)
	}
	return nil
}

// mentionID extracts the user ID of a "<@U123>" or "<@U123|name>" token.
func mentionID(token string) string {
	id := strings.TrimSuffix(strings.TrimPrefix(token, "<@"), ">")
	if i := strings.IndexByte(id, '|'); i >= 0 {
		id = id[:i]
	}
	return id
}

// formatTimestamp renders t in Slack's "seconds.micros" message timestamp format.
func formatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}
