package slack

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	domainerrors "github.com/qj0r9j0vc2/slackcat/internal/domain/errors"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/transport"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/config"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/resilience"
)

// EngineName identifies the live engine in logs and metrics.
const EngineName = "slack"

// Logger interface for structured logging.
type Logger interface {
	Info(msg string, fields ...any)
	Error(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Debug(msg string, fields ...any)
}

// Engine is the live chat engine: a Socket Mode session for inbound traffic
// and the Web API for replies. Sessions are re-established with exponential
// backoff until the circuit breaker opens.
type Engine struct {
	api     *slack.Client
	client  *Client
	cfg     config.SlackConfig
	logger  Logger
	policy  reconnectPolicy
	breaker *resilience.CircuitBreaker

	messages *transport.Flow[*entity.IncomingChatMessage]
	events   *transport.Flow[entity.SlackcatEvent]

	state     atomic.Int32
	botUserID string
	teamID    string
	readyOnce sync.Once
}

// NewEngine creates a Slack engine from configuration.
func NewEngine(cfg config.SlackConfig, logger Logger) (*Engine, error) {
	if cfg.AppToken == "" {
		return nil, fmt.Errorf("socket mode app token is required")
	}
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	options := []slack.Option{
		slack.OptionDebug(cfg.Debug),
		slack.OptionAppLevelToken(cfg.AppToken),
	}
	if cfg.APIURL != "" {
		options = append(options, slack.OptionAPIURL(cfg.APIURL))
	}
	api := slack.New(cfg.BotToken, options...)

	policy := newReconnectPolicy(cfg.Reconnect)

	e := &Engine{
		api:      api,
		client:   NewClient(api),
		cfg:      cfg,
		logger:   logger,
		policy:   policy,
		messages: transport.NewFlow[*entity.IncomingChatMessage](transport.DefaultFlowBuffer),
		events:   transport.NewFlow[entity.SlackcatEvent](transport.DefaultFlowBuffer),
	}
	e.breaker = resilience.NewCircuitBreaker("slack-socket-mode", policy.maxFailures, policy.max,
		resilience.WithStateListener(func(name string, from, to resilience.State) {
			logger.Debug("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}))
	return e, nil
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

// SendMessage posts a reply through the Web API.
func (e *Engine) SendMessage(ctx context.Context, msg *entity.OutgoingChatMessage, identity entity.BotIdentity) error {
	_, err := e.client.PostMessage(ctx, msg, identity)
	return err
}

// Connect runs Socket Mode sessions until ctx is cancelled, a permanent error
// occurs, or the circuit breaker opens. onReady fires once, on the first
// confirmed handshake.
func (e *Engine) Connect(ctx context.Context, onReady func()) error {
	defer e.messages.Close()
	defer e.events.Close()
	defer e.setState(transport.StateDisconnected)

	attempt := 0
	for {
		e.setState(transport.StateConnecting)
		established, err := e.runSession(ctx, onReady)
		if ctx.Err() != nil {
			e.logger.Info("Slack session stopped")
			return nil
		}

		e.setState(transport.StateDisconnected)
		if established {
			attempt = 0
		}
		if err == nil {
			err = errors.New("session ended")
		}

		if domainerrors.IsPermanentError(err) {
			e.logger.Error("Slack session failed permanently", "error", err)
			return err
		}

		e.logger.Warn("Slack session failed", "error", err, "attempt", attempt+1)
		if e.breaker.Record(err) == resilience.StateOpen {
			e.logger.Error("Circuit breaker opened after consecutive failures",
				"failures", e.breaker.Failures())
			return fmt.Errorf("circuit breaker opened: %w", err)
		}

		backoff := e.policy.backoff(attempt)
		e.logger.Info("Waiting before reconnect", "backoff", backoff.String(), "next_attempt", attempt+2)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		attempt++
	}
}

// runSession authenticates and runs one Socket Mode session until it ends.
// Returns whether the session completed its handshake.
func (e *Engine) runSession(ctx context.Context, onReady func()) (bool, error) {
	authTest, err := e.api.AuthTestContext(ctx)
	if err != nil {
		return false, categorizeSlackError(err, "auth test")
	}
	e.botUserID = authTest.UserID
	e.teamID = authTest.TeamID
	e.logger.Debug("Auth test passed", "team_id", authTest.TeamID, "user_id", authTest.UserID)

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	socket := socketmode.New(e.api, socketmode.OptionDebug(e.cfg.Debug))

	var established atomic.Bool
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		e.runEventLoop(sessionCtx, socket, func() {
			established.Store(true)
			e.breaker.Record(nil)
			e.setState(transport.StateConnected)
			e.readyOnce.Do(onReady)
		})
	}()

	err = socket.RunContext(sessionCtx)
	cancel()
	<-loopDone

	if err != nil && !errors.Is(err, context.Canceled) {
		return established.Load(), categorizeSlackError(err, "socket mode session")
	}
	return established.Load(), nil
}

// runEventLoop processes events from one Socket Mode session.
func (e *Engine) runEventLoop(ctx context.Context, socket *socketmode.Client, onHandshake func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-socket.Events:
			if !ok {
				return
			}
			ackEnvelope(socket, evt)
			e.handleSocketModeEvent(ctx, evt, onHandshake)
		}
	}
}

// acker acknowledges Socket Mode envelopes.
type acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

// ackEnvelope acknowledges every enveloped request, including ones we ignore,
// or Slack redelivers it. Control frames such as hello and disconnect carry
// no envelope and are not acknowledged.
func ackEnvelope(a acker, evt socketmode.Event) {
	if evt.Request == nil || evt.Request.EnvelopeID == "" {
		return
	}
	a.Ack(*evt.Request)
}

func (e *Engine) handleSocketModeEvent(ctx context.Context, evt socketmode.Event, onHandshake func()) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		e.logger.Info("Connecting to Slack...")

	case socketmode.EventTypeConnected:
		e.logger.Debug("Socket opened, waiting for hello")

	case socketmode.EventTypeHello:
		e.logger.Info("Connected to Slack via Socket Mode", "team_id", e.teamID)
		onHandshake()

	case socketmode.EventTypeConnectionError:
		e.logger.Warn("Connection error", "error", evt.Data)

	case socketmode.EventTypeInvalidAuth:
		e.logger.Error("Invalid auth reported by Socket Mode")

	case socketmode.EventTypeDisconnect:
		e.logger.Info("Slack requested disconnect, reconnecting")
		e.setState(transport.StateConnecting)

	case socketmode.EventTypeEventsAPI:
		eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			e.logger.Error("Failed to cast events API event")
			return
		}
		e.handleEventsAPI(ctx, eventsAPI)

	default:
		e.logger.Debug("Unhandled event type", "type", evt.Type)
	}
}

// handleEventsAPI translates callback events into messages and reactions.
func (e *Engine) handleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}

	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		msg, ok := e.translateMessage(ev)
		if !ok {
			return
		}
		if err := e.messages.Publish(ctx, msg); err != nil {
			e.logger.Warn("Dropped inbound message", "channel", msg.ChannelID, "error", err)
		}

	case *slackevents.ReactionAddedEvent:
		if ev.User == e.botUserID {
			return
		}
		e.publishEvent(ctx, entity.ReactionAddedEvent{Reaction: entity.Reaction{
			Emoji:            ev.Reaction,
			UserID:           ev.User,
			ChannelID:        ev.Item.Channel,
			MessageTimestamp: ev.Item.Timestamp,
			ItemUserID:       ev.ItemUser,
			EventTimestamp:   ev.EventTimestamp,
		}})

	case *slackevents.ReactionRemovedEvent:
		if ev.User == e.botUserID {
			return
		}
		e.publishEvent(ctx, entity.ReactionRemovedEvent{Reaction: entity.Reaction{
			Emoji:            ev.Reaction,
			UserID:           ev.User,
			ChannelID:        ev.Item.Channel,
			MessageTimestamp: ev.Item.Timestamp,
			ItemUserID:       ev.ItemUser,
			EventTimestamp:   ev.EventTimestamp,
		}})
	}
}

func (e *Engine) publishEvent(ctx context.Context, event entity.SlackcatEvent) {
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.Warn("Dropped inbound event", "error", err)
	}
}

var slackUnescaper = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")

// translateMessage converts a message event into a command message.
// Messages by the bot itself, edits and other subtypes, and anything that
// is not a well-formed command are discarded.
func (e *Engine) translateMessage(ev *slackevents.MessageEvent) (*entity.IncomingChatMessage, bool) {
	if ev.SubType != "" && ev.SubType != "thread_broadcast" {
		return nil, false
	}
	if ev.BotID != "" || ev.User == "" || ev.User == e.botUserID {
		return nil, false
	}

	return entity.NewIncomingChatMessage(
		ev.Channel,
		ev.User,
		ev.TimeStamp,
		slackUnescaper.Replace(ev.Text),
		ev.ThreadTimeStamp,
	)
}

func (e *Engine) setState(s transport.State) {
	e.state.Store(int32(s))
}
