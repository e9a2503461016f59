// Package transport defines the chat engine contract shared by the live and offline engines.
package transport

import (
	"context"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
)

// State is the connection state of a ChatEngine.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ChatEngine connects to a chat backend, streams inbound traffic and sends replies.
type ChatEngine interface {
	// Name identifies the engine in logs and metrics.
	Name() string

	// Connect runs the session until ctx is cancelled or a fatal error occurs.
	// onReady is called once, after the handshake with the backend is confirmed.
	// Both flows are closed when Connect returns.
	Connect(ctx context.Context, onReady func()) error

	// SendMessage delivers a reply. Failures are returned, never panicked.
	SendMessage(ctx context.Context, msg *entity.OutgoingChatMessage, identity entity.BotIdentity) error

	// Messages is the ordered stream of well-formed command messages.
	Messages() *Flow[*entity.IncomingChatMessage]

	// Events is the stream of non-command events.
	Events() *Flow[entity.SlackcatEvent]

	// State returns the current connection state.
	State() State
}
