package entity

import (
	"slices"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/command"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/message"
)

// ChatUser identifies the author of a message.
type ChatUser struct {
	UserID string
}

// IncomingChatMessage is a single inbound command message.
// Engines only emit messages whose command has already been resolved.
type IncomingChatMessage struct {
	ChannelID string
	ChatUser  ChatUser

	// MessageID is the transport identifier of the message (Slack ts).
	MessageID string

	RawMessage string
	Command    string
	Arguments  []string
	UserText   string

	// ThreadID is the parent message identifier when the message was posted in a thread.
	ThreadID string
}

// NewIncomingChatMessage parses raw and returns the resulting message.
// Returns false if raw is not a well-formed command.
func NewIncomingChatMessage(channelID, userID, messageID, raw, threadID string) (*IncomingChatMessage, bool) {
	parsed, ok := command.Parse(raw)
	if !ok {
		return nil, false
	}

	return &IncomingChatMessage{
		ChannelID:  channelID,
		ChatUser:   ChatUser{UserID: userID},
		MessageID:  messageID,
		RawMessage: raw,
		Command:    parsed.Command,
		Arguments:  parsed.Arguments,
		UserText:   parsed.UserText,
		ThreadID:   threadID,
	}, true
}

// IsInThread returns true if the message was posted in a thread.
func (m *IncomingChatMessage) IsInThread() bool {
	return m.ThreadID != ""
}

// HasArgument returns true if the flag (including its "--" prefix) was passed.
func (m *IncomingChatMessage) HasArgument(arg string) bool {
	return slices.Contains(m.Arguments, arg)
}

// OutgoingChatMessage is a reply to be sent by a ChatEngine.
type OutgoingChatMessage struct {
	ChannelID string
	Content   message.BotMessage
	ThreadID  string
}

// BotIdentity is the name and icon the bot posts with.
type BotIdentity struct {
	DisplayName string

	// Icon is either an emoji shortcode (":cat:") or an image URL.
	Icon string
}

// IconIsEmoji returns true if Icon is an emoji shortcode.
func (b BotIdentity) IconIsEmoji() bool {
	return len(b.Icon) > 2 && b.Icon[0] == ':' && b.Icon[len(b.Icon)-1] == ':'
}
