package entity

import "time"

// SlackcatEvent is a non-command event delivered to Events-capable modules.
// The set of events is closed: StartedEvent, ReactionAddedEvent, ReactionRemovedEvent.
type SlackcatEvent interface {
	slackcatEvent()
}

// StartedEvent is emitted once after the transport is connected.
type StartedEvent struct {
	At time.Time
}

// Reaction describes an emoji reaction on a message.
type Reaction struct {
	// Emoji is the reaction name without colons (e.g., "+1").
	Emoji string

	// UserID is the user who reacted.
	UserID    string
	ChannelID string

	// MessageTimestamp identifies the reacted-to message.
	MessageTimestamp string

	// ItemUserID is the author of the reacted-to message. May be empty.
	ItemUserID     string
	EventTimestamp string
}

// ReactionAddedEvent is emitted when a user adds a reaction.
type ReactionAddedEvent struct {
	Reaction
}

// ReactionRemovedEvent is emitted when a user removes a reaction.
type ReactionRemovedEvent struct {
	Reaction
}

func (StartedEvent) slackcatEvent()         {}
func (ReactionAddedEvent) slackcatEvent()   {}
func (ReactionRemovedEvent) slackcatEvent() {}
