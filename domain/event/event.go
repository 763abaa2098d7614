// Package event defines the domain events fanned out to room subscribers.
package event

import (
	"github.com/google/uuid"

	"reef-chat/domain/chat"
)

// DomainEvent is anything the hub can broadcast. RoomID scopes delivery:
// events with an empty RoomID are delivered to every connected session.
type DomainEvent interface {
	RoomID() string
}

// MessagePosted is published after a message has been durably stored,
// never before.
type MessagePosted struct {
	Message chat.Message
}

func (e MessagePosted) RoomID() string { return e.Message.Room }

// MessageRemoved notifies subscribers that a message was deleted and must
// be filtered out of local buffers.
type MessageRemoved struct {
	Room string
	ID   uuid.UUID
}

func (e MessageRemoved) RoomID() string { return e.Room }

// TypingStarted is ephemeral; consumers clear it themselves after a fixed
// timeout. Last sender wins.
type TypingStarted struct {
	Room        string
	DisplayName string
}

func (e TypingStarted) RoomID() string { return e.Room }

// PresenceUpdated carries the member list of one room after a join or
// leave.
type PresenceUpdated struct {
	Room  string
	Users []string
}

func (e PresenceUpdated) RoomID() string { return e.Room }

// PresenceCounts is the sidebar snapshot of all room sizes. It is not
// scoped to a room: every session receives it.
type PresenceCounts struct {
	Counts map[string]int
}

func (e PresenceCounts) RoomID() string { return "" }
