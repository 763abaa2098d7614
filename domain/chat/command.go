package chat

import (
	"github.com/google/uuid"
)

type Command interface {
	RoomID() string
}

// AckStatus is the request/response outcome carried back to the issuing
// session for commands that acknowledge (send, delete).
type AckStatus string

const (
	AckOK           AckStatus = "ok"
	AckInvalid      AckStatus = "invalid"
	AckUnauthorized AckStatus = "unauthorized"
	AckNotFound     AckStatus = "not_found"
	AckStorage      AckStatus = "storage_error"
)

type Ack struct {
	Status AckStatus
	Reason string
}

type JoinCommand struct {
	Room        string
	DisplayName string
}

func (c JoinCommand) RoomID() string { return c.Room }

type LeaveCommand struct {
	Room        string
	DisplayName string
}

func (c LeaveCommand) RoomID() string { return c.Room }

// SendCommand carries a message intent. Reply, when non-nil, receives
// exactly one Ack: AckOK only after the message is durably stored.
type SendCommand struct {
	Input MessageInput
	Reply chan<- Ack
}

func (c SendCommand) RoomID() string { return c.Input.Room }

type TypingCommand struct {
	Room        string
	DisplayName string
}

func (c TypingCommand) RoomID() string { return c.Room }

// DeleteCommand requests removal of a message. Authorization is checked
// against the stored message before anything is removed.
type DeleteCommand struct {
	Room        string
	MessageID   uuid.UUID
	RequesterID string
	Reply       chan<- Ack
}

func (c DeleteCommand) RoomID() string { return c.Room }
