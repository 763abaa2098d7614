package ws

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"reef-chat/domain/chat"
	"reef-chat/domain/event"
)

// Frame is the wire envelope: one event type plus its JSON payload.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	FrameIdentify       = "identify"
	FrameSwitchRoom     = "switchRoom"
	FrameSend           = "send"
	FrameNew            = "new"
	FrameTyping         = "typing"
	FrameDelete         = "delete"
	FrameDeleteResult   = "delete:result"
	FrameRemoved        = "removed"
	FrameFindByID       = "findById"
	FrameLoadMessages   = "loadMessages"
	FramePresenceUsers  = "presence:users"
	FramePresenceCounts = "presence:counts"
	FrameError          = "error"
)

type IdentifyPayload struct {
	DisplayName string `json:"display_name"`
	StableID    string `json:"stable_id,omitempty"`
}

type SwitchRoomPayload struct {
	Room string `json:"room"`
}

type TypingPayload struct {
	Room        string `json:"room"`
	DisplayName string `json:"display_name"`
}

type DeletePayload struct {
	MessageID uuid.UUID `json:"message_id"`
}

type DeleteResultPayload struct {
	MessageID uuid.UUID `json:"message_id"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
}

type RemovedPayload struct {
	Room string    `json:"room"`
	ID   uuid.UUID `json:"id"`
}

type FindByIDPayload struct {
	MessageID uuid.UUID `json:"message_id"`
}

type LoadMessagesPayload struct {
	Messages []chat.Message `json:"messages"`
}

type PresenceUsersPayload struct {
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

type PresenceCountsPayload struct {
	Counts map[string]int `json:"counts"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewFrame marshals a payload into its envelope.
func NewFrame(frameType string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("encoding %s frame: %w", frameType, err)
	}
	return Frame{Type: frameType, Data: data}, nil
}

// FrameFromEvent translates a fanned-out domain event into its wire frame.
// Unknown events report false and are not sent.
func FrameFromEvent(e event.DomainEvent) (Frame, bool) {
	switch evt := e.(type) {
	case event.MessagePosted:
		frame, err := NewFrame(FrameNew, evt.Message)
		return frame, err == nil
	case event.MessageRemoved:
		frame, err := NewFrame(FrameRemoved, RemovedPayload{Room: evt.Room, ID: evt.ID})
		return frame, err == nil
	case event.TypingStarted:
		frame, err := NewFrame(FrameTyping, TypingPayload{Room: evt.Room, DisplayName: evt.DisplayName})
		return frame, err == nil
	case event.PresenceUpdated:
		frame, err := NewFrame(FramePresenceUsers, PresenceUsersPayload{Room: evt.Room, Users: evt.Users})
		return frame, err == nil
	case event.PresenceCounts:
		frame, err := NewFrame(FramePresenceCounts, PresenceCountsPayload{Counts: evt.Counts})
		return frame, err == nil
	default:
		return Frame{}, false
	}
}

// EventFromFrame is the client-side inverse of FrameFromEvent, used by the
// viewer to feed received frames into its synchronization engine.
func EventFromFrame(frame Frame) (event.DomainEvent, error) {
	switch frame.Type {
	case FrameNew:
		var message chat.Message
		if err := json.Unmarshal(frame.Data, &message); err != nil {
			return nil, err
		}
		return event.MessagePosted{Message: message}, nil
	case FrameRemoved:
		var payload RemovedPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return nil, err
		}
		return event.MessageRemoved{Room: payload.Room, ID: payload.ID}, nil
	case FrameTyping:
		var payload TypingPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return nil, err
		}
		return event.TypingStarted{Room: payload.Room, DisplayName: payload.DisplayName}, nil
	case FramePresenceUsers:
		var payload PresenceUsersPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return nil, err
		}
		return event.PresenceUpdated{Room: payload.Room, Users: payload.Users}, nil
	case FramePresenceCounts:
		var payload PresenceCountsPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return nil, err
		}
		return event.PresenceCounts{Counts: payload.Counts}, nil
	default:
		return nil, fmt.Errorf("frame %q carries no domain event", frame.Type)
	}
}
