package chat

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"reef-chat/errors"
)

var validate = validator.New()

type Kind string

const (
	KindText  Kind = "text"
	KindMedia Kind = "media"
)

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Message is a stored chat message. Immutable once created; the only
// destructive operation is a hard delete.
type Message struct {
	ID                uuid.UUID `json:"id"`
	Room              string    `json:"room"`
	SenderStableID    string    `json:"sender_stable_id,omitempty"`
	SenderDisplayName string    `json:"sender_display_name"`
	SenderAvatarURL   string    `json:"sender_avatar_url,omitempty"`
	Kind              Kind      `json:"kind"`
	Text              string    `json:"text,omitempty"`
	MediaURL          string    `json:"media_url,omitempty"`
	MediaKind         MediaKind `json:"media_kind,omitempty"`
	IsGuest           bool      `json:"is_guest"`
	CreatedAt         time.Time `json:"created_at"`
}

// MessageInput is what a sender provides. ID and CreatedAt are assigned
// by the store on append.
type MessageInput struct {
	Room              string    `json:"room" validate:"required"`
	SenderStableID    string    `json:"sender_stable_id,omitempty"`
	SenderDisplayName string    `json:"sender_display_name" validate:"required"`
	SenderAvatarURL   string    `json:"sender_avatar_url,omitempty" validate:"omitempty,url"`
	Kind              Kind      `json:"kind" validate:"required,oneof=text media"`
	Text              string    `json:"text,omitempty"`
	MediaURL          string    `json:"media_url,omitempty" validate:"omitempty,url"`
	MediaKind         MediaKind `json:"media_kind,omitempty" validate:"omitempty,oneof=image video"`
	IsGuest           bool      `json:"is_guest"`
}

// Validate enforces the kind invariant: a text message carries non-empty
// text, a media message carries a non-empty media URL. A message with
// neither must never reach the hub.
func (in MessageInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	switch in.Kind {
	case KindText:
		if in.Text == "" {
			return fmt.Errorf("%w: text message with empty text", errors.ErrValidation)
		}
	case KindMedia:
		if in.MediaURL == "" {
			return fmt.Errorf("%w: media message with empty media url", errors.ErrValidation)
		}
	}
	return nil
}
