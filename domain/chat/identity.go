package chat

import (
	"regexp"
	"strings"
)

// guestNamePattern matches the display names generated for anonymous
// visitors by the authentication hand-off.
var guestNamePattern = regexp.MustCompile(`^Guest-\d+$`)

// Identity is the session identity handed off by the external
// authentication layer. StableID is empty for guests.
type Identity struct {
	DisplayName string `json:"display_name"`
	StableID    string `json:"stable_id,omitempty"`
	Guest       bool   `json:"guest"`
}

// IsGuest reports whether this identity is anonymous: explicitly flagged,
// nameless, or carrying a generated guest name.
func (i Identity) IsGuest() bool {
	return i.Guest || i.DisplayName == "" || guestNamePattern.MatchString(i.DisplayName)
}

// RequesterID is the identity string used for delete authorization:
// the stable id when present, the display name otherwise.
func (i Identity) RequesterID() string {
	if i.StableID != "" {
		return i.StableID
	}
	return i.DisplayName
}

// IsPublicRoom reports whether a room is the public variant of its topic,
// the only room guests may subscribe to. By convention the public variant
// is the room whose key ends with the configured suffix.
func IsPublicRoom(room, publicSuffix string) bool {
	return strings.HasSuffix(room, publicSuffix)
}

// CanDelete implements the deletion authorization rule: the requester must
// match the sender's stable id or display name, or be the designated owner.
func CanDelete(requesterID string, m Message, owner string) bool {
	if requesterID == "" {
		return false
	}
	if requesterID == owner {
		return true
	}
	return requesterID == m.SenderStableID || requesterID == m.SenderDisplayName
}
