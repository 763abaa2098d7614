package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_IsGuest_Detection(t *testing.T) {
	req := require.New(t)

	req.True(Identity{}.IsGuest())
	req.True(Identity{DisplayName: "Guest-123"}.IsGuest())
	req.True(Identity{DisplayName: "Alice", Guest: true}.IsGuest())

	req.False(Identity{DisplayName: "Alice"}.IsGuest())
	// Only the exact generated shape counts as a guest name
	req.False(Identity{DisplayName: "Guest-123b"}.IsGuest())
	req.False(Identity{DisplayName: "Guest-"}.IsGuest())
}

func Test_RequesterID_Prefers_Stable_Id(t *testing.T) {
	req := require.New(t)

	req.Equal("user-42", Identity{DisplayName: "Alice", StableID: "user-42"}.RequesterID())
	req.Equal("Alice", Identity{DisplayName: "Alice"}.RequesterID())
}

func Test_IsPublicRoom_Matches_Suffix(t *testing.T) {
	req := require.New(t)

	req.True(IsPublicRoom("lobby-general", "-general"))
	req.True(IsPublicRoom("ops-general", "-general"))
	req.False(IsPublicRoom("ops", "-general"))
	req.False(IsPublicRoom("general-ops", "-general"))
}

func Test_CanDelete_Authorization_Rule(t *testing.T) {
	req := require.New(t)
	message := Message{SenderStableID: "user-42", SenderDisplayName: "Alice"}

	// The sender may delete, identified by either stable id or name
	req.True(CanDelete("user-42", message, "Admin"))
	req.True(CanDelete("Alice", message, "Admin"))
	// The owner may delete anything
	req.True(CanDelete("Admin", message, "Admin"))

	req.False(CanDelete("Mallory", message, "Admin"))
	req.False(CanDelete("", message, "Admin"))
}

func Test_MessageInput_Kind_Invariant(t *testing.T) {
	req := require.New(t)

	text := MessageInput{Room: "lobby-general", SenderDisplayName: "Alice", Kind: KindText, Text: "hi"}
	req.NoError(text.Validate())

	noText := MessageInput{Room: "lobby-general", SenderDisplayName: "Alice", Kind: KindText}
	req.Error(noText.Validate())

	media := MessageInput{Room: "lobby-general", SenderDisplayName: "Alice",
		Kind: KindMedia, MediaURL: "http://localhost/media/cat.png", MediaKind: MediaImage}
	req.NoError(media.Validate())

	noURL := MessageInput{Room: "lobby-general", SenderDisplayName: "Alice", Kind: KindMedia}
	req.Error(noURL.Validate())
}
