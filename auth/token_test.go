package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reef-chat/domain/chat"
	"reef-chat/errors"
)

func Test_Token_Round_Trip(t *testing.T) {
	req := require.New(t)
	secret := []byte("hand-off-secret")
	identity := chat.Identity{DisplayName: "Alice", StableID: "user-42"}

	tokenString, err := GenerateToken(identity, secret, time.Hour)
	req.NoError(err)

	verified, err := ValidateToken(tokenString, secret)
	req.NoError(err)
	req.Equal(identity, verified)
}

func Test_Token_Wrong_Secret_Is_Rejected(t *testing.T) {
	req := require.New(t)
	tokenString, err := GenerateToken(chat.Identity{DisplayName: "Alice"}, []byte("good"), time.Hour)
	req.NoError(err)

	_, err = ValidateToken(tokenString, []byte("evil"))
	req.ErrorIs(err, errors.ErrUnauthorized)
}

func Test_Token_Expired_Is_Rejected(t *testing.T) {
	req := require.New(t)
	secret := []byte("hand-off-secret")
	tokenString, err := GenerateToken(chat.Identity{DisplayName: "Alice"}, secret, -time.Minute)
	req.NoError(err)

	_, err = ValidateToken(tokenString, secret)
	req.ErrorIs(err, errors.ErrUnauthorized)
}

func Test_Token_Carries_Guest_Flag(t *testing.T) {
	req := require.New(t)
	secret := []byte("hand-off-secret")
	tokenString, err := GenerateToken(chat.Identity{DisplayName: "Guest-7", Guest: true}, secret, time.Hour)
	req.NoError(err)

	verified, err := ValidateToken(tokenString, secret)
	req.NoError(err)
	req.True(verified.IsGuest())
}

func Test_Garbage_Token_Is_Rejected(t *testing.T) {
	req := require.New(t)
	_, err := ValidateToken("definitely-not-a-jwt", []byte("hand-off-secret"))
	req.ErrorIs(err, errors.ErrUnauthorized)
}
