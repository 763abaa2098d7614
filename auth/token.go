package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"reef-chat/domain/chat"
	"reef-chat/errors"
)

// IdentityClaims is the identity hand-off minted by the external
// authentication layer: display name, optional stable id, guest flag.
type IdentityClaims struct {
	DisplayName string `json:"display_name"`
	StableID    string `json:"stable_id,omitempty"`
	Guest       bool   `json:"guest"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed identity hand-off for a user. Only the
// authentication collaborator calls this; the chat core merely validates.
func GenerateToken(identity chat.Identity, secret []byte, duration time.Duration) (string, error) {
	now := time.Now()
	claims := &IdentityClaims{
		DisplayName: identity.DisplayName,
		StableID:    identity.StableID,
		Guest:       identity.Guest,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "reef-chat",
		},
	}

	// HS256 (HMAC with SHA256), signed with the shared hand-off secret.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken parses and validates the signature and expiration of an
// identity hand-off and returns the carried identity.
func ValidateToken(tokenString string, secret []byte) (chat.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return chat.Identity{}, fmt.Errorf("%w: %v", errors.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid {
		return chat.Identity{}, fmt.Errorf("%w: %v", errors.ErrUnauthorized, jwt.ErrSignatureInvalid)
	}
	return chat.Identity{
		DisplayName: claims.DisplayName,
		StableID:    claims.StableID,
		Guest:       claims.Guest,
	}, nil
}
