// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// privateKey and publicKey sign and verify seat tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenTTL is how long a seat token stays valid (0 => no expiry).
	tokenTTL time.Duration
)

// parseTokenTTL reads the SEAT_TOKEN_TTL env var ("never" or a Go duration).
func parseTokenTTL() error {
	raw := os.Getenv("SEAT_TOKEN_TTL")
	if raw == "" || raw == "never" || raw == "0" {
		tokenTTL = 0
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("failed to parse SEAT_TOKEN_TTL: %w", err)
	}
	tokenTTL = d
	return nil
}

// Init generates a fresh ed25519 key pair at startup. Tokens do not survive a
// server restart, which is fine: neither do the in-memory rooms they refer to.
func Init() error {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return parseTokenTTL()
}

// CreateSeatToken signs a token binding a player identity to a room. The
// client presents it when reconnecting to resume the same seat.
func CreateSeatToken(roomID, playerID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"sub": playerID.String(),
		"rid": roomID.String(),
	}
	if tokenTTL > 0 {
		claims["exp"] = time.Now().Add(tokenTTL).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// VerifySeatToken checks a seat token and returns the room and player it was
// issued for.
func VerifySeatToken(tokenString string) (roomID, playerID uuid.UUID, err error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid jwt claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("missing sub in jwt")
	}
	rid, ok := claims["rid"].(string)
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("missing rid in jwt")
	}
	playerID, err = uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid player id in jwt: %w", err)
	}
	roomID, err = uuid.Parse(rid)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid room id in jwt: %w", err)
	}
	return roomID, playerID, nil
}
