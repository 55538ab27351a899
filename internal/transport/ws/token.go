// Package ws exposes the game over WebSocket connections.
//
// Clients authenticate with a signed session token, upgrade, and then
// exchange JSON frames: commands inbound, events and command results
// outbound. Each connection is registered as an event sink for its
// character.
package ws

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session identifies an authenticated connection.
type Session struct {
	CharacterID string
	Name        string
}

// TokenIssuer mints and verifies session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  func() time.Time
}

// NewTokenIssuer creates an issuer signing with secret. Tokens expire
// after ttl.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl, clock: time.Now}
}

type sessionClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Issue mints a token for the character.
func (i *TokenIssuer) Issue(characterID, name string) (string, error) {
	now := i.clock()
	claims := sessionClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   characterID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning the session it names.
func (i *TokenIssuer) Verify(token string) (Session, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return i.clock() }))
	if err != nil {
		return Session{}, fmt.Errorf("verify session token: %w", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Session{}, fmt.Errorf("invalid session token")
	}
	return Session{CharacterID: claims.Subject, Name: claims.Name}, nil
}
