// Package auth mints and checks the signed bearer tokens handed to clients.
// Tokens are JWTs carrying the user id as subject, a token type, a unique
// id and a validity window; the signing key id travels in the header.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType separates short-lived access tokens from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims is the token payload. Family is set on refresh tokens only and
// stays the same across rotations of one login session.
type Claims struct {
	jwt.RegisteredClaims
	Type   TokenType `json:"typ"`
	Family string    `json:"fam,omitempty"`
}

// UserID returns the subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// IssuedTime returns when the token was minted, with millisecond precision
// when the token id is a UUIDv7 and second precision (iat) otherwise.
func (c *Claims) IssuedTime() time.Time {
	if t, ok := uuidV7Time(c.ID); ok {
		return t
	}
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}

// ExpiresTime returns exp or the zero time.
func (c *Claims) ExpiresTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// uuidV7Time returns the millisecond timestamp embedded in a version 7 UUID.
func uuidV7Time(id string) (time.Time, bool) {
	u, err := uuid.Parse(id)
	if err != nil || u.Version() != 7 {
		return time.Time{}, false
	}

	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec), true
}
