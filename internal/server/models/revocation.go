package models

import "time"

// RevokedToken is a blacklist entry for a refresh token or, keyed by its
// family id, for a whole login session. ExpiresAt is the last moment a
// covered token could still verify; after it passes the row only exists
// for GC.
type RevokedToken struct {
	TokenID       string
	UserID        string
	ExpiresAt     time.Time
	BlacklistedAt time.Time
	Reason        string
}

// Revocation reasons recorded with blacklist entries.
const (
	RevokeReasonLogout   = "logout"
	RevokeReasonRotation = "rotation"
	RevokeReasonReplay   = "replay"
)
