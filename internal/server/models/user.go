// Package models holds the server-side domain entities shared by
// repositories, services and transports.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
)

// Duplicate-key errors raised by the users repository. Both match
// common.ErrConflict.
var (
	ErrDuplicateUsername = fmt.Errorf("username already taken: %w", common.ErrConflict)
	ErrDuplicateEmail    = fmt.Errorf("email already registered: %w", common.ErrConflict)
)

// ErrEmptyPasswordHash is returned when an identity would be stored without
// a credential.
var ErrEmptyPasswordHash = errors.New("password hash must not be empty")

// User is a registered identity. PasswordHash is a self-describing encoded
// hash and is never serialized to clients.
type User struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	IsActive      bool
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastLogin     *time.Time
}

// FullName joins first and last name, trimming the gap when either is empty.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ProfileUpdate is a partial update of the mutable profile fields. Nil
// fields are left untouched. Username is immutable and has no field here.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil
}
