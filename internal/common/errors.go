// Package common defines shared constants and sentinel errors used across
// client and server layers of credkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorUnauthorized = errors.New("unauthorized")

	// Input errors. ErrValidation covers malformed or policy-violating input,
	// ErrConflict a uniqueness violation on username or email.
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")

	// Login errors. Unknown login and wrong password share ErrInvalidCredentials.
	ErrInvalidCredentials = errors.New("unable to login with provided credentials")
	ErrAccountDisabled    = errors.New("user account is disabled")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
