package auth

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/credkeeper/internal/common"
)

// Verification failures. Each one also matches common.ErrorUnauthorized so
// transports can answer uniformly while logs keep the precise kind.
var (
	ErrTokenMalformed        = fmt.Errorf("token malformed: %w", common.ErrorUnauthorized)
	ErrTokenSignatureInvalid = fmt.Errorf("token signature invalid: %w", common.ErrorUnauthorized)
	ErrTokenExpired          = fmt.Errorf("%w: %w", common.ErrTokenExpired, common.ErrorUnauthorized)
	ErrTokenWrongType        = fmt.Errorf("wrong token type: %w", common.ErrorUnauthorized)
	ErrTokenRevoked          = fmt.Errorf("token revoked: %w", common.ErrorUnauthorized)

	// ErrTokenBlacklisted is the ErrTokenRevoked case where the token id
	// itself is on the blacklist, as opposed to its family or a revoke-all
	// cutoff.
	ErrTokenBlacklisted = fmt.Errorf("token blacklisted: %w", ErrTokenRevoked)
)

// Kind names the failure for logs: malformed, signature_invalid, expired,
// wrong_type, revoked, or "" for errors that are not token failures.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, ErrTokenSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenWrongType):
		return "wrong_type"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked"
	default:
		return ""
	}
}
