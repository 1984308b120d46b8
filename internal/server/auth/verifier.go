package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/keystore"
	"github.com/golang-jwt/jwt/v5"
)

// RevocationChecker answers whether a refresh token may still be honoured.
// A refresh token's family id shares the blacklist with token ids.
type RevocationChecker interface {
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)
	// SubjectRevokedAt returns the user's revoke-all cutoff or the zero time.
	SubjectRevokedAt(ctx context.Context, userID string) (time.Time, error)
}

var errMissingKID = errors.New("missing kid")

// Verifier checks tokens against every key in the keyring.
type Verifier struct {
	keys        *keystore.Keyring
	method      jwt.SigningMethod
	issuer      string
	revocations RevocationChecker
	now         func() time.Time
}

func NewVerifier(keys *keystore.Keyring, issuer string, revocations RevocationChecker) (*Verifier, error) {
	method, err := signingMethod(keys)
	if err != nil {
		return nil, err
	}
	return &Verifier{
		keys:        keys,
		method:      method,
		issuer:      issuer,
		revocations: revocations,
		now:         time.Now,
	}, nil
}

// Verify runs the full check, stopping at the first failure: structure,
// signature, expiry, type and, for refresh tokens, revocation. Token
// failures are one of the ErrToken* values; a failing revocation lookup
// is returned as is.
func (v *Verifier) Verify(ctx context.Context, token string, expected TokenType) (*Claims, error) {
	claims, err := v.parse(token, jwt.WithExpirationRequired(), jwt.WithTimeFunc(v.now))
	if err != nil {
		return nil, err
	}

	if claims.Type != expected {
		return nil, ErrTokenWrongType
	}

	if expected == TokenRefresh && v.revocations != nil {
		if err := v.checkRevoked(ctx, claims); err != nil {
			return nil, err
		}
	}

	return claims, nil
}

// Inspect checks structure, signature and type only. Expired tokens pass;
// logout uses it so that any token it ever issued can be blacklisted.
func (v *Verifier) Inspect(token string, expected TokenType) (*Claims, error) {
	claims, err := v.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	if claims.Type != expected {
		return nil, ErrTokenWrongType
	}
	return claims, nil
}

func (v *Verifier) parse(token string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{v.method.Alg()}))
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(token, claims, v.keyFunc, opts...); err != nil {
		return nil, classify(err)
	}

	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// keyFunc picks the key named by the kid header. Any key in the ring is
// accepted so tokens signed before a rotation keep verifying.
func (v *Verifier) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, errMissingKID
	}
	return v.keys.VerificationKey(kid)
}

func (v *Verifier) checkRevoked(ctx context.Context, claims *Claims) error {
	revoked, err := v.revocations.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return fmt.Errorf("error checking token blacklist: %w", err)
	}
	if revoked {
		return ErrTokenBlacklisted
	}

	if claims.Family != "" {
		ended, err := v.revocations.IsBlacklisted(ctx, claims.Family)
		if err != nil {
			return fmt.Errorf("error checking token family: %w", err)
		}
		if ended {
			return ErrTokenRevoked
		}
	}

	cutoff, err := v.revocations.SubjectRevokedAt(ctx, claims.Subject)
	if err != nil {
		return fmt.Errorf("error checking subject revocation: %w", err)
	}
	if !cutoff.IsZero() && !claims.IssuedTime().After(cutoff) {
		return ErrTokenRevoked
	}
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenUnverifiable), errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrTokenExpired
	default:
		return ErrTokenMalformed
	}
}
