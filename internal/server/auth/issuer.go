package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/keystore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Config holds token lifetimes and the iss claim.
type Config struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Token is a signed token together with the claims it was minted from.
type Token struct {
	Value     string
	ID        string
	Type      TokenType
	Subject   string
	Family    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer signs tokens with the keyring's active key.
type Issuer struct {
	keys   *keystore.Keyring
	method jwt.SigningMethod
	cfg    Config

	now   func() time.Time
	newID func() (uuid.UUID, error)
}

func NewIssuer(keys *keystore.Keyring, cfg Config) (*Issuer, error) {
	method, err := signingMethod(keys)
	if err != nil {
		return nil, err
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	return &Issuer{
		keys:   keys,
		method: method,
		cfg:    cfg,
		now:    time.Now,
		newID:  uuid.NewV7,
	}, nil
}

func (i *Issuer) IssueAccessToken(userID string) (Token, error) {
	return i.issue(userID, TokenAccess, i.cfg.AccessTTL, "")
}

// IssueRefreshToken mints a refresh token that starts a new family.
func (i *Issuer) IssueRefreshToken(userID string) (Token, error) {
	return i.issueRefresh(userID, "")
}

// issueRefresh mints a refresh token in the given family, or in
// a new one when family is empty.
func (i *Issuer) issueRefresh(userID, family string) (Token, error) {
	if family == "" {
		id, err := i.newID()
		if err != nil {
			return Token{}, fmt.Errorf("error generating token family: %w", err)
		}
		family = id.String()
	}
	return i.issue(userID, TokenRefresh, i.cfg.RefreshTTL, family)
}

// IssuePair mints an access token and a refresh token for the same user.
// The refresh token starts a new family.
func (i *Issuer) IssuePair(userID string) (access, refresh Token, err error) {
	return i.IssueRotatedPair(userID, "")
}

// IssueRotatedPair is IssuePair for a refresh: the new refresh token joins
// family.
func (i *Issuer) IssueRotatedPair(userID, family string) (access, refresh Token, err error) {
	if access, err = i.IssueAccessToken(userID); err != nil {
		return Token{}, Token{}, err
	}
	if refresh, err = i.issueRefresh(userID, family); err != nil {
		return Token{}, Token{}, err
	}
	return access, refresh, nil
}

func (i *Issuer) issue(userID string, typ TokenType, ttl time.Duration, family string) (Token, error) {
	if userID == "" {
		return Token{}, errors.New("empty token subject")
	}

	id, err := i.newID()
	if err != nil {
		return Token{}, fmt.Errorf("error generating token id: %w", err)
	}

	now := i.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   userID,
			ID:        id.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type:   typ,
		Family: family,
	}

	value, err := i.Sign(claims)
	if err != nil {
		return Token{}, err
	}

	return Token{
		Value:     value,
		ID:        claims.ID,
		Type:      typ,
		Subject:   userID,
		Family:    family,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Sign serialises and signs claims with the active key. Equal claims and
// key give an equal token.
func (i *Issuer) Sign(claims *Claims) (string, error) {
	kid, key, err := i.keys.SigningKey()
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(i.method, claims)
	token.Header["kid"] = kid

	s, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return s, nil
}

func signingMethod(keys *keystore.Keyring) (jwt.SigningMethod, error) {
	if keys == nil {
		return nil, errors.New("nil keyring")
	}
	switch keys.Algorithm {
	case keystore.AlgorithmHS256:
		return jwt.SigningMethodHS256, nil
	case keystore.AlgorithmEdDSA:
		return jwt.SigningMethodEdDSA, nil
	default:
		return nil, keystore.ErrUnsupportedAlg
	}
}
