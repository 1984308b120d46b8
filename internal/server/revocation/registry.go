// Package revocation records refresh tokens that must no longer be
// honoured. Entries live in shared durable storage; an optional Redis
// cache sits in front of it and a sweeper drops entries nobody can hit
// any more.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/revokedtokens"
)

var ErrEmptyTokenID = errors.New("empty token id")

// Registry is the blacklist plus per-user revoke-all cutoffs.
type Registry interface {
	// Blacklist records the token. It is idempotent: added is false when the
	// id was already present.
	Blacklist(ctx context.Context, token models.RevokedToken) (added bool, err error)
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)

	// RevokeSubject rejects every refresh token of the user issued at or
	// before at.
	RevokeSubject(ctx context.Context, userID string, at time.Time) error
	// SubjectRevokedAt returns the user's cutoff or the zero time.
	SubjectRevokedAt(ctx context.Context, userID string) (time.Time, error)
}

// Store is the durable Registry backed by the revokedtokens repository.
type Store struct {
	repo revokedtokens.Repository
}

func NewStore(repo revokedtokens.Repository) *Store {
	return &Store{repo: repo}
}

func (s *Store) Blacklist(ctx context.Context, token models.RevokedToken) (bool, error) {
	if token.TokenID == "" {
		return false, ErrEmptyTokenID
	}
	added, err := s.repo.Add(ctx, &token)
	if err != nil {
		return false, fmt.Errorf("error blacklisting token: %w", err)
	}
	return added, nil
}

func (s *Store) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, ErrEmptyTokenID
	}
	return s.repo.Exists(ctx, tokenID)
}

func (s *Store) RevokeSubject(ctx context.Context, userID string, at time.Time) error {
	if err := s.repo.RevokeSubject(ctx, userID, at); err != nil {
		return fmt.Errorf("error revoking user tokens: %w", err)
	}
	return nil
}

func (s *Store) SubjectRevokedAt(ctx context.Context, userID string) (time.Time, error) {
	return s.repo.SubjectRevokedBefore(ctx, userID)
}
