// Package revokedtokens persists the refresh-token blacklist and per-user
// revocation cutoffs.
package revokedtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

type Repository interface {
	// Add inserts a blacklist entry. It reports false, without error, when
	// the token id is already blacklisted.
	Add(ctx context.Context, token *models.RevokedToken) (bool, error)
	Exists(ctx context.Context, tokenID string) (bool, error)

	// RevokeSubject moves the user's cutoff forward to before; it never
	// moves an existing cutoff back.
	RevokeSubject(ctx context.Context, userID string, before time.Time) error
	// SubjectRevokedBefore returns the cutoff, or the zero time if none.
	SubjectRevokedBefore(ctx context.Context, userID string) (time.Time, error)

	DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error)
	DeleteSubjectsBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}
