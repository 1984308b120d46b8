// Package users is the credential store: persistence of user identities
// and their password hashes.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// Repository is the credential store contract. Uniqueness of username
// (case-insensitive) and email is enforced by the database; Create and
// UpdateProfile report violations as models.ErrDuplicateUsername and
// models.ErrDuplicateEmail.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDForUpdate(ctx context.Context, id string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string, excludeID string) (bool, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id string, hash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}
