package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// Constraint names from migrations/00001_create_users.sql.
const (
	usernameConstraint = "users_username_lower_key"
	emailConstraint    = "users_email_key"
)

const userColumns = `id, username, email, password_hash, first_name, last_name,
		 is_active, email_verified, created_at, updated_at, last_login`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var lastLogin sql.NullTime

	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.IsActive, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return u, nil
}

// mapWriteError converts unique violations into the duplicate sentinels.
func mapWriteError(err error) error {
	if constraint, ok := dbx.UniqueViolation(err); ok {
		switch constraint {
		case usernameConstraint:
			return models.ErrDuplicateUsername
		case emailConstraint:
			return models.ErrDuplicateEmail
		default:
			return fmt.Errorf("db error: %w: %w", common.ErrConflict, err)
		}
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.PasswordHash == "" {
		return nil, models.ErrEmptyPasswordHash
	}

	query :=
		`INSERT INTO users (id, username, email, password_hash, first_name, last_name, is_active, email_verified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, strings.ToLower(user.Email), user.PasswordHash,
		user.FirstName, user.LastName, user.IsActive, user.EmailVerified,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}

	user.Email = strings.ToLower(user.Email)
	return user, nil
}

// GetByLogin resolves login as a username or an email, both compared
// case-insensitively. A username match wins over an email match.
func (r *PostgresRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE LOWER(username) = LOWER($1) OR email = LOWER($1)
		 ORDER BY (LOWER(username) = LOWER($1)) DESC
		 LIMIT 1
		 `

	return scanUser(r.db.QueryRowContext(ctx, query, login))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE id = $1
		 `

	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByIDForUpdate locks the row until the surrounding transaction ends.
func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE id = $1
		 FOR UPDATE
		 `

	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// EmailExists checks for another user owning email. excludeID, when not
// empty, skips that user so a profile can keep its own address.
func (r *PostgresRepository) EmailExists(ctx context.Context, email string, excludeID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = LOWER($1) AND ($2 = '' OR id::text <> $2))`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.User, error) {
	var email *string
	if update.Email != nil {
		lowered := strings.ToLower(*update.Email)
		email = &lowered
	}

	query :=
		`UPDATE users SET
		     first_name = COALESCE($2, first_name),
		     last_name = COALESCE($3, last_name),
		     email = COALESCE($4, email),
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING ` + userColumns + `
		 `

	row := r.db.QueryRowContext(ctx, query, id, nullable(update.FirstName), nullable(update.LastName), nullable(email))

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, mapWriteError(errors.Unwrap(err))
	}
	return u, nil
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	if hash == "" {
		return models.ErrEmptyPasswordHash
	}

	query :=
		`UPDATE users SET password_hash = $2, updated_at = NOW()
		 WHERE id = $1
		 `

	return r.execOne(ctx, query, id, hash)
}

func (r *PostgresRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE users SET last_login = $2
		 WHERE id = $1
		 `

	return r.execOne(ctx, query, id, at)
}

// execOne runs an UPDATE that must hit exactly one row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
