package revokedtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Add(ctx context.Context, token *models.RevokedToken) (bool, error) {
	query :=
		`INSERT INTO token_blacklist (jti, user_id, expires_at, reason)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (jti) DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query, token.TokenID, token.UserID, token.ExpiresAt, token.Reason)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) Exists(ctx context.Context, tokenID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM token_blacklist WHERE jti = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, tokenID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) RevokeSubject(ctx context.Context, userID string, before time.Time) error {
	query :=
		`INSERT INTO revoked_subjects (user_id, revoked_before)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE
		 SET revoked_before = GREATEST(revoked_subjects.revoked_before, EXCLUDED.revoked_before),
		     updated_at = NOW()
		 `

	if _, err := r.db.ExecContext(ctx, query, userID, before); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SubjectRevokedBefore(ctx context.Context, userID string) (time.Time, error) {
	query :=
		`SELECT revoked_before FROM revoked_subjects
		 WHERE user_id = $1
		 `

	var before time.Time
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&before)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("db error: %w", err)
	}
	return before, nil
}

// DeleteExpired removes up to limit blacklist rows whose tokens expired
// before now. Oldest rows go first.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	query :=
		`WITH stale AS (
		     SELECT jti FROM token_blacklist
		     WHERE expires_at < $1
		     ORDER BY expires_at ASC
		     LIMIT $2
		 )
		 DELETE FROM token_blacklist b
		 USING stale
		 WHERE b.jti = stale.jti
		 `

	return r.deleteBatch(ctx, query, now, limit)
}

// DeleteSubjectsBefore removes up to limit cutoffs older than cutoff. A
// cutoff older than the refresh TTL no longer rejects any live token.
func (r *PostgresRepository) DeleteSubjectsBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query :=
		`WITH stale AS (
		     SELECT user_id FROM revoked_subjects
		     WHERE revoked_before < $1
		     ORDER BY revoked_before ASC
		     LIMIT $2
		 )
		 DELETE FROM revoked_subjects s
		 USING stale
		 WHERE s.user_id = stale.user_id
		 `

	return r.deleteBatch(ctx, query, cutoff, limit)
}

func (r *PostgresRepository) deleteBatch(ctx context.Context, query string, at time.Time, limit int) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, at, limit)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
