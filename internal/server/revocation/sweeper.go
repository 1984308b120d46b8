package revocation

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/revokedtokens"
)

const defaultSweepBatch = 1000

// Sweeper deletes blacklist rows whose token has expired and subject
// cutoffs older than the refresh token lifetime. Neither can affect a
// verification any more.
type Sweeper struct {
	repo      revokedtokens.Repository
	interval  time.Duration
	retention time.Duration
	batch     int
	log       logging.Logger
	now       func() time.Time
}

// NewSweeper returns a sweeper running every interval. retention is the
// refresh token lifetime.
func NewSweeper(repo revokedtokens.Repository, interval, retention time.Duration, log logging.Logger) *Sweeper {
	return &Sweeper{
		repo:      repo,
		interval:  interval,
		retention: retention,
		batch:     defaultSweepBatch,
		log:       log.With("module", "revocation_sweeper"),
		now:       time.Now,
	}
}

// Run sweeps on every tick until ctx is done. Sweep errors are logged and
// retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.log.Info(ctx, "revocation sweeper disabled")
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tokens, subjects, err := s.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.log.Error(ctx, "revocation sweep failed", "error", err)
				continue
			}
			if tokens > 0 || subjects > 0 {
				s.log.Info(ctx, "revocation sweep", "tokens", tokens, "subjects", subjects)
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// Sweep deletes in batches until a batch comes back short.
func (s *Sweeper) Sweep(ctx context.Context) (tokens, subjects int64, err error) {
	now := s.now()

	for {
		n, err := s.repo.DeleteExpired(ctx, now, s.batch)
		if err != nil {
			return tokens, subjects, err
		}
		tokens += n
		if n < int64(s.batch) {
			break
		}
	}

	cutoff := now.Add(-s.retention)
	for {
		n, err := s.repo.DeleteSubjectsBefore(ctx, cutoff, s.batch)
		if err != nil {
			return tokens, subjects, err
		}
		subjects += n
		if n < int64(s.batch) {
			break
		}
	}

	return tokens, subjects, nil
}
