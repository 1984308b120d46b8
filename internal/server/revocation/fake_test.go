package revocation

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// memRepo is an in-memory revokedtokens.Repository.
type memRepo struct {
	mu       sync.Mutex
	tokens   map[string]models.RevokedToken
	subjects map[string]time.Time
	err      error

	existsCalls  int
	subjectCalls int
}

func newMemRepo() *memRepo {
	return &memRepo{tokens: map[string]models.RevokedToken{}, subjects: map[string]time.Time{}}
}

func (m *memRepo) Add(ctx context.Context, t *models.RevokedToken) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.tokens[t.TokenID]; ok {
		return false, nil
	}
	m.tokens[t.TokenID] = *t
	return true, nil
}

func (m *memRepo) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls++
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.tokens[id]
	return ok, nil
}

func (m *memRepo) RevokeSubject(ctx context.Context, userID string, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if cur, ok := m.subjects[userID]; !ok || before.After(cur) {
		m.subjects[userID] = before
	}
	return nil
}

func (m *memRepo) SubjectRevokedBefore(ctx context.Context, userID string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjectCalls++
	if m.err != nil {
		return time.Time{}, m.err
	}
	return m.subjects[userID], nil
}

func (m *memRepo) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for id, t := range m.tokens {
		if int(n) == limit {
			break
		}
		if t.ExpiresAt.Before(now) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

func (m *memRepo) DeleteSubjectsBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for id, at := range m.subjects {
		if int(n) == limit {
			break
		}
		if at.Before(cutoff) {
			delete(m.subjects, id)
			n++
		}
	}
	return n, nil
}

func quietLogger() logging.Logger {
	return logging.NewJSONLogger(io.Discard, "error")
}
