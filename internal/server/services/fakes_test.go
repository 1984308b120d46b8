package services

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/keystore"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/passwords"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/revokedtokens"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/credkeeper/internal/server/revocation"
	"golang.org/x/crypto/bcrypt"
)

// memUsers is an in-memory credential store that enforces the same
// uniqueness rules as the database constraints.
type memUsers struct {
	mu    sync.Mutex
	byID  map[string]*models.User
	err   error
	delay time.Duration

	passwordUpdates int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*models.User{}}
}

func clone(u *models.User) *models.User {
	c := *u
	return &c
}

func (m *memUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if u.PasswordHash == "" {
		return nil, models.ErrEmptyPasswordHash
	}
	for _, e := range m.byID {
		if strings.EqualFold(e.Username, u.Username) {
			return nil, models.ErrDuplicateUsername
		}
		if e.Email == strings.ToLower(u.Email) {
			return nil, models.ErrDuplicateEmail
		}
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	m.byID[u.ID] = clone(u)
	return u, nil
}

func (m *memUsers) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var byEmail *models.User
	for _, u := range m.byID {
		if strings.EqualFold(u.Username, login) {
			return clone(u), nil
		}
		if u.Email == strings.ToLower(login) {
			byEmail = u
		}
	}
	if byEmail != nil {
		return clone(byEmail), nil
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(u), nil
}

func (m *memUsers) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	return m.GetByID(ctx, id)
}

func (m *memUsers) UsernameExists(ctx context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for _, u := range m.byID {
		if strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) EmailExists(ctx context.Context, email, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for id, u := range m.byID {
		if u.Email == strings.ToLower(email) && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) UpdateProfile(ctx context.Context, id string, p models.ProfileUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if p.Email != nil {
		for oid, o := range m.byID {
			if oid != id && o.Email == strings.ToLower(*p.Email) {
				return nil, models.ErrDuplicateEmail
			}
		}
		u.Email = strings.ToLower(*p.Email)
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	u.UpdatedAt = time.Now()
	return clone(u), nil
}

func (m *memUsers) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	u, ok := m.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	m.passwordUpdates++
	return nil
}

func (m *memUsers) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if u, ok := m.byID[id]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (m *memUsers) get(id string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.byID[id])
}

// memRevoked is an in-memory revokedtokens.Repository.
type memRevoked struct {
	mu       sync.Mutex
	tokens   map[string]models.RevokedToken
	subjects map[string]time.Time
	err      error
}

func newMemRevoked() *memRevoked {
	return &memRevoked{tokens: map[string]models.RevokedToken{}, subjects: map[string]time.Time{}}
}

func (m *memRevoked) Add(ctx context.Context, t *models.RevokedToken) (bool, error) {
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

func (m *memRevoked) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tokens[id]
	return ok, nil
}

func (m *memRevoked) RevokeSubject(ctx context.Context, userID string, before time.Time) error {
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

func (m *memRevoked) SubjectRevokedBefore(ctx context.Context, userID string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subjects[userID], nil
}

func (m *memRevoked) DeleteExpired(context.Context, time.Time, int) (int64, error) { return 0, nil }
func (m *memRevoked) DeleteSubjectsBefore(context.Context, time.Time, int) (int64, error) {
	return 0, nil
}

type fakeRepoManager struct {
	u *memUsers
	r *memRevoked
}

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (f *fakeRepoManager) Users(dbx.DBTX) users.Repository                 { return f.u }
func (f *fakeRepoManager) RevokedTokens(dbx.DBTX) revokedtokens.Repository { return f.r }

type harness struct {
	svc      *UserService
	users    *memUsers
	revoked  *memRevoked
	mock     sqlmock.Sqlmock
	verifier *auth.Verifier
	issuer   *auth.Issuer
	hasher   *passwords.Service
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	hasher, err := passwords.NewService(passwords.Config{Algorithm: passwords.AlgorithmBcrypt, BcryptCost: bcrypt.MinCost, Workers: 4})
	if err != nil {
		t.Fatalf("passwords.NewService: %v", err)
	}

	kr := &keystore.Keyring{Algorithm: keystore.AlgorithmHS256, ActiveKID: "v1", Keys: map[string][]byte{"v1": []byte("secretKey")}}
	issuer, err := auth.NewIssuer(kr, auth.Config{Issuer: "credkeeper", AccessTTL: 5 * time.Minute, RefreshTTL: 24 * time.Hour})
	if err != nil {
		t.Fatalf("auth.NewIssuer: %v", err)
	}

	um, rm := newMemUsers(), newMemRevoked()
	registry := revocation.NewStore(rm)

	verifier, err := auth.NewVerifier(kr, "credkeeper", registry)
	if err != nil {
		t.Fatalf("auth.NewVerifier: %v", err)
	}

	cfg := Config{
		Policy:              passwords.DefaultPolicy(),
		RotateRefreshTokens: true,
		RefreshTokenTTL:     24 * time.Hour,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	svc := NewUserService(Deps{
		DB:          db,
		Repos:       &fakeRepoManager{u: um, r: rm},
		Passwords:   hasher,
		Issuer:      issuer,
		Verifier:    verifier,
		Revocations: registry,
		Logger:      logging.NewJSONLogger(io.Discard, "error"),
	}, cfg)

	return &harness{svc: svc, users: um, revoked: rm, mock: mock, verifier: verifier, issuer: issuer, hasher: hasher}
}

func aliceInput() RegisterInput {
	return RegisterInput{Username: "alice", Email: "a@x.com", Password: "Secure!23", PasswordConfirm: "Secure!23"}
}

func (h *harness) register(t *testing.T, in RegisterInput) *AuthResult {
	t.Helper()
	res, err := h.svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register(%s) error: %v", in.Username, err)
	}
	return res
}
