package revocation

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, cfg CacheConfig) (*Cache, *memRepo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := newMemRepo()
	return NewCache(NewStore(repo), rdb, cfg, quietLogger()), repo, mr
}

func TestCache_BlacklistCachesUntilExpiry(t *testing.T) {
	ctx := context.Background()
	c, repo, mr := newTestCache(t, CacheConfig{SubjectTTL: time.Hour})

	tok := models.RevokedToken{TokenID: "jti-1", UserID: "u1", ExpiresAt: time.Now().Add(10 * time.Minute)}
	added, err := c.Blacklist(ctx, tok)
	require.NoError(t, err)
	assert.True(t, added)

	v, err := mr.Get(tokenKey("jti-1"))
	require.NoError(t, err)
	assert.Equal(t, valRevoked, v)
	ttl := mr.TTL(tokenKey("jti-1"))
	assert.True(t, ttl > 9*time.Minute && ttl <= 10*time.Minute, ttl)

	ok, err := c.IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, repo.existsCalls, "served from redis")

	added, err = c.Blacklist(ctx, tok)
	require.NoError(t, err)
	assert.False(t, added)
}

func TestCache_ExpiredTokenNotCached(t *testing.T) {
	c, _, mr := newTestCache(t, CacheConfig{})

	_, err := c.Blacklist(context.Background(), models.RevokedToken{TokenID: "old", ExpiresAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	assert.False(t, mr.Exists(tokenKey("old")))
}

func TestCache_MissFallsThroughWithoutNegativeCaching(t *testing.T) {
	ctx := context.Background()
	c, repo, mr := newTestCache(t, CacheConfig{})

	for i := 0; i < 2; i++ {
		ok, err := c.IsBlacklisted(ctx, "fresh")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 2, repo.existsCalls)
	assert.False(t, mr.Exists(tokenKey("fresh")))
}

func TestCache_NegativeTTL(t *testing.T) {
	ctx := context.Background()
	c, repo, mr := newTestCache(t, CacheConfig{NegativeTTL: 30 * time.Second})

	ok, err := c.IsBlacklisted(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.IsBlacklisted(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, repo.existsCalls)

	// A blacklist write replaces the negative entry immediately.
	_, err = c.Blacklist(ctx, models.RevokedToken{TokenID: "fresh", ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	ok, err = c.IsBlacklisted(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)

	// The negative entry ages out on its own.
	_, _ = c.IsBlacklisted(ctx, "other")
	mr.FastForward(31 * time.Second)
	assert.False(t, mr.Exists(tokenKey("other")))
}

func TestCache_SubjectWriteThrough(t *testing.T) {
	ctx := context.Background()
	c, repo, mr := newTestCache(t, CacheConfig{SubjectTTL: time.Hour})

	later := time.Now()
	require.NoError(t, c.RevokeSubject(ctx, "u1", later))
	require.NoError(t, c.RevokeSubject(ctx, "u1", later.Add(-time.Minute)))

	v, err := mr.Get(subjectKey("u1"))
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(later.UnixNano(), 10), v, "older cutoff must not win")

	calls := repo.subjectCalls
	got, err := c.SubjectRevokedAt(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, later.Equal(got))
	assert.Equal(t, calls, repo.subjectCalls)
}

func TestCache_SubjectReadThrough(t *testing.T) {
	ctx := context.Background()
	c, repo, mr := newTestCache(t, CacheConfig{SubjectTTL: time.Hour})

	at := time.Now().Add(-time.Minute)
	repo.subjects["u2"] = at

	got, err := c.SubjectRevokedAt(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, at.Equal(got))
	assert.True(t, mr.Exists(subjectKey("u2")))

	got, err = c.SubjectRevokedAt(ctx, "nobody")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
	assert.False(t, mr.Exists(subjectKey("nobody")))
}

func TestCache_RedisDownFallsBack(t *testing.T) {
	ctx := context.Background()
	c, repo, mr := newTestCache(t, CacheConfig{SubjectTTL: time.Hour})

	repo.tokens["jti-db"] = models.RevokedToken{TokenID: "jti-db"}
	repo.subjects["u1"] = time.Now()
	mr.Close()

	ok, err := c.IsBlacklisted(ctx, "jti-db")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := c.SubjectRevokedAt(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.IsZero())

	added, err := c.Blacklist(ctx, models.RevokedToken{TokenID: "jti-new", ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.True(t, added)
	assert.Contains(t, repo.tokens, "jti-new")

	assert.NoError(t, c.RevokeSubject(ctx, "u1", time.Now()))
}

// setFailingClient is a Redis client whose writes fail while reads and
// deletes still work.
type setFailingClient struct {
	*redis.Client
}

func (setFailingClient) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key)
	cmd.SetErr(errors.New("READONLY You can't write against a read only replica."))
	return cmd
}

func TestCache_FailedWriteDropsStaleEntry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := newMemRepo()
	c := NewCache(NewStore(repo), setFailingClient{rdb}, CacheConfig{SubjectTTL: time.Hour, NegativeTTL: time.Minute}, quietLogger())

	old := time.Now().Add(-time.Hour)
	require.NoError(t, mr.Set(subjectKey("u1"), strconv.FormatInt(old.UnixNano(), 10)))
	require.NoError(t, mr.Set(tokenKey("jti-1"), valNotRevoked))

	now := time.Now()
	require.NoError(t, c.RevokeSubject(ctx, "u1", now))
	assert.False(t, mr.Exists(subjectKey("u1")))

	got, err := c.SubjectRevokedAt(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, now.Equal(got), "cutoff comes from the store, not the stale cache")

	_, err = c.Blacklist(ctx, models.RevokedToken{TokenID: "jti-1", ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)
	assert.False(t, mr.Exists(tokenKey("jti-1")))

	ok, err := c.IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCache_StoreErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	c, repo, _ := newTestCache(t, CacheConfig{})
	repo.err = errors.New("db down")

	_, err := c.IsBlacklisted(ctx, "x")
	assert.Error(t, err)
	_, err = c.Blacklist(ctx, models.RevokedToken{TokenID: "x", ExpiresAt: time.Now().Add(time.Hour)})
	assert.Error(t, err)
	_, err = c.SubjectRevokedAt(ctx, "u")
	assert.Error(t, err)
	assert.Error(t, c.RevokeSubject(ctx, "u", time.Now()))
}
