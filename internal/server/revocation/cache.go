package revocation

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "credkeeper:revocation:"
	valRevoked    = "1"
	valNotRevoked = "0"
)

// CacheConfig tunes the Redis layer.
type CacheConfig struct {
	// NegativeTTL caches "not revoked" answers. Zero disables it; a positive
	// value means another process's revocation may go unseen for that long
	// if its cache write failed.
	NegativeTTL time.Duration
	// SubjectTTL bounds how long a subject cutoff is cached. It should be
	// the refresh token lifetime, after which the cutoff is moot.
	SubjectTTL time.Duration
}

// Cache is a read-through Redis cache in front of a Registry. Positive
// answers are cached until the token would have expired anyway and cutoffs
// are written through, so a revocation is visible to every process sharing
// the Redis instance once the call returns. Redis failures degrade to the
// inner registry.
type Cache struct {
	next Registry
	rdb  redis.Cmdable
	cfg  CacheConfig
	log  logging.Logger
	now  func() time.Time
}

func NewCache(next Registry, rdb redis.Cmdable, cfg CacheConfig, log logging.Logger) *Cache {
	return &Cache{
		next: next,
		rdb:  rdb,
		cfg:  cfg,
		log:  log.With("module", "revocation_cache"),
		now:  time.Now,
	}
}

func tokenKey(id string) string   { return keyPrefix + "jti:" + id }
func subjectKey(id string) string { return keyPrefix + "sub:" + id }

func (c *Cache) Blacklist(ctx context.Context, token models.RevokedToken) (bool, error) {
	added, err := c.next.Blacklist(ctx, token)
	if err != nil {
		return false, err
	}

	ttl := token.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		// Expired tokens fail verification before the blacklist is read.
		c.drop(ctx, tokenKey(token.TokenID))
		return added, nil
	}

	if err := c.rdb.Set(ctx, tokenKey(token.TokenID), valRevoked, ttl).Err(); err != nil {
		c.warn(ctx, "set", err)
		c.drop(ctx, tokenKey(token.TokenID))
	}
	return added, nil
}

func (c *Cache) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	v, err := c.rdb.Get(ctx, tokenKey(tokenID)).Result()
	switch {
	case err == nil:
		return v == valRevoked, nil
	case !errors.Is(err, redis.Nil):
		c.warn(ctx, "get", err)
	}

	revoked, err := c.next.IsBlacklisted(ctx, tokenID)
	if err != nil {
		return false, err
	}

	if !revoked && c.cfg.NegativeTTL > 0 {
		// SetNX so a concurrent Blacklist write is never overwritten.
		if err := c.rdb.SetNX(ctx, tokenKey(tokenID), valNotRevoked, c.cfg.NegativeTTL).Err(); err != nil {
			c.warn(ctx, "setnx", err)
		}
	}
	return revoked, nil
}

func (c *Cache) RevokeSubject(ctx context.Context, userID string, at time.Time) error {
	if err := c.next.RevokeSubject(ctx, userID, at); err != nil {
		return err
	}

	// The store keeps the latest cutoff; cache what it holds, not at.
	cutoff, err := c.next.SubjectRevokedAt(ctx, userID)
	if err != nil {
		c.log.Warn(ctx, "could not reload subject cutoff, dropping cache entry", "error", err)
		c.drop(ctx, subjectKey(userID))
		return nil
	}

	// An older cutoff left in Redis would hide this revocation.
	if err := c.storeSubject(ctx, userID, cutoff, c.cfg.SubjectTTL); err != nil {
		c.drop(ctx, subjectKey(userID))
	}
	return nil
}

func (c *Cache) SubjectRevokedAt(ctx context.Context, userID string) (time.Time, error) {
	v, err := c.rdb.Get(ctx, subjectKey(userID)).Result()
	switch {
	case err == nil:
		if n, perr := strconv.ParseInt(v, 10, 64); perr == nil {
			if n == 0 {
				return time.Time{}, nil
			}
			return time.Unix(0, n), nil
		}
	case !errors.Is(err, redis.Nil):
		c.warn(ctx, "get", err)
	}

	cutoff, err := c.next.SubjectRevokedAt(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}

	if !cutoff.IsZero() {
		_ = c.storeSubject(ctx, userID, cutoff, c.cfg.SubjectTTL)
	} else if c.cfg.NegativeTTL > 0 {
		if err := c.rdb.SetNX(ctx, subjectKey(userID), valNotRevoked, c.cfg.NegativeTTL).Err(); err != nil {
			c.warn(ctx, "setnx", err)
		}
	}
	return cutoff, nil
}

func (c *Cache) storeSubject(ctx context.Context, userID string, cutoff time.Time, ttl time.Duration) error {
	v := strconv.FormatInt(cutoff.UnixNano(), 10)
	if err := c.rdb.Set(ctx, subjectKey(userID), v, ttl).Err(); err != nil {
		c.warn(ctx, "set", err)
		return err
	}
	return nil
}

// drop removes a key whose fresh value could not be written so reads fall
// through to the store.
func (c *Cache) drop(ctx context.Context, key string) {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		c.warn(ctx, "del", err)
	}
}

func (c *Cache) warn(ctx context.Context, op string, err error) {
	c.log.Warn(ctx, "redis unavailable, using store", "op", op, "error", err)
}
