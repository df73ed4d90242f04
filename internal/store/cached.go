package store

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/voyagen/tvplayer/internal/cache"
)

// DefaultCacheTTL bounds how long a cached record may outlive an out-of-band write.
const DefaultCacheTTL = 5 * time.Minute

// CachedStore wraps a Store with a Redis read-through cache.
// Reads are served from cache when possible (including cached misses);
// writes go to the inner store first and then invalidate the cache key.
type CachedStore struct {
	inner Store
	cache *cache.Redis
	ttl   time.Duration
	log   logrus.FieldLogger
}

// cachedEntry is what the cache holds for one key. Missing records a known-absent key.
type cachedEntry struct {
	Value   string `json:"value"`
	Missing bool   `json:"missing,omitempty"`
}

// NewCachedStore creates a CachedStore that wraps inner with Redis caching.
func NewCachedStore(inner Store, c *cache.Redis, ttl time.Duration, log logrus.FieldLogger) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{inner: inner, cache: c, ttl: ttl, log: log}
}

func (c *CachedStore) Namespace() string { return c.inner.Namespace() }

func (c *CachedStore) Get(ctx context.Context, key string) (string, error) {
	ck := c.key(key)
	if e, err := cache.Get[cachedEntry](ctx, c.cache, ck); err == nil {
		if e.Missing {
			return "", ErrNotFound
		}
		return e.Value, nil
	}
	v, err := c.inner.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		c.set(ctx, ck, cachedEntry{Missing: true})
		return "", err
	case err != nil:
		return "", err
	}
	c.set(ctx, ck, cachedEntry{Value: v})
	return v, nil
}

func (c *CachedStore) Put(ctx context.Context, key, value string) error {
	if err := c.inner.Put(ctx, key, value); err != nil {
		return err
	}
	c.invalidate(ctx, c.key(key))
	return nil
}

func (c *CachedStore) Delete(ctx context.Context, key string) error {
	if err := c.inner.Delete(ctx, key); err != nil {
		return err
	}
	c.invalidate(ctx, c.key(key))
	return nil
}

func (c *CachedStore) Clear(ctx context.Context) error {
	if err := c.inner.Clear(ctx); err != nil {
		return err
	}
	pattern := c.key("*")
	if err := cache.DelPattern(ctx, c.cache, pattern); err != nil {
		c.log.WithError(err).Warnf("cache: del pattern %s", pattern)
	}
	return nil
}

// --- helpers ---

func (c *CachedStore) key(key string) string {
	return cache.Key("kvcache:"+c.inner.Namespace(), key)
}

func (c *CachedStore) set(ctx context.Context, key string, e cachedEntry) {
	if err := cache.Set(ctx, c.cache, key, e, c.ttl); err != nil {
		c.log.WithError(err).Warnf("cache: set %s", key)
	}
}

// invalidate deletes exact cache keys, logging any errors.
func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := cache.Del(ctx, c.cache, keys...); err != nil {
		c.log.WithError(err).Warnf("cache: del %v", keys)
	}
}
