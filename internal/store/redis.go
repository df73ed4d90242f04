package store

import (
	"context"
	"errors"

	"github.com/voyagen/tvplayer/internal/cache"
)

// Redis is a Store that keeps each key as a plain Redis string ("ns:key").
type Redis struct {
	namespace string
	cache     *cache.Redis
}

// NewRedis returns a Redis-backed store for namespace. The caller owns c.
func NewRedis(c *cache.Redis, namespace string) *Redis {
	return &Redis{namespace: namespace, cache: c}
}

func (r *Redis) Namespace() string { return r.namespace }

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.cache.GetString(ctx, cache.Key(r.namespace, key))
	if errors.Is(err, cache.ErrMiss) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *Redis) Put(ctx context.Context, key, value string) error {
	return r.cache.SetString(ctx, cache.Key(r.namespace, key), value, 0)
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return cache.Del(ctx, r.cache, cache.Key(r.namespace, key))
}

func (r *Redis) Clear(ctx context.Context) error {
	return cache.DelPattern(ctx, r.cache, cache.Key(r.namespace, "*"))
}
