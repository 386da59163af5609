// Package cache is a JSON read-through cache over the kv store. Cache
// failures are soft: they are logged and counted, and the caller's loader
// answers instead.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/sundayezeilo/shortlinks/internal/kv"
)

// Observer is notified about cache outcomes. metrics.Recorder satisfies it.
type Observer interface {
	CacheHit(name string)
	CacheMiss(name string)
	CacheError(name, op string)
}

type nopObserver struct{}

func (nopObserver) CacheHit(string)           {}
func (nopObserver) CacheMiss(string)          {}
func (nopObserver) CacheError(string, string) {}

// Cache stores serialized results with a TTL.
type Cache struct {
	store    kv.Store
	logger   *slog.Logger
	observer Observer
}

// Config holds configuration for the cache.
type Config struct {
	Logger   *slog.Logger
	Observer Observer
}

// New returns a Cache backed by store.
func New(store kv.Store, config *Config) *Cache {
	if config == nil {
		config = &Config{}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var observer Observer = nopObserver{}
	if config.Observer != nil {
		observer = config.Observer
	}

	return &Cache{
		store:    store,
		logger:   logger,
		observer: observer,
	}
}

// Fetch returns the cached value under key, or calls load, stores its result
// for ttl and returns it. name labels the entry family in logs and metrics.
//
// A cache read or write error never fails the call. Concurrent misses for the
// same key may both run load and both write; the last write wins.
func Fetch[T any](ctx context.Context, c *Cache, name, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if v, ok := get[T](ctx, c, name, key); ok {
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	c.set(ctx, name, key, v, ttl)
	return v, nil
}

func get[T any](ctx context.Context, c *Cache, name, key string) (T, bool) {
	var zero T

	b, err := c.store.Get(ctx, key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		c.observer.CacheMiss(name)
		return zero, false
	case err != nil:
		c.observer.CacheError(name, "get")
		c.logger.WarnContext(ctx, "cache read failed, using source",
			"cache", name,
			"key", key,
			"error", err.Error(),
		)
		return zero, false
	}

	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		c.observer.CacheError(name, "decode")
		c.logger.WarnContext(ctx, "discarding undecodable cache entry",
			"cache", name,
			"key", key,
			"error", err.Error(),
		)
		return zero, false
	}

	c.observer.CacheHit(name)
	return v, true
}

func (c *Cache) set(ctx context.Context, name, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		c.observer.CacheError(name, "encode")
		c.logger.ErrorContext(ctx, "failed to encode cache entry",
			"cache", name,
			"key", key,
			"error", err.Error(),
		)
		return
	}

	if err := c.store.Set(ctx, key, b, ttl); err != nil {
		c.observer.CacheError(name, "set")
		c.logger.WarnContext(ctx, "cache write failed",
			"cache", name,
			"key", key,
			"error", err.Error(),
		)
	}
}

// Invalidate deletes keys. A failure is logged and reported but not
// returned: the entry then lives until its TTL.
func (c *Cache) Invalidate(ctx context.Context, name string, keys ...string) bool {
	if _, err := c.store.Del(ctx, keys...); err != nil {
		c.observer.CacheError(name, "delete")
		c.logger.WarnContext(ctx, "cache invalidation failed",
			"cache", name,
			"keys", keys,
			"error", err.Error(),
		)
		return false
	}
	return true
}

// Key derives a cache key from a prefix and a parameter set. Parameters are
// sorted and escaped, so equal sets always give the same key and distinct
// sets never collide.
func Key(prefix string, params url.Values) string {
	if len(params) == 0 {
		return prefix
	}
	return prefix + "?" + params.Encode()
}
