// Package kv is the client boundary for the external counter, sorted-set and
// cache store. Production code talks to Redis; tests and local runs can use
// the in-memory implementation, which reproduces the same ordering rules.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("kv: key not found")

// Member is one sorted-set member with its score.
type Member struct {
	Member string
	Score  float64
}

// Store exposes the primitives the application relies on. Every operation
// is atomic on the store side; callers add no locking of their own.
type Store interface {
	// SetNX stores value under key only if key does not exist.
	SetNX(ctx context.Context, key string, value int64) (bool, error)
	// Incr atomically increments the integer at key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// ZIncrBy adds amount to member's score in the set at key, creating the
	// member when absent, and returns the new score.
	ZIncrBy(ctx context.Context, key, member string, amount float64) (float64, error)
	// ZRevRangeWithScores returns members ranked start..stop (inclusive) by
	// descending score. Equal scores are ordered by member, descending.
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Member, error)

	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
