package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	// KeyPrefix is prepended to every key, e.g. "shortlinks:".
	KeyPrefix string
}

type redisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis returns a Store backed by client. The store owns the client and
// closes it on Close.
func NewRedis(client redis.UniversalClient, config *RedisConfig) Store {
	if config == nil {
		config = &RedisConfig{}
	}
	return &redisStore{
		client: client,
		prefix: config.KeyPrefix,
	}
}

func (s *redisStore) key(k string) string { return s.prefix + k }

func (s *redisStore) SetNX(ctx context.Context, key string, value int64) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return ok, nil
}

func (s *redisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return n, nil
}

func (s *redisStore) ZIncrBy(ctx context.Context, key, member string, amount float64) (float64, error) {
	score, err := s.client.ZIncrBy(ctx, s.key(key), amount, member).Result()
	if err != nil {
		return 0, fmt.Errorf("zincrby %s: %w", key, err)
	}
	return score, nil
}

func (s *redisStore) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Member, error) {
	zs, err := s.client.ZRevRangeWithScores(ctx, s.key(key), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange %s: %w", key, err)
	}

	members := make([]Member, 0, len(zs))
	for _, z := range zs {
		name, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("zrevrange %s: unexpected member type %T", key, z.Member)
		}
		members = append(members, Member{Member: name, Score: z.Score})
	}
	return members, nil
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return b, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.key(k)
	}
	n, err := s.client.Del(ctx, prefixed...).Result()
	if err != nil {
		return 0, fmt.Errorf("del: %w", err)
	}
	return n, nil
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
