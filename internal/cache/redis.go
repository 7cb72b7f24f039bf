package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces zoombulk keys in a shared Redis database.
const DefaultRedisPrefix = "zoombulk:"

// RedisStore keeps entries in Redis. Redis expiry mirrors the entry TTL, but
// the stored_at check still applies so both sides agree on staleness.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	opts   options
}

// NewRedisStore wraps an existing Redis client. An empty prefix uses
// DefaultRedisPrefix.
func NewRedisStore(client redis.Cmdable, prefix string, opts ...Option) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		opts:   newOptions(opts),
	}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string, dst any) bool {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false
		}
		return s.opts.miss(key, err)
	}

	if err := decodeEntry(data, s.opts.now(), dst); err != nil {
		return s.opts.miss(key, err)
	}
	return true
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := encodeEntry(key, value, ttl, s.opts.now())
	if err != nil {
		return err
	}

	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry in redis: %w", err)
	}
	return nil
}
