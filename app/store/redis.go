package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type (
	RedisStore struct {
		client redis.UniversalClient
		prefix string
		now    func() time.Time
	}

	RedisConfig struct {
		Address      string
		Password     string
		DB           int
		Prefix       string
		DialTimeout  time.Duration
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
	}
)

const DefaultPrefix = "quota:"

var _ Store = (*RedisStore)(nil)

func NewRedisStore(config RedisConfig) *RedisStore {
	return NewRedisStoreWithClient(redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}), config.Prefix)
}

func NewRedisStoreWithClient(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// Increment runs INCR, sets the expiry with millisecond precision when the
// counter was just created and reads the remaining PTTL back to compute the
// exact reset time.
func (r *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (Counter, error) {
	k := r.prefix + key

	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return Counter{}, fmt.Errorf("failed to increment counter for key %q: %w", k, err)
	}

	if count == 1 {
		if err = r.client.PExpire(ctx, k, window).Err(); err != nil {
			return Counter{}, fmt.Errorf("failed to set expiry for key %q: %w", k, err)
		}
	}

	ttl, err := r.client.PTTL(ctx, k).Result()
	if err != nil {
		return Counter{}, fmt.Errorf("failed to read ttl for key %q: %w", k, err)
	}

	now := r.now()

	// -1: the key has no expiry, a previous EXPIRE was lost.
	// -2: the key expired between INCR and PTTL.
	if ttl < 0 {
		if ttl == -1 {
			if err = r.client.PExpire(ctx, k, window).Err(); err != nil {
				return Counter{}, fmt.Errorf("failed to restore expiry for key %q: %w", k, err)
			}
		}

		ttl = window
	}

	return Counter{Count: count, ResetAt: now.Add(ttl)}, nil
}

func (r *RedisStore) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
