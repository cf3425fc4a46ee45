package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis adapter.
type RedisOptions struct {
	// TTL applied to every Set. Zero stores entries without expiry.
	TTL time.Duration
}

// Redis stores entries in Redis through a go-redis universal client, so a
// single node, a sentinel group, or a cluster can back it.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedis wraps client. The client stays owned by the caller.
func NewRedis(client redis.UniversalClient, opts RedisOptions) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil redis client", ErrUnavailable)
	}
	if opts.TTL < 0 {
		return nil, errors.New("redis cache ttl must be >= 0")
	}
	return &Redis{client: client, ttl: opts.TTL}, nil
}

// TTL reports the expiry applied to new entries.
func (r *Redis) TTL() time.Duration {
	return r.ttl
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
