package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisCacheTest(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := NewRedis(rdb, RedisOptions{TTL: ttl})
	if err != nil {
		t.Fatalf("new redis cache: %v", err)
	}
	return c, mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestRedisSetGet(t *testing.T) {
	c, _, done := newRedisCacheTest(t, time.Minute)
	defer done()
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "v" {
		t.Fatalf("expected v, got %q", got)
	}
}

func TestRedisMissingKeyIsMiss(t *testing.T) {
	c, _, done := newRedisCacheTest(t, 0)
	defer done()

	if _, err := c.Get(context.Background(), "absent"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestRedisAppliesDefaultTTL(t *testing.T) {
	c, mr, done := newRedisCacheTest(t, 30*time.Second)
	defer done()
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL("k"); ttl != 30*time.Second {
		t.Fatalf("expected 30s ttl, got %v", ttl)
	}

	mr.FastForward(31 * time.Second)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after expiry, got %v", err)
	}
}

func TestRedisBackendFailureIsUnavailable(t *testing.T) {
	c, mr, done := newRedisCacheTest(t, 0)
	defer done()
	mr.Close()

	err := c.Set(context.Background(), "k", "v")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on set, got %v", err)
	}
	_, err = c.Get(context.Background(), "k")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on get, got %v", err)
	}
}

func TestRedisDeleteIdempotent(t *testing.T) {
	c, _, done := newRedisCacheTest(t, 0)
	defer done()
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := c.Delete(ctx, "k"); err != nil {
			t.Fatalf("delete %d: %v", i, err)
		}
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after delete, got %v", err)
	}
}

func TestNewRedisRejectsInvalidInput(t *testing.T) {
	if _, err := NewRedis(nil, RedisOptions{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for nil client, got %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()
	if _, err := NewRedis(rdb, RedisOptions{TTL: -time.Second}); err == nil {
		t.Fatal("expected error for negative ttl")
	}
}
