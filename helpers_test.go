package stateformat

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/stateformat/cache"
	"github.com/MrEthical07/stateformat/protect"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testMasterKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, protect.KeySize)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Protection.ActiveKeyID = "k1"
	cfg.Protection.Keys = map[string][]byte{"k1": testMasterKey(9)}
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

// countingCache records calls so tests can assert that rejected tickets never
// reach the cache.
type countingCache struct {
	inner cache.Cache
	gets  atomic.Int64
	sets  atomic.Int64
}

func (c *countingCache) Get(ctx context.Context, key string) (string, error) {
	c.gets.Add(1)
	return c.inner.Get(ctx, key)
}

func (c *countingCache) Set(ctx context.Context, key, value string) error {
	c.sets.Add(1)
	return c.inner.Set(ctx, key, value)
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (string, error) {
	return "", cache.ErrUnavailable
}

func (failingCache) Set(context.Context, string, string) error {
	return cache.ErrUnavailable
}

type failingProvider struct{}

func (failingProvider) CreateProtector(...string) (protect.Protector, error) {
	return failingProtector{}, nil
}

type failingProtector struct{}

func (failingProtector) Protect([]byte) (string, error) {
	return "", errors.New("hsm offline")
}

func (failingProtector) Unprotect(string) ([]byte, error) {
	return nil, protect.ErrInvalidToken
}

type captureSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *captureSink) Emit(_ context.Context, e AuditEvent) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *captureSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type memoryHarness struct {
	svc   *Service
	mem   *cache.Memory
	calls *countingCache
}

func newMemoryHarness(t *testing.T) *memoryHarness {
	t.Helper()
	mem, err := cache.NewMemory(cache.MemoryOptions{TTL: time.Hour})
	if err != nil {
		t.Fatalf("new memory cache: %v", err)
	}
	calls := &countingCache{inner: mem}
	svc, err := New().WithConfig(testConfig()).WithCache(calls).Build()
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	t.Cleanup(svc.Close)
	return &memoryHarness{svc: svc, mem: mem, calls: calls}
}

func (h *memoryHarness) formatter(t *testing.T, name string) *Formatter {
	t.Helper()
	f, err := h.svc.Formatter(name)
	if err != nil {
		t.Fatalf("formatter %q: %v", name, err)
	}
	return f
}

func newRedisService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	cfg.Cache.EntryTTL = 10 * time.Minute
	svc, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	t.Cleanup(func() {
		svc.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return svc, mr
}

func sampleProperties() *Properties {
	iat := time.Date(2026, 10, 14, 9, 30, 0, 123000000, time.UTC)
	exp := iat.Add(10 * time.Minute)
	refresh := true

	p := NewProperties()
	p.SetRedirectURI("https://app.example.com/after-login")
	p.SetItem("scheme", "oidc")
	p.SetItem("nonce", "n-0S6_WzA2Mj")
	p.Parameters["prompt"] = "login"
	p.IssuedAt = &iat
	p.ExpiresAt = &exp
	p.IsPersistent = true
	p.AllowRefresh = &refresh
	return p
}

func assertSameProperties(t *testing.T, want, got *Properties) {
	t.Helper()
	if got == nil {
		t.Fatal("got nil properties")
	}
	if len(want.Items) != len(got.Items) {
		t.Fatalf("items: want %v, got %v", want.Items, got.Items)
	}
	for k, v := range want.Items {
		if got.Items[k] != v {
			t.Fatalf("item %q: want %q, got %q", k, v, got.Items[k])
		}
	}
	if len(want.Parameters) != len(got.Parameters) {
		t.Fatalf("parameters: want %v, got %v", want.Parameters, got.Parameters)
	}
	for k, v := range want.Parameters {
		if got.Parameters[k] != v {
			t.Fatalf("parameter %q: want %q, got %q", k, v, got.Parameters[k])
		}
	}
	assertSameTime(t, "issued at", want.IssuedAt, got.IssuedAt)
	assertSameTime(t, "expires at", want.ExpiresAt, got.ExpiresAt)
	if want.IsPersistent != got.IsPersistent {
		t.Fatalf("persistent: want %v, got %v", want.IsPersistent, got.IsPersistent)
	}
	if (want.AllowRefresh == nil) != (got.AllowRefresh == nil) ||
		(want.AllowRefresh != nil && *want.AllowRefresh != *got.AllowRefresh) {
		t.Fatalf("allow refresh: want %v, got %v", want.AllowRefresh, got.AllowRefresh)
	}
}

func assertSameTime(t *testing.T, label string, want, got *time.Time) {
	t.Helper()
	if (want == nil) != (got == nil) {
		t.Fatalf("%s: want %v, got %v", label, want, got)
	}
	if want != nil && !want.Equal(*got) {
		t.Fatalf("%s: want %v, got %v", label, *want, *got)
	}
}
