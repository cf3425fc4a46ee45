package cache

import (
	"context"
	"errors"
)

var (
	// ErrMiss is returned by Get when no entry exists for the key, including
	// entries that expired or were evicted.
	ErrMiss = errors.New("cache entry not found")
	// ErrUnavailable wraps backend failures (network, protocol, closed client).
	ErrUnavailable = errors.New("cache backend unavailable")
)

// Cache is the string key-value store that backs state tickets.
//
// Implementations must be safe for concurrent use. Expiry is an implementation
// concern: Set never takes a TTL, adapters apply their own configured default.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
