package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// RistrettoOptions configures the bounded in-process adapter.
type RistrettoOptions struct {
	// TTL applied to every Set. Zero keeps entries until evicted.
	TTL time.Duration
	// MaxBytes bounds the summed length of stored values.
	MaxBytes int64
	// NumCounters tracks admission frequency. Ten times the expected entry
	// count is a good start; zero derives it from MaxBytes.
	NumCounters int64
}

// Ristretto is a size-bounded cache for single-instance deployments. Unlike
// Memory it evicts under pressure, so a resolver may see ErrMiss for a state
// that was never expired.
type Ristretto struct {
	c   *ristretto.Cache[string, string]
	ttl time.Duration
}

// NewRistretto returns an empty bounded cache.
func NewRistretto(opts RistrettoOptions) (*Ristretto, error) {
	if opts.TTL < 0 {
		return nil, errors.New("ristretto cache ttl must be >= 0")
	}
	if opts.MaxBytes <= 0 {
		return nil, errors.New("ristretto cache MaxBytes must be > 0")
	}
	counters := opts.NumCounters
	if counters <= 0 {
		// Assume roughly 512 byte payloads.
		counters = max(opts.MaxBytes/512*10, 1000)
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: counters,
		MaxCost:     opts.MaxBytes,
		BufferItems: 64,
		// Cost is the value length only.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("init ristretto cache: %w", err)
	}
	return &Ristretto{c: c, ttl: opts.TTL}, nil
}

func (r *Ristretto) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, ok := r.c.Get(key)
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

// Set stores value and waits until it is visible to Get. A write refused by
// the admission policy is reported as ErrUnavailable, since the state would be
// lost before its ticket is ever presented.
func (r *Ristretto) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !r.c.SetWithTTL(key, value, int64(len(value)), r.ttl) {
		return fmt.Errorf("%w: write dropped by admission policy", ErrUnavailable)
	}
	r.c.Wait()
	if _, ok := r.c.Get(key); !ok {
		return fmt.Errorf("%w: write rejected by admission policy", ErrUnavailable)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (r *Ristretto) Delete(_ context.Context, key string) error {
	r.c.Del(key)
	return nil
}

// Close stops the cache's background goroutines.
func (r *Ristretto) Close() {
	r.c.Close()
}
