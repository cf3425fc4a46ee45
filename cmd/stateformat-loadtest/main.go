package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/stateformat"
	"github.com/MrEthical07/stateformat/cache"
	"github.com/MrEthical07/stateformat/metrics/export/prometheus"
	"github.com/MrEthical07/stateformat/protect"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

func main() {
	var (
		tickets     = flag.Int("tickets", 50000, "number of tickets to issue before the resolve phase")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "resolve operations")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		namespace   = flag.String("namespace", stateformat.DefaultNamespace, "cache key namespace")
		backend     = flag.String("backend", stateformat.BackendKeyRing, "protection backend: keyring, jwe, or jwt-hs256")
		keyB64      = flag.String("key", "", "base64 master key; random when empty")
		ttl         = flag.Duration("ttl", 15*time.Minute, "cache entry ttl")
		showMetrics = flag.Bool("metrics", false, "print prometheus metrics after the run")
		cacheKind   = flag.String("cache", "redis", "cache backend: redis or ristretto")
		cacheBytes  = flag.Int64("cache-bytes", 256<<20, "ristretto capacity in bytes")
		opsPerSec   = flag.Float64("rate", 0, "max operations per second in each phase; 0 is unlimited")
	)
	flag.Parse()

	if *tickets <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "tickets, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	key, err := loadKey(*keyB64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid key: %v\n", err)
		os.Exit(2)
	}

	cfg := stateformat.DefaultConfig()
	cfg.Namespace = *namespace
	cfg.Cache.EntryTTL = *ttl
	cfg.Protection.Backend = *backend
	cfg.Protection.ActiveKeyID = "k1"
	cfg.Protection.Keys = map[string][]byte{"k1": key}
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	builder := stateformat.New().WithConfig(cfg)
	switch *cacheKind {
	case "redis":
		client, cleanup, err := redisClient(*redisAddr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "redis: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		builder = builder.WithRedis(client)
	case "ristretto":
		rc, err := cache.NewRistretto(cache.RistrettoOptions{TTL: *ttl, MaxBytes: *cacheBytes})
		if err != nil {
			fmt.Fprintf(os.Stderr, "ristretto: %v\n", err)
			os.Exit(2)
		}
		defer rc.Close()
		builder = builder.WithCache(rc)
		fmt.Printf("using ristretto with %d bytes\n", *cacheBytes)
	default:
		fmt.Fprintf(os.Stderr, "unknown cache %q\n", *cacheKind)
		os.Exit(2)
	}

	svc, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	formatter, err := svc.Formatter("loadtest")
	if err != nil {
		fmt.Fprintf(os.Stderr, "formatter failed: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	limiter := newLimiter(*opsPerSec)
	issued := make([]string, *tickets)
	props := sampleProperties()

	issueStats := runPhase(*tickets, *concurrency, limiter, func(i int, _ *rand.Rand) error {
		ticket, err := formatter.Protect(ctx, props, "state")
		if err != nil {
			return err
		}
		issued[i] = ticket
		return nil
	})

	resolveStats := runPhase(*ops, *concurrency, limiter, func(_ int, r *rand.Rand) error {
		ticket := issued[r.Intn(len(issued))]
		if ticket == "" {
			return nil
		}
		_, err := formatter.Unprotect(ctx, ticket, "state")
		return err
	})

	rejectStats := runPhase(*ops/10+1, *concurrency, limiter, func(_ int, r *rand.Rand) error {
		ticket := issued[r.Intn(len(issued))]
		_, err := formatter.Unprotect(ctx, ticket, "nonce")
		if err == nil {
			return fmt.Errorf("cross-purpose ticket accepted")
		}
		return nil
	})

	fmt.Println("---- results ----")
	printStats("issue", issueStats)
	printStats("resolve", resolveStats)
	printStats("reject", rejectStats)

	if *showMetrics {
		fmt.Println("---- metrics ----")
		fmt.Print(prometheus.NewPrometheusExporter(svc).Render())
	}
}

func loadKey(b64 string) ([]byte, error) {
	if b64 == "" {
		return protect.GenerateKey()
	}
	return protect.KeyFromBase64(b64)
}

// newLimiter returns nil, meaning unthrottled, when perSec is not positive.
func newLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSec), max(int(perSec/100), 1))
}

// runPhase executes fn ops times across concurrency workers and records the
// latency of every call. A non-nil limiter paces the calls; waiting on it is
// not counted as latency.
func runPhase(ops, concurrency int, limiter *rate.Limiter, fn func(i int, r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				if limiter != nil {
					if err := limiter.Wait(context.Background()); err != nil {
						atomic.AddInt64(&failures, 1)
						continue
					}
				}
				t0 := time.Now()
				err := fn(i, r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func sampleProperties() *stateformat.Properties {
	now := time.Now().UTC()
	exp := now.Add(10 * time.Minute)
	p := stateformat.NewProperties()
	p.SetRedirectURI("https://app.example.com/after-login")
	p.SetItem("nonce", "n-0S6_WzA2Mj")
	p.SetItem("code_verifier", "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")
	p.Parameters["prompt"] = "login"
	p.IssuedAt = &now
	p.ExpiresAt = &exp
	return p
}

// redisClient connects to addr, REDIS_ADDR, or a fresh miniredis, in that
// order.
func redisClient(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}
