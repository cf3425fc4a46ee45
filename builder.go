package stateformat

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/stateformat/cache"
	"github.com/MrEthical07/stateformat/protect"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a Service from a Config and injected collaborators.
//
// Builder instances are single use: Build succeeds at most once.
type Builder struct {
	config Config

	redis      redis.UniversalClient
	cache      cache.Cache
	provider   protect.Provider
	serializer Serializer
	auditSink  AuditSink
	logger     *slog.Logger
	now        func() time.Time

	built bool
}

// New starts a Builder from DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs state with Redis using Config.Cache.EntryTTL. WithCache takes
// precedence when both are set.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCache injects any cache.Cache implementation.
func (b *Builder) WithCache(c cache.Cache) *Builder {
	b.cache = c
	return b
}

// WithProtectionProvider injects a provider instead of building one from
// Config.Protection.
func (b *Builder) WithProtectionProvider(p protect.Provider) *Builder {
	b.provider = p
	return b
}

// WithSerializer overrides the default JSONSerializer.
func (b *Builder) WithSerializer(s Serializer) *Builder {
	b.serializer = s
	return b
}

// WithAuditSink sets where audit events go when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Without it, logs are discarded.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithMetricsEnabled overrides Config.Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms overrides Config.Metrics.EnableLatencyHistograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides time.Now for audit timestamps and latency measurement.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires every collaborator. A missing
// cache or protection backend fails here rather than on the first request.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.cache
	if store == nil && b.redis != nil {
		r, err := cache.NewRedis(b.redis, cache.RedisOptions{TTL: cfg.Cache.EntryTTL})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
		}
		store = r
	}
	if store == nil {
		return nil, fmt.Errorf("%w: no cache configured", ErrCacheUnavailable)
	}

	provider := b.provider
	if provider == nil {
		p, err := cfg.protectionProvider()
		if err != nil {
			return nil, err
		}
		provider = p
	}

	serializer := b.serializer
	if serializer == nil {
		serializer = JSONSerializer{}
	}
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	b.built = true
	return &Service{
		config:     cfg,
		cache:      store,
		provider:   provider,
		serializer: serializer,
		metrics:    NewMetrics(cfg.Metrics),
		audit:      newAuditDispatcher(cfg.Audit, b.auditSink),
		logger:     logger,
		now:        now,
		formatters: map[string]*Formatter{},
	}, nil
}
