package stateformat

import (
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/stateformat/cache"
	"github.com/MrEthical07/stateformat/protect"
)

// Service owns the shared collaborators and hands out one Formatter per scheme
// name. Methods are safe for concurrent use.
type Service struct {
	config     Config
	cache      cache.Cache
	provider   protect.Provider
	serializer Serializer
	metrics    *Metrics
	audit      *auditDispatcher
	logger     *slog.Logger
	now        func() time.Time

	mu         sync.Mutex
	formatters map[string]*Formatter
	closed     bool
}

// Formatter returns the formatter bound to name, creating it on first use.
// Every call with the same name returns the same instance.
func (s *Service) Formatter(name string) (*Formatter, error) {
	if err := validSchemeName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.formatters[name]; ok {
		return f, nil
	}
	f := &Formatter{
		name:       name,
		namespace:  s.config.Namespace,
		cache:      s.cache,
		protection: s.provider,
		serializer: s.serializer,
		maxPayload: s.config.Cache.MaxPayloadSize,
		metrics:    s.metrics,
		audit:      s.audit,
		logger:     s.logger,
		now:        s.now,
	}
	s.formatters[name] = f
	return f, nil
}

// StateDataFormat registers this service's Initializer on schemes (once) and
// returns a Marker for name. Assign the marker to SchemeOptions.StateDataFormat
// inside a Configure callback; the next Get for name replaces it.
func (s *Service) StateDataFormat(schemes *Schemes, name string) (Marker, error) {
	if err := validSchemeName(name); err != nil {
		return Marker{}, err
	}
	if schemes != nil {
		schemes.addInitializerOnce(s)
	}
	return Marker{Name: name}, nil
}

// Initializer returns the PostConfigurer binding markers to this service.
func (s *Service) Initializer() *Initializer {
	return &Initializer{service: s}
}

// Config returns a copy of the effective configuration.
func (s *Service) Config() Config {
	return cloneConfig(s.config)
}

// MetricsSnapshot copies the current counters and latency buckets.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// AuditDropped reports events dropped because the audit buffer was full.
func (s *Service) AuditDropped() uint64 {
	return s.audit.Dropped()
}

// Close flushes pending audit events. The cache and provider are not owned by
// the service and stay open.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.audit.Close()
}
