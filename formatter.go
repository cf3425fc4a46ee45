package stateformat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/stateformat/cache"
	"github.com/MrEthical07/stateformat/protect"
)

// DataFormat protects and unprotects Properties for one scheme.
//
// *Formatter and Marker implement it; callers may plug their own.
type DataFormat interface {
	Protect(ctx context.Context, props *Properties, purpose string) (string, error)
	Unprotect(ctx context.Context, ticket, purpose string) (*Properties, error)
}

// Formatter is the cache-backed DataFormat bound to one scheme name.
//
// A Formatter holds no per-call state and is safe for concurrent use.
type Formatter struct {
	name       string
	namespace  string
	cache      cache.Cache
	protection protect.Provider
	serializer Serializer
	maxPayload int
	metrics    *Metrics
	audit      *auditDispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// Name is the scheme this formatter was bound to.
func (f *Formatter) Name() string {
	return f.name
}

// Protect stores props under a fresh reference and returns the sealed
// reference.
//
// If sealing fails after the cache write, the entry is left to expire; no
// compensating delete is attempted.
func (f *Formatter) Protect(ctx context.Context, props *Properties, purpose string) (string, error) {
	start := f.now()
	ticket, err := f.protect(ctx, props, purpose)
	f.metrics.Observe(MetricProtectLatency, f.now().Sub(start))

	if err != nil {
		f.metrics.Inc(MetricProtectFailure)
		f.emitAudit(ctx, "state_issue_failed", purpose, err)
		return "", err
	}
	f.metrics.Inc(MetricProtectSuccess)
	f.emitAudit(ctx, "state_issued", purpose, nil)
	return ticket, nil
}

func (f *Formatter) protect(ctx context.Context, props *Properties, purpose string) (string, error) {
	if props == nil {
		return "", fmt.Errorf("%w: nil properties", ErrSerialization)
	}

	ref, err := newReference()
	if err != nil {
		return "", fmt.Errorf("%w: generate reference: %v", ErrProtectionFailed, err)
	}

	payload, err := f.serializer.Serialize(props)
	if err != nil {
		f.logger.Error("state serialization failed", "scheme", f.name, "error", err)
		return "", fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if f.maxPayload > 0 && len(payload) > f.maxPayload {
		return "", fmt.Errorf("%w: %w: %d bytes exceeds %d", ErrSerialization, ErrPayloadTooLarge, len(payload), f.maxPayload)
	}

	if err := f.cache.Set(ctx, cacheKey(f.namespace, purpose, ref), payload); err != nil {
		f.metrics.Inc(MetricCacheFailure)
		f.logger.Error("state cache write failed", "scheme", f.name, "error", err)
		return "", fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	protector, err := f.protection.CreateProtector(protectionPurposes(f.namespace, f.name, purpose)...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProtectionFailed, err)
	}
	ticket, err := protector.Protect([]byte(ref))
	if err != nil {
		f.logger.Error("state reference protection failed", "scheme", f.name, "error", err)
		return "", fmt.Errorf("%w: %v", ErrProtectionFailed, err)
	}
	return ticket, nil
}

// Unprotect resolves ticket back to the Properties stored for it.
//
// Errors are classified with errors.Is: ErrInvalidTicket when the ticket does
// not authenticate (no cache lookup happens), ErrStateNotFound when the entry
// is gone, ErrSerialization when the stored value cannot be decoded, and
// ErrCacheUnavailable for backend failures.
func (f *Formatter) Unprotect(ctx context.Context, ticket, purpose string) (*Properties, error) {
	start := f.now()
	props, err := f.unprotect(ctx, ticket, purpose)
	f.metrics.Observe(MetricUnprotectLatency, f.now().Sub(start))

	switch {
	case err == nil:
		f.metrics.Inc(MetricUnprotectSuccess)
		f.emitAudit(ctx, "state_resolved", purpose, nil)
	case errors.Is(err, ErrInvalidTicket):
		f.metrics.Inc(MetricUnprotectInvalid)
		f.emitAudit(ctx, "state_invalid", purpose, err)
	case errors.Is(err, ErrStateNotFound):
		f.metrics.Inc(MetricUnprotectNotFound)
		f.emitAudit(ctx, "state_not_found", purpose, err)
	case errors.Is(err, ErrSerialization):
		f.metrics.Inc(MetricUnprotectCorrupt)
		f.emitAudit(ctx, "state_corrupt", purpose, err)
	default:
		f.emitAudit(ctx, "state_resolve_failed", purpose, err)
	}
	return props, err
}

func (f *Formatter) unprotect(ctx context.Context, ticket, purpose string) (*Properties, error) {
	if ticket == "" {
		return nil, fmt.Errorf("%w: empty ticket", ErrInvalidTicket)
	}

	protector, err := f.protection.CreateProtector(protectionPurposes(f.namespace, f.name, purpose)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtectionUnavailable, err)
	}
	raw, err := protector.Unprotect(ticket)
	if err != nil {
		f.logger.Debug("state ticket rejected", "scheme", f.name, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	ref, err := parseReference(string(raw))
	if err != nil {
		f.logger.Debug("state ticket carried malformed reference", "scheme", f.name)
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}

	payload, err := f.cache.Get(ctx, cacheKey(f.namespace, purpose, ref))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			f.logger.Debug("state entry not found", "scheme", f.name)
			return nil, ErrStateNotFound
		}
		f.metrics.Inc(MetricCacheFailure)
		f.logger.Error("state cache read failed", "scheme", f.name, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	props, err := f.serializer.Deserialize(payload)
	if err != nil {
		f.logger.Error("stored state could not be decoded", "scheme", f.name, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return props, nil
}

func (f *Formatter) emitAudit(ctx context.Context, eventType, purpose string, err error) {
	if f.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: f.now(),
		EventType: eventType,
		Scheme:    f.name,
		Purpose:   purpose,
		Success:   err == nil,
	}
	if err != nil {
		event.Error = err.Error()
	}
	f.audit.Emit(ctx, event)
}
