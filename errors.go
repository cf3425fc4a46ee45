package stateformat

import "errors"

var (
	// ErrInvalidTicket is returned when a ticket cannot be authenticated under
	// the scheme and purpose supplied: tampering, a different purpose, a
	// different scheme, and garbage input are indistinguishable.
	ErrInvalidTicket = errors.New("invalid state ticket")
	// ErrStateNotFound is returned for an authentic ticket whose cache entry is
	// gone, usually because it expired. Callers should treat it like a timed
	// out login.
	ErrStateNotFound = errors.New("state not found")
	// ErrSerialization covers payloads that cannot be encoded and stored values
	// that cannot be decoded.
	ErrSerialization = errors.New("state serialization failed")
	// ErrPayloadTooLarge is wrapped together with ErrSerialization when the
	// encoded payload exceeds Config.Cache.MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("state payload too large")
	// ErrCacheUnavailable is returned when the cache is missing or failing.
	ErrCacheUnavailable = errors.New("state cache unavailable")
	// ErrProtectionUnavailable is returned when no protection provider can be
	// built.
	ErrProtectionUnavailable = errors.New("state protection unavailable")
	// ErrProtectionFailed is returned when sealing a reference fails.
	ErrProtectionFailed = errors.New("state protection failed")
	// ErrFormatNotBound is returned by a Marker that was never replaced by a
	// formatter.
	ErrFormatNotBound = errors.New("state data format not bound")
	// ErrInvalidName is returned for blank scheme names.
	ErrInvalidName = errors.New("invalid scheme name")
	// ErrBuilderUsed is returned when Build is called twice.
	ErrBuilderUsed = errors.New("builder already used")
)
