package stateformat

import (
	"maps"
	"time"
)

const redirectItem = ".redirect"

// Properties is the authentication state carried across a redirect round
// trip: arbitrary string items plus issue/expiry metadata.
//
// Properties values are owned by the caller; the formatter only serializes
// them. Items and Parameters must be valid UTF-8. IssuedAt and ExpiresAt come
// back from Unprotect as the same instant in UTC; the original Location is not
// kept.
type Properties struct {
	Items        map[string]string
	Parameters   map[string]string
	IssuedAt     *time.Time
	ExpiresAt    *time.Time
	IsPersistent bool
	AllowRefresh *bool
}

// NewProperties returns Properties with initialized maps.
func NewProperties() *Properties {
	return &Properties{
		Items:      map[string]string{},
		Parameters: map[string]string{},
	}
}

// Item returns the item stored under key.
func (p *Properties) Item(key string) (string, bool) {
	if p == nil || p.Items == nil {
		return "", false
	}
	v, ok := p.Items[key]
	return v, ok
}

// SetItem stores value under key. An empty value removes the item.
func (p *Properties) SetItem(key, value string) {
	if value == "" {
		delete(p.Items, key)
		return
	}
	if p.Items == nil {
		p.Items = map[string]string{}
	}
	p.Items[key] = value
}

// RedirectURI is where the user returns once the flow completes.
func (p *Properties) RedirectURI() string {
	v, _ := p.Item(redirectItem)
	return v
}

func (p *Properties) SetRedirectURI(uri string) {
	p.SetItem(redirectItem, uri)
}

// Expired reports whether ExpiresAt is set and not after now.
func (p *Properties) Expired(now time.Time) bool {
	return p != nil && p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// Clone returns a deep copy.
func (p *Properties) Clone() *Properties {
	if p == nil {
		return nil
	}
	out := &Properties{
		Items:        maps.Clone(p.Items),
		Parameters:   maps.Clone(p.Parameters),
		IsPersistent: p.IsPersistent,
	}
	if p.IssuedAt != nil {
		t := *p.IssuedAt
		out.IssuedAt = &t
	}
	if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		out.ExpiresAt = &t
	}
	if p.AllowRefresh != nil {
		b := *p.AllowRefresh
		out.AllowRefresh = &b
	}
	return out
}
