package stateformat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/stateformat/protect"
)

// Config defines a public type used by stateformat APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	// Namespace prefixes cache keys and heads every protection purpose chain.
	Namespace  string
	Cache      CacheConfig
	Protection ProtectionConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig controls the cache adapter the Builder creates from WithRedis
// and the payload limit applied by every Formatter.
type CacheConfig struct {
	// EntryTTL is the expiry of stored state. Zero stores without expiry.
	EntryTTL time.Duration
	// MaxPayloadSize rejects serialized payloads larger than this many bytes.
	// Zero disables the limit.
	MaxPayloadSize int
}

/*
====================================
PROTECTION CONFIG
====================================
*/

// Protection backends accepted by ProtectionConfig.Backend.
const (
	BackendKeyRing = "keyring"
	BackendJWE     = "jwe"
	BackendSigned  = "jwt-hs256"
)

// ProtectionConfig describes the provider built when the Builder receives no
// explicit protect.Provider.
type ProtectionConfig struct {
	Backend     string
	Algorithm   protect.Algorithm // keyring only
	ActiveKeyID string
	Keys        map[string][]byte
}

// AuditConfig defines a public type used by stateformat APIs.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by stateformat APIs.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration. It carries no keys.
func DefaultConfig() Config {
	return Config{
		Namespace: DefaultNamespace,
		Cache: CacheConfig{
			EntryTTL:       15 * time.Minute,
			MaxPayloadSize: 64 << 10,
		},
		Protection: ProtectionConfig{
			Backend:   BackendKeyRing,
			Algorithm: protect.AES256GCM,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Protection.Keys != nil {
		out.Protection.Keys = make(map[string][]byte, len(cfg.Protection.Keys))
		for kid, key := range cfg.Protection.Keys {
			out.Protection.Keys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting. Key material is only checked
// when present, since a Builder may receive a provider instead.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Namespace) == "" {
		return errors.New("Namespace must not be blank")
	}
	if strings.ContainsAny(c.Namespace, ": \t\r\n") {
		return errors.New("Namespace must not contain separators or whitespace")
	}

	if c.Cache.EntryTTL < 0 {
		return errors.New("Cache EntryTTL must be >= 0")
	}
	if c.Cache.MaxPayloadSize < 0 {
		return errors.New("Cache MaxPayloadSize must be >= 0")
	}

	switch c.Protection.Backend {
	case BackendKeyRing:
		if c.Protection.Algorithm != "" &&
			c.Protection.Algorithm != protect.AES256GCM &&
			c.Protection.Algorithm != protect.XChaCha20Poly1305 {
			return fmt.Errorf("unsupported Protection Algorithm %q", c.Protection.Algorithm)
		}
	case BackendJWE, BackendSigned:
		if len(c.Protection.Keys) > 1 {
			return fmt.Errorf("Protection backend %q supports a single key", c.Protection.Backend)
		}
	default:
		return fmt.Errorf("unsupported Protection Backend %q", c.Protection.Backend)
	}

	if len(c.Protection.Keys) > 0 {
		if _, ok := c.Protection.Keys[c.Protection.ActiveKeyID]; !ok {
			return errors.New("Protection ActiveKeyID must name a key in Keys")
		}
		for kid, key := range c.Protection.Keys {
			if len(key) != protect.KeySize {
				return fmt.Errorf("Protection key %q must be %d bytes", kid, protect.KeySize)
			}
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	return nil
}

func (c *Config) protectionProvider() (protect.Provider, error) {
	if len(c.Protection.Keys) == 0 {
		return nil, fmt.Errorf("%w: no provider and no keys configured", ErrProtectionUnavailable)
	}

	var (
		provider protect.Provider
		err      error
	)
	active := c.Protection.Keys[c.Protection.ActiveKeyID]
	switch c.Protection.Backend {
	case BackendJWE:
		provider, err = protect.NewJWEProvider(active)
	case BackendSigned:
		provider, err = protect.NewSignedProvider(active, protect.SignedOptions{Issuer: c.Namespace})
	default:
		provider, err = protect.NewKeyRing(protect.KeyRingOptions{
			Algorithm:   c.Protection.Algorithm,
			ActiveKeyID: c.Protection.ActiveKeyID,
			Keys:        c.Protection.Keys,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtectionUnavailable, err)
	}
	return provider, nil
}
