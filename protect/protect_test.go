package protect

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

func testProviders(t *testing.T) map[string]Provider {
	t.Helper()

	aes, err := NewSingleKey(testKey(1))
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	xchacha, err := NewKeyRing(KeyRingOptions{
		Algorithm:   XChaCha20Poly1305,
		ActiveKeyID: "x1",
		Keys:        map[string][]byte{"x1": testKey(2)},
	})
	if err != nil {
		t.Fatalf("new xchacha keyring: %v", err)
	}
	jweProvider, err := NewJWEProvider(testKey(3))
	if err != nil {
		t.Fatalf("new jwe provider: %v", err)
	}
	signed, err := NewSignedProvider(testKey(4), SignedOptions{Issuer: "stateformat"})
	if err != nil {
		t.Fatalf("new signed provider: %v", err)
	}

	return map[string]Provider{
		"aes-gcm":   aes,
		"xchacha":   xchacha,
		"jwe":       jweProvider,
		"jwt-hs256": signed,
	}
}

func TestProvidersRoundTrip(t *testing.T) {
	for name, provider := range testProviders(t) {
		t.Run(name, func(t *testing.T) {
			p, err := provider.CreateProtector("ns", "oidc", "state")
			if err != nil {
				t.Fatalf("create protector: %v", err)
			}
			token, err := p.Protect([]byte("hello"))
			if err != nil {
				t.Fatalf("protect: %v", err)
			}
			got, err := p.Unprotect(token)
			if err != nil {
				t.Fatalf("unprotect: %v", err)
			}
			if string(got) != "hello" {
				t.Fatalf("expected hello, got %q", got)
			}
		})
	}
}

func TestProvidersIsolatePurposeChains(t *testing.T) {
	chains := [][]string{
		{"ns", "oidc", "state"},
		{"ns", "oidc", "other"},
		{"ns", "saml", "state"},
		{"ns", "oidc", ""},
		{"ns", "oidc:state"},
		{"ns", "oi", "dcstate"},
	}

	for name, provider := range testProviders(t) {
		t.Run(name, func(t *testing.T) {
			issuer, err := provider.CreateProtector(chains[0]...)
			if err != nil {
				t.Fatalf("create protector: %v", err)
			}
			token, err := issuer.Protect([]byte("ref"))
			if err != nil {
				t.Fatalf("protect: %v", err)
			}

			for _, chain := range chains[1:] {
				other, err := provider.CreateProtector(chain...)
				if err != nil {
					t.Fatalf("create protector %v: %v", chain, err)
				}
				if _, err := other.Unprotect(token); !errors.Is(err, ErrInvalidToken) {
					t.Fatalf("chain %q opened foreign token: %v", chain, err)
				}
			}
		})
	}
}

func TestProvidersRejectGarbage(t *testing.T) {
	inputs := []string{"", "not-a-token", "a.b.c", "a.b.c.d.e", "AQ", "!!!!"}

	for name, provider := range testProviders(t) {
		t.Run(name, func(t *testing.T) {
			p, _ := provider.CreateProtector("ns")
			for _, in := range inputs {
				if _, err := p.Unprotect(in); !errors.Is(err, ErrInvalidToken) {
					t.Fatalf("input %q: expected ErrInvalidToken, got %v", in, err)
				}
			}
		})
	}
}

func TestProvidersRejectDifferentMasterKey(t *testing.T) {
	a, _ := NewSingleKey(testKey(7))
	b, _ := NewSingleKey(testKey(8))

	pa, _ := a.CreateProtector("ns", "x")
	pb, _ := b.CreateProtector("ns", "x")
	token, err := pa.Protect([]byte("ref"))
	if err != nil {
		t.Fatalf("protect: %v", err)
	}
	if _, err := pb.Unprotect(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken across master keys, got %v", err)
	}
}

func TestKeyRingDetectsEveryByteFlip(t *testing.T) {
	ring, _ := NewSingleKey(testKey(1))
	p, _ := ring.CreateProtector("ns", "oidc", "state")
	token, err := p.Protect([]byte("6f1c3e9e-52d2-4a7f-9d0b-0b8a4a7e2d11"))
	if err != nil {
		t.Fatalf("protect: %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range raw {
		mutated := append([]byte(nil), raw...)
		mutated[i] ^= 0x01
		if _, err := p.Unprotect(base64.RawURLEncoding.EncodeToString(mutated)); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("flip at byte %d accepted: %v", i, err)
		}
	}
}

func TestJWERejectsEveryCharacterSubstitution(t *testing.T) {
	provider, _ := NewJWEProvider(testKey(3))
	p, _ := provider.CreateProtector("ns", "oidc", "state")
	token, err := p.Protect([]byte("6f1c3e9e-52d2-4a7f-9d0b-0b8a4a7e2d11"))
	if err != nil {
		t.Fatalf("protect: %v", err)
	}

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			continue
		}
		for j := 0; j < len(alphabet); j++ {
			if alphabet[j] == token[i] {
				continue
			}
			mutated := token[:i] + string(alphabet[j]) + token[i+1:]
			if _, err := p.Unprotect(mutated); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("substitution %q at %d accepted: %v", alphabet[j], i, err)
			}
		}
	}
}

func TestJWERejectsMalformedCompactForm(t *testing.T) {
	provider, _ := NewJWEProvider(testKey(3))
	p, _ := provider.CreateProtector("ns", "oidc", "state")
	token, _ := p.Protect([]byte("ref"))

	for _, bad := range []string{
		token + ".",
		strings.Join(strings.Split(token, ".")[:4], "."),
		token[:len(token)-1] + "=",
	} {
		if _, err := p.Unprotect(bad); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", bad, err)
		}
	}
}

func TestKeyRingRotationOpensRetiredKeys(t *testing.T) {
	before, _ := NewKeyRing(KeyRingOptions{
		ActiveKeyID: "2025",
		Keys:        map[string][]byte{"2025": testKey(1)},
	})
	after, _ := NewKeyRing(KeyRingOptions{
		ActiveKeyID: "2026",
		Keys: map[string][]byte{
			"2025": testKey(1),
			"2026": testKey(2),
		},
	})

	oldP, _ := before.CreateProtector("ns")
	newP, _ := after.CreateProtector("ns")

	oldToken, _ := oldP.Protect([]byte("old"))
	if got, err := newP.Unprotect(oldToken); err != nil || string(got) != "old" {
		t.Fatalf("rotated ring must open retired key tokens: %q, %v", got, err)
	}

	newToken, _ := newP.Protect([]byte("new"))
	if _, err := oldP.Unprotect(newToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("old ring must not open unknown key id: %v", err)
	}
}

func TestNewKeyRingValidation(t *testing.T) {
	tests := []struct {
		name string
		opts KeyRingOptions
	}{
		{name: "no keys", opts: KeyRingOptions{ActiveKeyID: "k"}},
		{name: "blank active", opts: KeyRingOptions{ActiveKeyID: " ", Keys: map[string][]byte{"k": testKey(1)}}},
		{name: "active missing", opts: KeyRingOptions{ActiveKeyID: "x", Keys: map[string][]byte{"k": testKey(1)}}},
		{name: "short key", opts: KeyRingOptions{ActiveKeyID: "k", Keys: map[string][]byte{"k": testKey(1)[:16]}}},
		{name: "long kid", opts: KeyRingOptions{ActiveKeyID: strings.Repeat("k", 65), Keys: map[string][]byte{strings.Repeat("k", 65): testKey(1)}}},
		{name: "bad algorithm", opts: KeyRingOptions{Algorithm: "rot13", ActiveKeyID: "k", Keys: map[string][]byte{"k": testKey(1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewKeyRing(tt.opts); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateProtectorRequiresPurpose(t *testing.T) {
	for name, provider := range testProviders(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := provider.CreateProtector(); !errors.Is(err, ErrInvalidPurpose) {
				t.Fatalf("expected ErrInvalidPurpose, got %v", err)
			}
		})
	}
}

func TestSignedProviderLifetime(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }
	provider, err := NewSignedProvider(testKey(5), SignedOptions{Lifetime: time.Minute, Now: clock})
	if err != nil {
		t.Fatalf("new signed provider: %v", err)
	}
	p, _ := provider.CreateProtector("ns")
	token, err := p.Protect([]byte("ref"))
	if err != nil {
		t.Fatalf("protect: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := p.Unprotect(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be invalid, got %v", err)
	}
}

func TestSignedProviderRejectsAlgNone(t *testing.T) {
	provider, _ := NewSignedProvider(testKey(5), SignedOptions{})
	p, _ := provider.CreateProtector("ns")

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(`{"dat":"cmVm"}`))
	if _, err := p.Unprotect(header + "." + body + "."); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected alg none to be rejected, got %v", err)
	}
}

func TestKeyFromBase64(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	decoded, err := KeyFromBase64(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded, key) {
		t.Fatal("decoded key mismatch")
	}
	if _, err := KeyFromBase64(base64.StdEncoding.EncodeToString(key[:8])); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey for short key, got %v", err)
	}
}
