package protect

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Algorithm selects the AEAD used by a KeyRing.
type Algorithm string

const (
	// AES256GCM is the default algorithm.
	AES256GCM Algorithm = "aes-256-gcm"
	// XChaCha20Poly1305 uses 24-byte random nonces.
	XChaCha20Poly1305 Algorithm = "xchacha20-poly1305"
)

const (
	envelopeVersion1 = 1
	maxKeyIDLength   = 64
)

// KeyRingOptions configures a KeyRing.
type KeyRingOptions struct {
	Algorithm   Algorithm
	ActiveKeyID string
	// Keys maps key id to 32-byte master key. Keys other than the active one
	// are only used to open tokens sealed before a rotation.
	Keys map[string][]byte
}

// KeyRing is a Provider with key rotation. Tokens carry the id of the key that
// sealed them.
type KeyRing struct {
	algorithm Algorithm
	activeKID string
	keys      map[string][]byte
}

// NewKeyRing validates opts and copies the key material.
func NewKeyRing(opts KeyRingOptions) (*KeyRing, error) {
	alg := opts.Algorithm
	if alg == "" {
		alg = AES256GCM
	}
	if alg != AES256GCM && alg != XChaCha20Poly1305 {
		return nil, fmt.Errorf("unsupported algorithm %q", alg)
	}

	active := strings.TrimSpace(opts.ActiveKeyID)
	if active == "" {
		return nil, fmt.Errorf("%w: active key id is empty", ErrInvalidKey)
	}
	if len(opts.Keys) == 0 {
		return nil, fmt.Errorf("%w: key set is empty", ErrInvalidKey)
	}

	keys := make(map[string][]byte, len(opts.Keys))
	for kid, key := range opts.Keys {
		if strings.TrimSpace(kid) == "" || len(kid) > maxKeyIDLength {
			return nil, fmt.Errorf("%w: key id %q", ErrInvalidKey, kid)
		}
		if err := checkMasterKey(key); err != nil {
			return nil, fmt.Errorf("key %q: %w", kid, err)
		}
		keys[kid] = append([]byte(nil), key...)
	}
	if _, ok := keys[active]; !ok {
		return nil, fmt.Errorf("%w: active key id %q not in key set", ErrInvalidKey, active)
	}

	return &KeyRing{algorithm: alg, activeKID: active, keys: keys}, nil
}

// NewSingleKey is a convenience for a one-key ring with the default algorithm.
func NewSingleKey(key []byte) (*KeyRing, error) {
	return NewKeyRing(KeyRingOptions{
		ActiveKeyID: "k1",
		Keys:        map[string][]byte{"k1": key},
	})
}

// ActiveKeyID reports the id new tokens are sealed with.
func (k *KeyRing) ActiveKeyID() string {
	return k.activeKID
}

func (k *KeyRing) CreateProtector(purposes ...string) (Protector, error) {
	aeads := make(map[string]cipher.AEAD, len(k.keys))
	for kid, master := range k.keys {
		sub, err := deriveKey(master, purposes)
		if err != nil {
			return nil, err
		}
		aead, err := newAEAD(k.algorithm, sub)
		if err != nil {
			return nil, err
		}
		aeads[kid] = aead
	}
	return &keyRingProtector{activeKID: k.activeKID, aeads: aeads}, nil
}

func newAEAD(alg Algorithm, key []byte) (cipher.AEAD, error) {
	switch alg {
	case XChaCha20Poly1305:
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create xchacha20-poly1305: %w", err)
		}
		return aead, nil
	default:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCM: %w", err)
		}
		return gcm, nil
	}
}

type keyRingProtector struct {
	activeKID string
	aeads     map[string]cipher.AEAD
}

// Protect produces base64url(version | kidLen | kid | nonce | ciphertext). The
// header bytes are authenticated as associated data.
func (p *keyRingProtector) Protect(plaintext []byte) (string, error) {
	aead := p.aeads[p.activeKID]

	header := make([]byte, 0, 2+len(p.activeKID))
	header = append(header, envelopeVersion1, byte(len(p.activeKID)))
	header = append(header, p.activeKID...)

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(header)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, header...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, header)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (p *keyRingProtector) Unprotect(token string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.Strict().DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: bad encoding", ErrInvalidToken)
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("%w: too short", ErrInvalidToken)
	}
	if raw[0] != envelopeVersion1 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidToken, raw[0])
	}

	kidLen := int(raw[1])
	if len(raw) < 2+kidLen {
		return nil, fmt.Errorf("%w: truncated header", ErrInvalidToken)
	}
	header := raw[:2+kidLen]
	aead, ok := p.aeads[string(raw[2:2+kidLen])]
	if !ok {
		return nil, fmt.Errorf("%w: unknown key id", ErrInvalidToken)
	}

	body := raw[2+kidLen:]
	if len(body) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrInvalidToken)
	}
	nonce, sealed := body[:aead.NonceSize()], body[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, header)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrInvalidToken)
	}
	return plaintext, nil
}

// GenerateKey returns a fresh random master key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// KeyFromBase64 decodes a standard base64 master key.
func KeyFromBase64(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 key: %w", err)
	}
	if err := checkMasterKey(key); err != nil {
		return nil, err
	}
	return key, nil
}
