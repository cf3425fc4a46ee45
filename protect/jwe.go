package protect

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
)

// JWEProvider emits compact JWE tokens (alg "dir", enc "A256GCM"). Use it when
// tickets must be readable by other JOSE tooling holding the same master key.
type JWEProvider struct {
	master []byte
}

// NewJWEProvider copies a 32-byte master key.
func NewJWEProvider(master []byte) (*JWEProvider, error) {
	if err := checkMasterKey(master); err != nil {
		return nil, err
	}
	return &JWEProvider{master: append([]byte(nil), master...)}, nil
}

func (j *JWEProvider) CreateProtector(purposes ...string) (Protector, error) {
	key, err := deriveKey(j.master, purposes)
	if err != nil {
		return nil, err
	}
	return &jweProtector{key: key}, nil
}

type jweProtector struct {
	key []byte
}

func (p *jweProtector) Protect(plaintext []byte) (string, error) {
	out, err := jwe.Encrypt(plaintext,
		jwe.WithKey(jwa.DIRECT, p.key),
		jwe.WithContentEncryption(jwa.A256GCM),
	)
	if err != nil {
		return "", fmt.Errorf("jwe encrypt: %w", err)
	}
	return string(out), nil
}

func (p *jweProtector) Unprotect(token string) ([]byte, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	if err := checkCompactSegments(token); err != nil {
		return nil, err
	}
	plaintext, err := jwe.Decrypt([]byte(token), jwe.WithKey(jwa.DIRECT, p.key))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return plaintext, nil
}

// checkCompactSegments enforces canonical base64url on every segment.
// jwe.Decrypt ignores non-zero padding bits, which would let several
// spellings of one token decrypt to the same reference.
func checkCompactSegments(token string) error {
	segments := strings.Split(token, ".")
	if len(segments) != 5 {
		return fmt.Errorf("%w: expected 5 compact segments, got %d", ErrInvalidToken, len(segments))
	}
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		if _, err := base64.RawURLEncoding.Strict().DecodeString(segment); err != nil {
			return fmt.Errorf("%w: segment %d: %v", ErrInvalidToken, i, err)
		}
	}
	return nil
}
