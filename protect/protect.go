package protect

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the required master key length in bytes.
	KeySize = 32
	// maxPurposes bounds purpose chains so derivation input stays small.
	maxPurposes = 16
)

var (
	// ErrInvalidToken is returned when a token is malformed, tampered with,
	// produced under a different purpose chain, or sealed with an unknown key.
	ErrInvalidToken = errors.New("invalid protected token")
	// ErrInvalidKey reports master key material that cannot be used.
	ErrInvalidKey = errors.New("invalid protection key")
	// ErrInvalidPurpose reports an empty or oversized purpose chain.
	ErrInvalidPurpose = errors.New("invalid protection purpose")
)

// Protector seals and opens payloads for one purpose chain.
type Protector interface {
	Protect(plaintext []byte) (string, error)
	Unprotect(token string) ([]byte, error)
}

// Provider hands out protectors. Two protectors built from different purpose
// chains never open each other's tokens.
type Provider interface {
	CreateProtector(purposes ...string) (Protector, error)
}

// purposeInfo length-prefixes every element so ("a:b") and ("a", "b") differ,
// and so an empty purpose is distinct from a missing one.
func purposeInfo(purposes []string) ([]byte, error) {
	if len(purposes) == 0 || len(purposes) > maxPurposes {
		return nil, fmt.Errorf("%w: chain length %d", ErrInvalidPurpose, len(purposes))
	}

	size := 0
	for _, p := range purposes {
		size += 4 + len(p)
	}
	info := make([]byte, 0, size)
	for _, p := range purposes {
		info = binary.BigEndian.AppendUint32(info, uint32(len(p)))
		info = append(info, p...)
	}
	return info, nil
}

func deriveKey(master []byte, purposes []string) ([]byte, error) {
	info, err := purposeInfo(purposes)
	if err != nil {
		return nil, err
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, info), key); err != nil {
		return nil, fmt.Errorf("derive purpose key: %w", err)
	}
	return key, nil
}

func checkMasterKey(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w: must be exactly %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	return nil
}
