package protect

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignedOptions configures a SignedProvider.
type SignedOptions struct {
	// Issuer is stamped into the iss claim and required on parse when set.
	Issuer string
	// Lifetime adds an exp claim. Zero leaves tokens bounded only by the
	// lifetime of whatever they reference.
	Lifetime time.Duration
	// Leeway tolerated on exp/iat checks.
	Leeway time.Duration
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// SignedProvider issues HS256 JWTs. The payload is signed, not encrypted: use
// it only for values that are meaningless without server-side state, such as
// random references.
type SignedProvider struct {
	master []byte
	opts   SignedOptions
}

type signedClaims struct {
	Data string `json:"dat"`
	jwt.RegisteredClaims
}

// NewSignedProvider copies a 32-byte master key.
func NewSignedProvider(master []byte, opts SignedOptions) (*SignedProvider, error) {
	if err := checkMasterKey(master); err != nil {
		return nil, err
	}
	if opts.Lifetime < 0 || opts.Leeway < 0 {
		return nil, errors.New("signed provider durations must be >= 0")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SignedProvider{master: append([]byte(nil), master...), opts: opts}, nil
}

func (s *SignedProvider) CreateProtector(purposes ...string) (Protector, error) {
	key, err := deriveKey(s.master, purposes)
	if err != nil {
		return nil, err
	}
	info, err := purposeInfo(purposes)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(info)
	return &signedProtector{
		key:      key,
		audience: hex.EncodeToString(sum[:16]),
		opts:     s.opts,
	}, nil
}

type signedProtector struct {
	key      []byte
	audience string
	opts     SignedOptions
}

func (p *signedProtector) Protect(plaintext []byte) (string, error) {
	now := p.opts.Now()
	claims := signedClaims{
		Data: base64.RawURLEncoding.EncodeToString(plaintext),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   p.opts.Issuer,
			Audience: jwt.ClaimStrings{p.audience},
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if p.opts.Lifetime > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(p.opts.Lifetime))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (p *signedProtector) Unprotect(token string) ([]byte, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(p.audience),
		jwt.WithLeeway(p.opts.Leeway),
		jwt.WithTimeFunc(p.opts.Now),
		jwt.WithStrictDecoding(),
	}
	if p.opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(p.opts.Issuer))
	}

	var claims signedClaims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return p.key, nil
	}, parserOpts...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	plaintext, err := base64.RawURLEncoding.DecodeString(claims.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: bad payload encoding", ErrInvalidToken)
	}
	return plaintext, nil
}
