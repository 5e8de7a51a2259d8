package jwtx

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SecretSize is the number of random bytes GenerateSecret produces.
const SecretSize = 32

// MinSecretSize is the smallest secret NewCodec accepts. Anything shorter
// than the HMAC-SHA256 block-relevant 32 bytes weakens the signature.
const MinSecretSize = 32

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrWrongKind   = errors.New("jwtx: wrong token kind")
)

// Codec signs and verifies HS256 tokens with a process-wide secret.
//
// The secret is set once at construction and never rotated while the
// process runs. Restarting with a freshly generated secret is the only
// revocation mechanism: every outstanding token fails signature
// verification instantly and implicitly.
type Codec struct {
	secret []byte
}

// NewCodec wraps the given secret. The secret must be at least
// MinSecretSize bytes.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) < MinSecretSize {
		return nil, fmt.Errorf("jwtx: secret too short: %d bytes, need at least %d", len(secret), MinSecretSize)
	}
	return &Codec{secret: secret}, nil
}

// GenerateSecret returns SecretSize cryptographically random bytes suitable
// as a Codec secret.
func GenerateSecret() ([]byte, error) {
	b := make([]byte, SecretSize)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("jwtx: generate secret: %w", err)
	}
	return b, nil
}

// Sign produces a signed compact token string for the given claims.
func (c *Codec) Sign(claims Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return s, nil
}

// Verify parses and validates a token string, expecting the given kind.
//
// Failures map to the sentinel errors above. The underlying library checks
// the signature before validating expiry, so a tampered token always
// surfaces as ErrInvalidSig even when it is also expired - callers can rely
// on ErrExpired meaning "authentic but stale".
func (c *Codec) Verify(token string, kind Kind) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, mapParseError(err)
	}

	if claims.Kind != kind {
		return Claims{}, ErrWrongKind
	}

	return claims, nil
}

// ExpiresAtTime returns the claim expiry or the zero time if unset.
func (cl Claims) ExpiresAtTime() time.Time {
	if cl.ExpiresAt == nil {
		return time.Time{}
	}
	return cl.ExpiresAt.Time
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
