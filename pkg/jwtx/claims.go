package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants for the gateway's session model.
// These provide sensible defaults but can be overridden per-service.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	// One day keeps daily logins to a minimum for a home-lab gateway.
	DefaultAccessTokenTTL = 24 * time.Hour

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	// Longer-lived for user convenience - typical range is 7d to 30d.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// Kind distinguishes the two token flavours a Codec mints. A token of one
// kind is never accepted where the other is expected.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims are the signed token claims. Access tokens carry the full identity
// including the admin flag; refresh tokens carry only the subject and
// timestamps, so the admin flag has to be re-derived whenever a refresh
// token is exchanged for a new pair.
type Claims struct {
	jwt.RegisteredClaims

	// Username of the authenticated user. Access tokens only.
	Username string `json:"username,omitempty"`

	// Admin mirrors the media server's administrator flag at issue time.
	// Access tokens only.
	Admin bool `json:"admin,omitempty"`

	// Kind marks the token as access or refresh.
	Kind Kind `json:"kind"`
}

// NewAccessClaims builds claims for an access token expiring at now+ttl.
func NewAccessClaims(subject, username string, admin bool, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username: username,
		Admin:    admin,
		Kind:     KindAccess,
	}
}

// NewRefreshClaims builds claims for a refresh token. Deliberately omits
// username and admin: refresh tokens only prove "this subject had a valid
// session", nothing more.
func NewRefreshClaims(subject string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: KindRefresh,
	}
}
