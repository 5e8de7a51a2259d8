package domain

import "time"

// Identity is an authenticated media-server account as the gateway sees it.
// Immutable once constructed.
type Identity struct {
	UserID   string
	Username string
	Admin    bool
}

// TokenPair is an access/refresh credential pair minted together. ExpiresIn
// is the access token's lifetime.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}
