// Package jellyfin is the gateway's identity provider client. Credential
// verification is delegated entirely to the Jellyfin server; the gateway
// only cares about who the account is and whether it is an administrator.
package jellyfin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/arrstack/gatearr/internal/gateway/domain"
)

var (
	// ErrInvalidCredentials means Jellyfin rejected the credentials or no
	// longer knows the account.
	ErrInvalidCredentials = errors.New("jellyfin: invalid credentials")

	// ErrUnavailable means Jellyfin could not give an answer at all:
	// network failure, unexpected status, or a malformed response. Callers
	// must not surface the distinction to end users, only to logs.
	ErrUnavailable = errors.New("jellyfin: server unavailable")
)

const clientIdentity = `MediaBrowser Client="gatearr", Device="gatearr", DeviceId="gatearr-1", Version="0.1.0"`

// Client talks to a single Jellyfin server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New builds a Client for the server at baseURL. The apiKey authorizes user
// lookups outside a login handshake. A timeout of zero disables the client
// timeout.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// Authenticate performs the login handshake and returns the account's
// identity. The Jellyfin session token in the response is discarded; the
// gateway mints its own credentials.
func (c *Client) Authenticate(ctx context.Context, username, password string) (domain.Identity, error) {
	body, err := json.Marshal(authenticateRequest{Username: username, Pw: password})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: encode request: %w", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/Users/AuthenticateByName", bytes.NewReader(body))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: build request: %w", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Emby-Authorization", clientIdentity)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return domain.Identity{}, err
	}

	var auth authenticateResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}

	return identityFromUser(auth.User), nil
}

// User looks up an account by id using the configured API key. Used at
// refresh time to re-derive the admin flag instead of trusting anything
// cached in a token.
func (c *Client) User(ctx context.Context, userID string) (domain.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/Users/"+userID, nil)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: build request: %w", ErrUnavailable, err)
	}
	req.Header.Set("X-Emby-Authorization", clientIdentity)
	req.Header.Set("X-MediaBrowser-Token", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Account deleted since the refresh token was issued.
		return domain.Identity{}, ErrInvalidCredentials
	}
	if err := checkStatus(resp.StatusCode); err != nil {
		return domain.Identity{}, err
	}

	var u user
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}

	return identityFromUser(u), nil
}

func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrInvalidCredentials
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, code)
	}
}

func identityFromUser(u user) domain.Identity {
	return domain.Identity{
		UserID:   u.ID,
		Username: u.Name,
		Admin:    u.Policy.IsAdministrator,
	}
}
