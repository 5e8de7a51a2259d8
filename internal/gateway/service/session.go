package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arrstack/gatearr/internal/gateway/domain"
	"github.com/arrstack/gatearr/pkg/jwtx"
	"github.com/arrstack/gatearr/pkg/slogx"
)

// ErrNotAdmin means the account authenticated fine but is not flagged as an
// administrator on the media server.
var ErrNotAdmin = errors.New("session: admin access required")

// IdentityProvider is the external login authority. Implemented by the
// jellyfin client; faked in tests.
type IdentityProvider interface {
	Authenticate(ctx context.Context, username, password string) (domain.Identity, error)
	User(ctx context.Context, userID string) (domain.Identity, error)
}

// SessionService owns the gateway's stateless session model: login mints a
// signed access/refresh pair, every request validates the access token by
// signature and expiry alone, and refresh exchanges a refresh token for a
// fresh pair after re-deriving the admin flag from the provider.
//
// There is no session store. The only revocation mechanism is restarting
// the process with a new signing secret.
type SessionService struct {
	Codec      *jwtx.Codec
	Provider   IdentityProvider
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Login authenticates against the identity provider and, for administrator
// accounts, mints a token pair. Non-admin accounts get ErrNotAdmin; the
// provider's own failures pass through unchanged so the HTTP layer can log
// them distinctly.
func (s *SessionService) Login(ctx context.Context, username, password string) (domain.Identity, *domain.TokenPair, error) {
	ident, err := s.Provider.Authenticate(ctx, username, password)
	if err != nil {
		return domain.Identity{}, nil, err
	}

	if !ident.Admin {
		slogx.FromContext(ctx).Warn("login rejected: not an administrator", "username", ident.Username)
		return domain.Identity{}, nil, ErrNotAdmin
	}

	pair, err := s.mint(ident, time.Now().UTC())
	if err != nil {
		return domain.Identity{}, nil, err
	}
	return ident, pair, nil
}

// Refresh validates a refresh token and mints a new pair. The refresh token
// carries no admin flag on purpose: the flag is re-derived here by asking
// the provider for the account's current state, so a demoted admin loses
// access as soon as their access token expires.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (domain.Identity, *domain.TokenPair, error) {
	claims, err := s.Codec.Verify(refreshToken, jwtx.KindRefresh)
	if err != nil {
		return domain.Identity{}, nil, err
	}

	ident, err := s.Provider.User(ctx, claims.Subject)
	if err != nil {
		return domain.Identity{}, nil, fmt.Errorf("refresh identity check: %w", err)
	}

	if !ident.Admin {
		slogx.FromContext(ctx).Warn("refresh rejected: administrator flag revoked", "username", ident.Username)
		return domain.Identity{}, nil, ErrNotAdmin
	}

	pair, err := s.mint(ident, time.Now().UTC())
	if err != nil {
		return domain.Identity{}, nil, err
	}
	return ident, pair, nil
}

// Authenticate validates an access token string. Pure function of the
// token, the secret, and the clock; safe from any goroutine.
func (s *SessionService) Authenticate(token string) (domain.Identity, error) {
	claims, err := s.Codec.Verify(token, jwtx.KindAccess)
	if err != nil {
		return domain.Identity{}, err
	}

	return domain.Identity{
		UserID:   claims.Subject,
		Username: claims.Username,
		Admin:    claims.Admin,
	}, nil
}

func (s *SessionService) mint(ident domain.Identity, now time.Time) (*domain.TokenPair, error) {
	access, err := s.Codec.Sign(jwtx.NewAccessClaims(ident.UserID, ident.Username, ident.Admin, s.AccessTTL, now))
	if err != nil {
		return nil, err
	}

	refresh, err := s.Codec.Sign(jwtx.NewRefreshClaims(ident.UserID, s.RefreshTTL, now))
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.AccessTTL,
	}, nil
}
