package service

import (
	"context"
	"testing"
	"time"

	"github.com/arrstack/gatearr/internal/gateway/domain"
	"github.com/arrstack/gatearr/internal/gateway/jellyfin"
	"github.com/arrstack/gatearr/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// fakeProvider is an in-memory IdentityProvider.
type fakeProvider struct {
	users    map[string]domain.Identity // username -> identity
	password string
	err      error // forced error for every call
}

func (f *fakeProvider) Authenticate(_ context.Context, username, password string) (domain.Identity, error) {
	if f.err != nil {
		return domain.Identity{}, f.err
	}
	ident, ok := f.users[username]
	if !ok || password != f.password {
		return domain.Identity{}, jellyfin.ErrInvalidCredentials
	}
	return ident, nil
}

func (f *fakeProvider) User(_ context.Context, userID string) (domain.Identity, error) {
	if f.err != nil {
		return domain.Identity{}, f.err
	}
	for _, ident := range f.users {
		if ident.UserID == userID {
			return ident, nil
		}
	}
	return domain.Identity{}, jellyfin.ErrInvalidCredentials
}

func newTestService(t *testing.T, provider IdentityProvider) *SessionService {
	t.Helper()

	secret, err := jwtx.GenerateSecret()
	require.NoError(t, err)
	codec, err := jwtx.NewCodec(secret)
	require.NoError(t, err)

	return &SessionService{
		Codec:      codec,
		Provider:   provider,
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}
}

func adminProvider() *fakeProvider {
	return &fakeProvider{
		password: "hunter2",
		users: map[string]domain.Identity{
			"alice": {UserID: "u-1", Username: "alice", Admin: true},
			"bob":   {UserID: "u-2", Username: "bob", Admin: false},
		},
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("admin login mints a validating pair", func(t *testing.T) {
		s := newTestService(t, adminProvider())

		ident, pair, err := s.Login(context.Background(), "alice", "hunter2")
		require.NoError(t, err)
		require.True(t, ident.Admin)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
		require.Equal(t, time.Hour, pair.ExpiresIn)

		got, err := s.Authenticate(pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, ident, got)
	})

	t.Run("non-admin login is rejected", func(t *testing.T) {
		s := newTestService(t, adminProvider())

		_, _, err := s.Login(context.Background(), "bob", "hunter2")
		require.ErrorIs(t, err, ErrNotAdmin)
	})

	t.Run("bad password passes the provider error through", func(t *testing.T) {
		s := newTestService(t, adminProvider())

		_, _, err := s.Login(context.Background(), "alice", "wrong")
		require.ErrorIs(t, err, jellyfin.ErrInvalidCredentials)
	})

	t.Run("provider outage passes through", func(t *testing.T) {
		s := newTestService(t, &fakeProvider{err: jellyfin.ErrUnavailable})

		_, _, err := s.Login(context.Background(), "alice", "hunter2")
		require.ErrorIs(t, err, jellyfin.ErrUnavailable)
	})
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	t.Run("valid refresh token mints a new pair", func(t *testing.T) {
		provider := adminProvider()
		s := newTestService(t, provider)

		_, pair, err := s.Login(context.Background(), "alice", "hunter2")
		require.NoError(t, err)

		ident, next, err := s.Refresh(context.Background(), pair.RefreshToken)
		require.NoError(t, err)
		require.Equal(t, "alice", ident.Username)
		require.NotEmpty(t, next.AccessToken)
		require.NotEmpty(t, next.RefreshToken)

		_, err = s.Authenticate(next.AccessToken)
		require.NoError(t, err)
	})

	t.Run("re-derives the admin flag from the provider", func(t *testing.T) {
		provider := adminProvider()
		s := newTestService(t, provider)

		_, pair, err := s.Login(context.Background(), "alice", "hunter2")
		require.NoError(t, err)

		// alice loses admin upstream between login and refresh.
		provider.users["alice"] = domain.Identity{UserID: "u-1", Username: "alice", Admin: false}

		_, _, err = s.Refresh(context.Background(), pair.RefreshToken)
		require.ErrorIs(t, err, ErrNotAdmin)
	})

	t.Run("fails closed when the provider is down", func(t *testing.T) {
		provider := adminProvider()
		s := newTestService(t, provider)

		_, pair, err := s.Login(context.Background(), "alice", "hunter2")
		require.NoError(t, err)

		provider.err = jellyfin.ErrUnavailable
		_, _, err = s.Refresh(context.Background(), pair.RefreshToken)
		require.ErrorIs(t, err, jellyfin.ErrUnavailable)
	})

	t.Run("access token is not accepted as a refresh token", func(t *testing.T) {
		s := newTestService(t, adminProvider())

		_, pair, err := s.Login(context.Background(), "alice", "hunter2")
		require.NoError(t, err)

		_, _, err = s.Refresh(context.Background(), pair.AccessToken)
		require.ErrorIs(t, err, jwtx.ErrWrongKind)
	})

	t.Run("garbage refresh token is malformed", func(t *testing.T) {
		s := newTestService(t, adminProvider())

		_, _, err := s.Refresh(context.Background(), "garbage")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	t.Run("refresh token is not accepted as an access token", func(t *testing.T) {
		s := newTestService(t, adminProvider())

		_, pair, err := s.Login(context.Background(), "alice", "hunter2")
		require.NoError(t, err)

		_, err = s.Authenticate(pair.RefreshToken)
		require.ErrorIs(t, err, jwtx.ErrWrongKind)
	})

	t.Run("expired access token reports ErrExpired", func(t *testing.T) {
		s := newTestService(t, adminProvider())
		s.AccessTTL = -time.Minute

		_, pair, err := s.Login(context.Background(), "alice", "hunter2")
		require.NoError(t, err)

		_, err = s.Authenticate(pair.AccessToken)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})
}
