package app

import (
	"encoding/base64"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrstack/gatearr/pkg/jwtx"
)

func TestResolveSecret(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("generated when unset", func(t *testing.T) {
		var cfg Config
		secret, err := resolveSecret(cfg, logger)
		require.NoError(t, err)
		assert.Len(t, secret, jwtx.SecretSize)

		// A second resolve must not repeat the secret.
		other, err := resolveSecret(cfg, logger)
		require.NoError(t, err)
		assert.NotEqual(t, secret, other)
	})

	t.Run("base64 configured", func(t *testing.T) {
		raw, err := jwtx.GenerateSecret()
		require.NoError(t, err)

		var cfg Config
		cfg.Security.Secret = "base64:" + base64.StdEncoding.EncodeToString(raw)

		secret, err := resolveSecret(cfg, logger)
		require.NoError(t, err)
		assert.Equal(t, raw, secret)
	})

	t.Run("raw configured", func(t *testing.T) {
		var cfg Config
		cfg.Security.Secret = "an-extremely-long-plaintext-signing-secret"

		secret, err := resolveSecret(cfg, logger)
		require.NoError(t, err)
		assert.Equal(t, []byte(cfg.Security.Secret), secret)
	})

	t.Run("raw secret that parses as base64 stays raw", func(t *testing.T) {
		// 44 characters of valid standard base64; without the explicit
		// prefix it must be used byte-for-byte as supplied.
		var cfg Config
		cfg.Security.Secret = "AAAABBBBCCCCDDDDEEEEFFFFGGGGHHHHIIIIJJJJKKK="

		secret, err := resolveSecret(cfg, logger)
		require.NoError(t, err)
		assert.Equal(t, []byte(cfg.Security.Secret), secret)
	})

	t.Run("invalid base64 with prefix", func(t *testing.T) {
		var cfg Config
		cfg.Security.Secret = "base64:!!!not-base64!!!"

		_, err := resolveSecret(cfg, logger)
		require.Error(t, err)
	})

	t.Run("base64 decoding too short", func(t *testing.T) {
		var cfg Config
		cfg.Security.Secret = "base64:" + base64.StdEncoding.EncodeToString([]byte("short"))

		_, err := resolveSecret(cfg, logger)
		require.Error(t, err)
	})

	t.Run("too short", func(t *testing.T) {
		var cfg Config
		cfg.Security.Secret = "short"

		_, err := resolveSecret(cfg, logger)
		require.Error(t, err)
	})
}
