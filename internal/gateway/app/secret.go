package app

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arrstack/gatearr/pkg/jwtx"
)

// resolveSecret turns the configured secret into signing key material, or
// generates a fresh one when none is configured. A generated secret means
// every outstanding session dies with the process; that is the documented
// trade-off, so it is logged loudly.
func resolveSecret(cfg Config, logger *slog.Logger) ([]byte, error) {
	raw := cfg.Security.Secret
	if raw == "" {
		secret, err := jwtx.GenerateSecret()
		if err != nil {
			return nil, fmt.Errorf("generate signing secret: %w", err)
		}
		logger.Warn("no signing secret configured; generated an ephemeral one",
			"consequence", "all sessions are invalidated on restart")
		return secret, nil
	}

	// Only an explicit "base64:" prefix is decoded. Everything else is the
	// secret's literal bytes, so a raw secret that happens to look like
	// base64 is never reinterpreted.
	if encoded, ok := strings.CutPrefix(raw, "base64:"); ok {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode base64 signing secret: %w", err)
		}
		if len(decoded) < jwtx.MinSecretSize {
			return nil, fmt.Errorf("configured signing secret is too short: need at least %d bytes", jwtx.MinSecretSize)
		}
		logger.Info("using configured signing secret", "encoding", "base64")
		return decoded, nil
	}

	if len(raw) < jwtx.MinSecretSize {
		return nil, fmt.Errorf("configured signing secret is too short: need at least %d bytes", jwtx.MinSecretSize)
	}
	logger.Info("using configured signing secret", "encoding", "raw")
	return []byte(raw), nil
}
