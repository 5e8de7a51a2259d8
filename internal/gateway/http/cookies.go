package http

import (
	"net/http"
	"time"

	"github.com/arrstack/gatearr/internal/gateway/domain"
)

const (
	DefaultAccessCookie  = "gatearr_token"
	DefaultRefreshCookie = "gatearr_refresh"
)

// CookieConfig names the session cookies and decides their transport flags.
// Both cookies are always HttpOnly with Path=/ so scripts in proxied apps
// cannot read them.
type CookieConfig struct {
	AccessName  string
	RefreshName string
	Secure      bool
}

func (c CookieConfig) withDefaults() CookieConfig {
	if c.AccessName == "" {
		c.AccessName = DefaultAccessCookie
	}
	if c.RefreshName == "" {
		c.RefreshName = DefaultRefreshCookie
	}
	return c
}

func setSessionCookies(w http.ResponseWriter, cfg CookieConfig, pair domain.TokenPair, refreshTTL time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.AccessName,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(pair.ExpiresIn / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.RefreshName,
		Value:    pair.RefreshToken,
		Path:     "/",
		MaxAge:   int(refreshTTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookies(w http.ResponseWriter, cfg CookieConfig) {
	for _, name := range []string{cfg.AccessName, cfg.RefreshName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
