package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/arrstack/gatearr/internal/gateway/domain"
	"github.com/arrstack/gatearr/internal/gateway/service"
	"github.com/arrstack/gatearr/pkg/httpx"
	"github.com/arrstack/gatearr/pkg/jwtx"
	"github.com/arrstack/gatearr/pkg/slogx"
)

type ctxKey int

const identityKey ctxKey = iota

// errMissingSession means the request carried no usable session credential
// at all: no access token and no refresh cookie.
var errMissingSession = errors.New("no session credentials")

func withIdentity(ctx context.Context, ident domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// IdentityFromContext returns the admitted identity set by the session gate.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	ident, ok := ctx.Value(identityKey).(domain.Identity)
	return ident, ok
}

// sessionGate admits only live administrator sessions to the wrapped
// handler. An expired or missing access cookie triggers one silent refresh
// attempt from the refresh cookie; any other token defect does not.
func (r *Router) sessionGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ident, pair, err := r.admit(req)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrNotAdmin):
			httpx.WriteError(w, http.StatusForbidden, "Admin access required")
			return
		default:
			r.unauthenticated(w, req)
			return
		}

		if pair != nil {
			// Silent refresh succeeded; rotate the cookies on this response.
			setSessionCookies(w, r.cookies, *pair, r.Sessions.RefreshTTL)
		}

		next.ServeHTTP(w, req.WithContext(withIdentity(req.Context(), ident)))
	})
}

func (r *Router) admit(req *http.Request) (domain.Identity, *domain.TokenPair, error) {
	log := slogx.FromContext(req.Context())

	if token := accessToken(req, r.cookies.AccessName); token != "" {
		ident, err := r.Sessions.Authenticate(token)
		switch {
		case err == nil:
			if !ident.Admin {
				return domain.Identity{}, nil, service.ErrNotAdmin
			}
			return ident, nil, nil
		case errors.Is(err, jwtx.ErrExpired):
			// Expiry is the one defect a refresh can cure.
		default:
			log.Warn("access token rejected", "error", err)
			return domain.Identity{}, nil, err
		}
	}

	rc, err := req.Cookie(r.cookies.RefreshName)
	if err != nil || rc.Value == "" {
		return domain.Identity{}, nil, errMissingSession
	}

	ident, pair, err := r.Sessions.Refresh(req.Context(), rc.Value)
	if err != nil {
		if !errors.Is(err, service.ErrNotAdmin) {
			log.Warn("silent refresh failed", "error", err)
		}
		return domain.Identity{}, nil, err
	}

	log.Debug("session silently refreshed", "username", ident.Username)
	return ident, pair, nil
}

// unauthenticated answers in the caller's dialect: browsers are sent to the
// login page with a way back, API clients get JSON.
func (r *Router) unauthenticated(w http.ResponseWriter, req *http.Request) {
	if wantsHTML(req) {
		target := BasePath + "/login?redirect=" + url.QueryEscape(req.URL.RequestURI())
		http.Redirect(w, req, target, http.StatusFound)
		return
	}
	httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
}

// accessToken pulls the access token from the session cookie, falling back
// to an Authorization bearer header for cookie-less API clients.
func accessToken(req *http.Request, cookieName string) string {
	if c, err := req.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if token, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func wantsHTML(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}
