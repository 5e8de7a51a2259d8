package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/arrstack/gatearr/internal/gateway/jellyfin"
	"github.com/arrstack/gatearr/internal/gateway/service"
	"github.com/arrstack/gatearr/pkg/httpx"
	"github.com/arrstack/gatearr/pkg/slogx"
)

// SessionHandler owns the explicit login, refresh, and logout endpoints.
type SessionHandler struct {
	Sessions   *service.SessionService
	Cookies    CookieConfig
	RefreshTTL time.Duration
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// HandleLogin exchanges media-server credentials for session cookies.
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	log := slogx.FromContext(ctx)

	var body loginRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Username == "" || body.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	ident, pair, err := h.Sessions.Login(ctx, body.Username, body.Password)
	switch {
	case errors.Is(err, service.ErrNotAdmin):
		httpx.WriteError(w, http.StatusForbidden, "Admin access required")
		return
	case errors.Is(err, jellyfin.ErrInvalidCredentials):
		log.Info("login failed: invalid credentials", "username", body.Username)
		httpx.WriteError(w, http.StatusUnauthorized, "invalid username or password")
		return
	case err != nil:
		// A provider outage must stay indistinguishable from bad
		// credentials on the wire. The log carries the real cause.
		log.Error("login failed: identity provider error", "error", err)
		httpx.WriteError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	log.Info("login succeeded", "username", ident.Username)
	setSessionCookies(w, h.Cookies, *pair, h.RefreshTTL)
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		Success:  true,
		Username: ident.Username,
		IsAdmin:  ident.Admin,
	})
}

// HandleRefresh exchanges the refresh cookie for a fresh cookie pair.
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	log := slogx.FromContext(ctx)

	rc, err := req.Cookie(h.Cookies.RefreshName)
	if err != nil || rc.Value == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "no refresh token")
		return
	}

	ident, pair, err := h.Sessions.Refresh(ctx, rc.Value)
	switch {
	case errors.Is(err, service.ErrNotAdmin):
		clearSessionCookies(w, h.Cookies)
		httpx.WriteError(w, http.StatusForbidden, "Admin access required")
		return
	case err != nil:
		log.Warn("refresh failed", "error", err)
		clearSessionCookies(w, h.Cookies)
		httpx.WriteError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	setSessionCookies(w, h.Cookies, *pair, h.RefreshTTL)
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		Success:  true,
		Username: ident.Username,
		IsAdmin:  ident.Admin,
	})
}

// HandleLogout clears both session cookies. The tokens themselves stay
// valid until expiry; there is no server-side session to revoke.
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, _ *http.Request) {
	clearSessionCookies(w, h.Cookies)
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
