// Package proxy routes admitted requests to backend apps by path prefix and
// relays them with streaming bodies, including raw tunneling of upgraded
// connections.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/arrstack/gatearr/pkg/httpx"
	"github.com/arrstack/gatearr/pkg/slogx"
)

// Handler is the proxy router. One httputil.ReverseProxy per backend is
// built at construction and shared by all requests.
type Handler struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
	proxies  map[string]*httputil.ReverseProxy
}

// NewHandler builds the router. timeout bounds each round trip to a
// backend; zero or negative disables the bound. Upgrade tunnels are never
// subject to the timeout.
func NewHandler(reg *Registry, timeout time.Duration, logger *slog.Logger) *Handler {
	h := &Handler{
		registry: reg,
		timeout:  timeout,
		logger:   logger,
		proxies:  make(map[string]*httputil.ReverseProxy, len(reg.apps)),
	}

	for name, app := range reg.apps {
		h.proxies[name] = h.newReverseProxy(app)
	}
	return h
}

func (h *Handler) newReverseProxy(app App) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			// The inbound path was already stripped of the app prefix in
			// ServeHTTP; SetURL joins it onto the backend base URL.
			pr.SetURL(app.URL)
			pr.SetXForwarded()
			pr.Out.Host = app.URL.Host
		},
		// Flush response bytes as they arrive so SSE and long downloads
		// stream instead of buffering.
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if errors.Is(err, context.Canceled) && r.Context().Err() == context.Canceled {
				// Client went away mid-request; nothing to answer.
				return
			}

			status := http.StatusBadGateway
			msg := "bad gateway"
			if errors.Is(err, context.DeadlineExceeded) {
				status = http.StatusGatewayTimeout
				msg = "gateway timeout"
			}

			// Backend identity and cause stay server-side; the client gets
			// a generic body.
			slogx.FromContext(r.Context()).Error("backend request failed",
				"app", app.Name,
				"backend", app.URL.Host,
				"error", err,
			)
			httpx.WriteError(w, status, msg)
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	app, rest, ok := h.registry.Resolve(r.URL.Path)
	if !ok {
		h.noRoute(w, r)
		return
	}

	if isUpgradeRequest(r) {
		h.tunnel(w, r, app, rest)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	out := r.Clone(ctx)
	out.URL.Path = rest
	out.URL.RawPath = ""

	h.proxies[app.Name].ServeHTTP(w, out)
}

func (h *Handler) noRoute(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	slogx.FromContext(r.Context()).Warn("request for unknown app",
		"path", r.URL.Path,
		"available", names,
	)

	first, _, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	httpx.WriteError(w, http.StatusNotFound, fmt.Sprintf(
		"app %q not found; configured apps: %s. Hint: set URL Base to %q in the app's settings",
		first, strings.Join(names, ", "), "/"+first,
	))
}

// isUpgradeRequest reports whether the request asks for a protocol switch
// (WebSocket or any other Upgrade token).
func isUpgradeRequest(r *http.Request) bool {
	if r.Header.Get("Upgrade") == "" {
		return false
	}
	for _, v := range r.Header.Values("Connection") {
		for _, token := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "upgrade") {
				return true
			}
		}
	}
	return false
}
