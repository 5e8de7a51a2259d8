package proxy

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arrstack/gatearr/pkg/httpx"
	"github.com/arrstack/gatearr/pkg/slogx"
)

// Hop-by-hop headers must not be forwarded by a proxy (RFC 9110 §7.6.1).
// The tunnel re-adds Connection and Upgrade explicitly when replaying the
// handshake.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

const dialTimeout = 10 * time.Second

// tunnel replays an upgrade handshake to the backend and, on a 101 answer,
// turns the client connection into a raw bidirectional byte pump. Payloads
// are never inspected or re-framed.
func (h *Handler) tunnel(w http.ResponseWriter, r *http.Request, app App, rest string) {
	log := slogx.FromContext(r.Context()).With("app", app.Name)

	backendConn, err := dialBackend(r.Context(), app.URL)
	if err != nil {
		log.Error("tunnel dial failed", "backend", app.URL.Host, "error", err)
		httpx.WriteError(w, http.StatusBadGateway, "bad gateway")
		return
	}
	defer backendConn.Close()

	out, err := upgradeRequest(r, app, rest)
	if err != nil {
		log.Error("tunnel handshake build failed", "error", err)
		httpx.WriteError(w, http.StatusBadGateway, "bad gateway")
		return
	}

	if err := out.Write(backendConn); err != nil {
		log.Error("tunnel handshake write failed", "error", err)
		httpx.WriteError(w, http.StatusBadGateway, "bad gateway")
		return
	}

	br := bufio.NewReader(backendConn)
	resp, err := http.ReadResponse(br, out)
	if err != nil {
		log.Error("tunnel handshake read failed", "error", err)
		httpx.WriteError(w, http.StatusBadGateway, "bad gateway")
		return
	}

	if resp.StatusCode != http.StatusSwitchingProtocols {
		// Backend declined the upgrade; relay its answer as-is.
		defer resp.Body.Close()
		copyHeader(w.Header(), resp.Header)
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
		return
	}

	clientConn, brw, err := http.NewResponseController(w).Hijack()
	if err != nil {
		log.Error("tunnel hijack failed", "error", err)
		httpx.WriteError(w, http.StatusBadGateway, "bad gateway")
		return
	}
	defer clientConn.Close()

	if err := resp.Write(brw); err != nil {
		log.Error("tunnel 101 relay failed", "error", err)
		return
	}
	if err := brw.Flush(); err != nil {
		return
	}

	log.Debug("tunnel established", "backend", app.URL.Host, "path", rest)

	// Two independent copy legs. Whichever finishes first, for any reason,
	// closes both sockets so the other leg unblocks promptly - no half-open
	// connections. br and brw.Reader may hold bytes that arrived during the
	// handshake, so the legs read through them, not the raw conns.
	closeBoth := sync.OnceFunc(func() {
		clientConn.Close()
		backendConn.Close()
	})

	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(backendConn, brw.Reader)
		closeBoth()
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(clientConn, br)
		closeBoth()
		return err
	})

	if err := g.Wait(); err != nil && !isClosedConn(err) {
		log.Debug("tunnel closed with error", "error", err)
	} else {
		log.Debug("tunnel closed")
	}
}

// upgradeRequest clones the inbound handshake with the rewritten path and
// proxy-appropriate headers.
func upgradeRequest(r *http.Request, app App, rest string) (*http.Request, error) {
	target := *app.URL
	target.Path = joinURLPath(app.URL.Path, rest)
	target.RawQuery = r.URL.RawQuery

	out, err := http.NewRequest(r.Method, target.String(), nil)
	if err != nil {
		return nil, err
	}

	out.Header = r.Header.Clone()
	upgrade := r.Header.Get("Upgrade")
	for _, name := range hopByHopHeaders {
		out.Header.Del(name)
	}
	out.Header.Set("Connection", "Upgrade")
	out.Header.Set("Upgrade", upgrade)

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		out.Header.Set("X-Forwarded-For", host)
	}
	out.Header.Set("X-Forwarded-Host", r.Host)
	if r.TLS != nil {
		out.Header.Set("X-Forwarded-Proto", "https")
	} else {
		out.Header.Set("X-Forwarded-Proto", "http")
	}

	return out, nil
}

func dialBackend(ctx context.Context, u *url.URL) (net.Conn, error) {
	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "https":
			host = net.JoinHostPort(u.Hostname(), "443")
		default:
			host = net.JoinHostPort(u.Hostname(), "80")
		}
	}

	if u.Scheme == "https" {
		d := tls.Dialer{
			NetDialer: &net.Dialer{Timeout: dialTimeout},
			Config:    &tls.Config{ServerName: u.Hostname()},
		}
		return d.DialContext(ctx, "tcp", host)
	}

	d := net.Dialer{Timeout: dialTimeout}
	return d.DialContext(ctx, "tcp", host)
}

func copyHeader(dst, src http.Header) {
	for name, values := range src {
		if isHopByHop(name) {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

func joinURLPath(base, rest string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return base + rest
}

func isClosedConn(err error) bool {
	return err == nil || errors.Is(err, net.ErrClosed)
}
