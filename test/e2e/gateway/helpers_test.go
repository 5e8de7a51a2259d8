package gateway_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	httpapi "github.com/arrstack/gatearr/internal/gateway/http"
	"github.com/arrstack/gatearr/internal/gateway/jellyfin"
	"github.com/arrstack/gatearr/internal/gateway/proxy"
	"github.com/arrstack/gatearr/internal/gateway/service"
	"github.com/arrstack/gatearr/pkg/jwtx"
)

const (
	adminUsername  = "alice"
	adminPassword  = "hunter2"
	viewerUsername = "bob"
	viewerPassword = "letmein"
)

type mediaUser struct {
	id       string
	password string
	admin    bool
}

// mediaServer fakes the Jellyfin endpoints the gateway talks to.
type mediaServer struct {
	*httptest.Server

	mu    sync.Mutex
	users map[string]mediaUser
	down  bool
}

func startMediaServer(t *testing.T) *mediaServer {
	t.Helper()

	ms := &mediaServer{
		users: map[string]mediaUser{
			adminUsername:  {id: "u-admin", password: adminPassword, admin: true},
			viewerUsername: {id: "u-viewer", password: viewerPassword, admin: false},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /Users/AuthenticateByName", ms.handleAuthenticate)
	mux.HandleFunc("GET /Users/{id}", ms.handleUser)

	ms.Server = httptest.NewServer(mux)
	t.Cleanup(ms.Close)
	return ms
}

func (ms *mediaServer) setDown(down bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.down = down
}

func (ms *mediaServer) setAdmin(username string, admin bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	u := ms.users[username]
	u.admin = admin
	ms.users[username] = u
}

func (ms *mediaServer) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.down {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	var body struct {
		Username string `json:"Username"`
		Pw       string `json:"Pw"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	u, ok := ms.users[body.Username]
	if !ok || u.password != body.Pw {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"User": map[string]any{
			"Id":     u.id,
			"Name":   body.Username,
			"Policy": map[string]any{"IsAdministrator": u.admin},
		},
		"AccessToken": "media-session-token",
	})
}

func (ms *mediaServer) handleUser(w http.ResponseWriter, r *http.Request) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.down {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	id := r.PathValue("id")
	for name, u := range ms.users {
		if u.id == id {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"Id":     u.id,
				"Name":   name,
				"Policy": map[string]any{"IsAdministrator": u.admin},
			})
			return
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}

// gateway is a fully wired in-process instance behind an httptest listener.
type gateway struct {
	*httptest.Server
	codec    *jwtx.Codec
	sessions *service.SessionService
}

func startGateway(t *testing.T, mediaURL string, apps map[string]string, secret []byte) *gateway {
	t.Helper()

	if secret == nil {
		var err error
		secret, err = jwtx.GenerateSecret()
		require.NoError(t, err)
	}
	codec, err := jwtx.NewCodec(secret)
	require.NoError(t, err)

	sessions := &service.SessionService{
		Codec:      codec,
		Provider:   jellyfin.New(mediaURL, "", 5*time.Second),
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}

	registry, err := proxy.NewRegistry(apps)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := httpapi.NewRouter(
		sessions,
		proxy.NewHandler(registry, 5*time.Second, logger),
		httpapi.CookieConfig{},
		"gatearr",
		logger,
	)
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &gateway{Server: srv, codec: codec, sessions: sessions}
}

// newBrowser returns a cookie-carrying client that does not follow
// redirects, so tests can assert on Location headers.
func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func login(t *testing.T, client *http.Client, gw *gateway, username, password string) *http.Response {
	t.Helper()

	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	require.NoError(t, err)

	resp, err := client.Post(gw.URL+"/gatearr/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func get(t *testing.T, client *http.Client, rawURL, accept string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}
