package http

import (
	"log/slog"
	"net/http"

	"github.com/arrstack/gatearr/internal/gateway/service"
	"github.com/arrstack/gatearr/pkg/httpx"
	"github.com/arrstack/gatearr/pkg/slogx"
)

// BasePath is the gateway's own URL namespace. Everything outside it is
// treated as traffic for a proxied app.
const BasePath = "/gatearr"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	Sessions *service.SessionService
	Proxy    http.Handler

	serviceName string
	cookies     CookieConfig
	logger      *slog.Logger
}

func NewRouter(
	sessions *service.SessionService,
	proxy http.Handler,
	cookies CookieConfig,
	serviceName string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:         http.NewServeMux(),
		Sessions:    sessions,
		Proxy:       proxy,
		serviceName: serviceName,
		cookies:     cookies.withDefaults(),
		logger:      logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSystem()
	r.registerProxy()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &SessionHandler{
		Sessions:   r.Sessions,
		Cookies:    r.cookies,
		RefreshTTL: r.Sessions.RefreshTTL,
	}

	r.Mux.Handle("GET "+BasePath+"/login", LoginPageHandler())
	r.Mux.Handle("POST "+BasePath+"/api/auth/login", http.HandlerFunc(h.HandleLogin))
	r.Mux.Handle("POST "+BasePath+"/api/auth/refresh", http.HandlerFunc(h.HandleRefresh))
	r.Mux.Handle("POST "+BasePath+"/api/auth/logout", http.HandlerFunc(h.HandleLogout))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /health", HealthHandler(r.serviceName))
}

func (r *Router) registerProxy() {
	login := BasePath + "/login"
	redirectToLogin := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, login, http.StatusFound)
	})

	// The bare root and the bare base path both land on the login page.
	r.Mux.Handle("GET /{$}", redirectToLogin)
	r.Mux.Handle("GET "+BasePath, redirectToLogin)
	r.Mux.Handle("GET "+BasePath+"/{$}", redirectToLogin)

	// Everything else is app traffic behind the session gate.
	r.Mux.Handle("/", httpx.Chain(r.Proxy, r.sessionGate))
}
