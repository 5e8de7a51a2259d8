package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	httpapi "github.com/arrstack/gatearr/internal/gateway/http"
	"github.com/arrstack/gatearr/internal/gateway/jellyfin"
	"github.com/arrstack/gatearr/internal/gateway/proxy"
	"github.com/arrstack/gatearr/internal/gateway/service"
	"github.com/arrstack/gatearr/pkg/jwtx"
	"github.com/arrstack/gatearr/pkg/slogx"
)

const (
	ServiceName = "gatearr"

	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the gateway with all its dependencies wired.
type Application struct {
	cfg    Config
	logger *slog.Logger

	sessions *service.SessionService
	registry *proxy.Registry

	server *http.Server
	router *httpapi.Router
}

// New creates an Application. Everything that can fail at startup fails
// here, before the listener binds.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: ServiceName,
			Version: BuildVersion,
			Env:     cfg.Log.Env,
			Level:   cfg.Log.Level,
			Format:  cfg.Log.Format,
		}),
	}

	secret, err := resolveSecret(cfg, app.logger)
	if err != nil {
		return nil, err
	}
	codec, err := jwtx.NewCodec(secret)
	if err != nil {
		return nil, fmt.Errorf("initialize token codec: %w", err)
	}

	provider := jellyfin.New(cfg.MediaServer.URL, cfg.MediaServer.APIKey, cfg.MediaServerTimeout())

	app.sessions = &service.SessionService{
		Codec:      codec,
		Provider:   provider,
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
	}

	app.registry, err = proxy.NewRegistry(cfg.Apps)
	if err != nil {
		return nil, fmt.Errorf("build app registry: %w", err)
	}

	app.initHTTP()
	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("gateway starting",
		"addr", app.server.Addr,
		"version", BuildVersion,
		"apps", app.registry.Names(),
		"media_server", app.cfg.MediaServer.URL,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gateway...")

	// Give outstanding requests a deadline for completion. Hijacked tunnel
	// connections are outside the server's bookkeeping; Close severs them
	// after the grace period.
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGrace())
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.logger.Info("gateway stopped")
	return nil
}

func (app *Application) initHTTP() {
	proxyHandler := proxy.NewHandler(app.registry, app.cfg.RequestTimeout(), app.logger)

	router := httpapi.NewRouter(
		app.sessions,
		proxyHandler,
		httpapi.CookieConfig{
			AccessName:  app.cfg.Cookies.AccessName,
			RefreshName: app.cfg.Cookies.RefreshName,
			Secure:      app.cfg.Cookies.Secure,
		},
		ServiceName,
		app.logger,
	)
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              net.JoinHostPort(app.cfg.Server.Host, strconv.Itoa(app.cfg.Server.Port)),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
