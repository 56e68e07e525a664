// Package server assembles the HTTP server: middleware chain, gate, routes and lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	healthhandler "crm-dashboard/backend/internal/health/handler"
	identityhandler "crm-dashboard/backend/internal/identity/handler"
	"crm-dashboard/backend/internal/logging"
	"crm-dashboard/backend/internal/platform/httpx"
	"crm-dashboard/backend/internal/server/middleware"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 15 * time.Second
	idleTimeout       = 60 * time.Second
)

// Deps holds what the HTTP server wires together.
type Deps struct {
	// Auth backs the auth, account and admin endpoints. Required.
	Auth identityhandler.AuthService
	// Gate authorizes every request before routing. Required.
	Gate *middleware.Gate
	// Health serves /healthz and /readyz. If nil, probes are not mounted.
	Health *healthhandler.Server
	// SecureCookies sets the Secure attribute on session cookies.
	SecureCookies bool
	// TrustedProxies may set the client address through forwarding headers. Nil trusts nobody.
	TrustedProxies *httpx.TrustedProxies
	// ServiceName names the server spans. Empty means "crm-auth".
	ServiceName string
	Log         *logging.Logger
}

// NewHandler builds the router: request id, client address, logging, recovery, body limit, then the gate, then the routes.
// The whole chain is wrapped in otelhttp so every request gets a span and the standard HTTP metrics.
func NewHandler(deps Deps) (http.Handler, error) {
	if deps.Auth == nil {
		return nil, errors.New("server: auth service is required")
	}
	if deps.Gate == nil {
		return nil, errors.New("server: gate is required")
	}
	log := deps.Log
	if log == nil {
		log = logging.Discard()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP(deps.TrustedProxies))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recover(log))
	r.Use(middleware.BodyLimit(middleware.MaxBodyBytes))
	r.Use(deps.Gate.Handler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	if deps.Health != nil {
		r.Get("/healthz", deps.Health.Live)
		r.Get("/readyz", deps.Health.Ready)
	}
	identityhandler.New(deps.Auth, deps.SecureCookies, log).Mount(r)

	name := deps.ServiceName
	if name == "" {
		name = "crm-auth"
	}
	return otelhttp.NewHandler(r, name,
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/readyz"
		}),
	), nil
}

// New returns an http.Server for addr serving h.
func New(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// Run serves until ctx is cancelled, then shuts down, waiting up to grace for in-flight requests.
func Run(ctx context.Context, srv *http.Server, grace time.Duration, log *logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	log.Info("http server shutting down", "grace", grace.String())
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
