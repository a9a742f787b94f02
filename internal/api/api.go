// Package api provides HTTP handlers and the main API server logic for PrepVox.
//
// It exposes RESTful endpoints for accounts, interview records, feedback
// display, and live call sessions. The API integrates with the store, auth,
// interview, and transport modules.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prepvox/PrepVox/internal/auth"
	"github.com/prepvox/PrepVox/internal/genai"
	"github.com/prepvox/PrepVox/internal/interview"
	"github.com/prepvox/PrepVox/internal/store"
	"github.com/prepvox/PrepVox/internal/transport"
)

const (
	// DefaultAddr is the default API listen address.
	DefaultAddr = ":8080"
	// DefaultSessionRetention is how long a finished session stays queryable
	// before it is dropped from the registry.
	DefaultSessionRetention = 10 * time.Minute
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr              string
	SessionServiceURL string
	SessionServiceKey string
	SessionRetention  time.Duration
	TransportFactory  func() (transport.Service, error)
}

// Option defines a functional option for configuring the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithSessionService sets the voice session service endpoint and API key.
func WithSessionService(url, apiKey string) Option {
	return func(o *Opts) {
		o.SessionServiceURL = url
		o.SessionServiceKey = apiKey
	}
}

// WithSessionRetention overrides how long finished sessions stay queryable.
func WithSessionRetention(d time.Duration) Option {
	return func(o *Opts) {
		o.SessionRetention = d
	}
}

// WithTransportFactory overrides how per-session transports are built.
// Used by tests to substitute a mock session service.
func WithTransportFactory(f func() (transport.Service, error)) Option {
	return func(o *Opts) {
		o.TransportFactory = f
	}
}

// Server is the PrepVox API server.
type Server struct {
	addr             string
	st               store.Store
	auth             *auth.Service
	interviews       *interview.Service
	generator        *interview.Generator
	targets          interview.Targets
	newTransport     func() (transport.Service, error)
	sessionRetention time.Duration
	sessions         *sessionRegistry
	httpServer       *http.Server
}

// NewServer wires the API server from its dependencies.
func NewServer(st store.Store, authSvc *auth.Service, gaClient genai.ClientInterface, targets interview.Targets, opts ...Option) *Server {
	cfg := Opts{
		Addr:             DefaultAddr,
		SessionRetention: DefaultSessionRetention,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	factory := cfg.TransportFactory
	if factory == nil && cfg.SessionServiceURL != "" {
		url, key := cfg.SessionServiceURL, cfg.SessionServiceKey
		factory = func() (transport.Service, error) {
			return transport.NewWSClient(transport.WithURL(url), transport.WithAPIKey(key))
		}
	}
	if factory == nil {
		slog.Warn("Server: no session service configured, call sessions disabled")
	}

	return &Server{
		addr:             cfg.Addr,
		st:               st,
		auth:             authSvc,
		interviews:       interview.NewService(st),
		generator:        interview.NewGenerator(gaClient, st),
		targets:          targets,
		newTransport:     factory,
		sessionRetention: cfg.SessionRetention,
		sessions:         newSessionRegistry(),
	}
}

// Handler builds the chi route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.healthHandler)
	r.Post("/auth/signup", s.signupHandler)
	r.Post("/auth/signin", s.signinHandler)
	r.Post("/auth/signout", s.signoutHandler)

	// Feedback display authenticates itself and redirects instead of
	// returning a 401 envelope.
	r.Get("/interviews/{id}/feedback", s.feedbackViewHandler)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.RequireAuth)

		r.Get("/auth/me", s.meHandler)

		r.Get("/interviews", s.listInterviewsHandler)
		r.Get("/interviews/latest", s.latestInterviewsHandler)
		r.Post("/interviews", s.createInterviewHandler)
		r.Get("/interviews/{id}", s.getInterviewHandler)

		r.Post("/sessions", s.startSessionHandler)
		r.Get("/sessions/{id}", s.getSessionHandler)
		r.Post("/sessions/{id}/stop", s.stopSessionHandler)
	})

	return r
}

// Run starts the HTTP server and blocks until the context is canceled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("PrepVox API listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("PrepVox API shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("API server shutdown failed: %w", err)
		}
		return nil
	}
}
