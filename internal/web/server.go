// Package web exposes the waitlist JSON API: submission, the live counter
// and stats, and an email availability probe. The browser UI is rendered
// elsewhere; this package is the only server-side surface it talks to.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/example/waitlist-service/internal/config"
	"github.com/example/waitlist-service/internal/store"
)

// Server is the HTTP server for the waitlist API.
type Server struct {
	client store.Client
	logger zerolog.Logger
	router *chi.Mux
	server *http.Server
}

// NewServer wires the router and handlers around a submission store.
func NewServer(client store.Client, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	if client == nil {
		return nil, errors.New("web: store client is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	s := &Server{
		client: client,
		logger: logger,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api/waitlist", func(r chi.Router) {
		r.Post("/", s.handleSubmit)
		r.Get("/count", s.handleCount)
		r.Get("/stats", s.handleStats)
		r.Get("/email-available", s.handleEmailAvailable)
	})
	s.router.Get("/healthz", s.handleHealth)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving requests until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("web: listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
