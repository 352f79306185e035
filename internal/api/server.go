package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/wardrockay/followup-engine/internal/config"
	"github.com/wardrockay/followup-engine/internal/resilience"
	"github.com/wardrockay/followup-engine/internal/service/followup"
)

// Server wraps the followup engine's HTTP surface.
type Server struct {
	cfg     config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer wires handlers, health checks, and rate limiting into a
// router and returns the composed Server.
func NewServer(cfg config.ServerConfig, service *followup.Service, store storePinger, breakers *resilience.Registry, limiter *resilience.RateLimiter, logger zerolog.Logger) *Server {
	handlers := NewHandlers(service, logger)
	healthChecker := NewHealthChecker(store, breakers)
	router := SetupRoutes(handlers, healthChecker, limiter)

	return &Server{cfg: cfg, handler: router}
}

// ListenAndServe starts the HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      75 * time.Second, // covers the 65s composer timeout plus margin
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}
