// Package server provides the HTTP server of the scan gateway.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/yourorg/scan-gateway/internal/server/handlers"
	"github.com/yourorg/scan-gateway/internal/server/middleware"
)

// UserService is what the server needs from the user service: the handler
// surface plus token authentication.
type UserService interface {
	handlers.UserService
	middleware.Authenticator
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	scans  handlers.ScanService
	users  UserService
	db     handlers.Pinger
	logger *zerolog.Logger
	config Config
}

// New creates a new server instance with the given configuration.
func New(cfg Config, scans handlers.ScanService, users UserService, db handlers.Pinger, logger *zerolog.Logger) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	return &Server{scans: scans, users: users, db: db, logger: logger, config: cfg}
}

// Handler returns the configured http.Handler with middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shctx); err != nil {
		return err
	}
	return <-errc
}
