package ops

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/tgtkeep/internal/logger"
	"github.com/marmos91/tgtkeep/pkg/config"
)

// Server provides the ops HTTP surface for sidecar mode.
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server          *http.Server
	manager         TicketManager
	config          config.OpsConfig
	shutdownTimeout time.Duration
	shutdownOnce    sync.Once
}

// NewServer creates a new ops HTTP server.
//
// shutdownTimeout bounds the graceful drain when Start's context is
// cancelled; non-positive values fall back to 5 seconds.
//
// The server is created in a stopped state. Call Start() to begin
// serving requests.
func NewServer(cfg config.OpsConfig, m TicketManager, shutdownTimeout time.Duration) *Server {
	router := NewRouter(m)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}

	return &Server{
		server:          server,
		manager:         m,
		config:          cfg,
		shutdownTimeout: shutdownTimeout,
	}
}

// Start starts the ops HTTP server and blocks until the context is
// cancelled or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and
// returns nil; a listen failure is returned as an error.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("ops server listening", "port", s.config.Port)
		logger.Debug("ops endpoints available",
			"health", fmt.Sprintf("http://localhost:%d/health", s.config.Port),
			"ticket", fmt.Sprintf("http://localhost:%d/api/v1/ticket", s.config.Port),
		)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("ops server shutdown signal received")
		// Fresh context: the cancelled ctx would abort the drain
		// immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("ops server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the ops server.
//
// Stop is safe to call multiple times and concurrently with Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("ops server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("ops server shutdown error: %w", err)
			logger.Error("ops server shutdown error", logger.KeyError, err.Error())
		} else {
			logger.Info("ops server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is configured to listen on.
func (s *Server) Port() int {
	return s.config.Port
}
