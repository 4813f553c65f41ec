// Package api serves the admin HTTP API.
//
// Every read of loop state goes through the server's command queue, so
// handlers never touch the session table directly.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marmos91/tinymmo/internal/logger"
	"github.com/marmos91/tinymmo/pkg/ledger"
	"github.com/marmos91/tinymmo/pkg/server"
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 1000

	// requestTimeout bounds how long a handler waits for the loop.
	requestTimeout = 2 * time.Second
)

// Config configures the admin API.
type Config struct {
	// Enabled starts the API server.
	Enabled bool `mapstructure:"enabled"`

	// Port is the TCP port to listen on.
	// Default: 8080
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

// Backend is the loop-facing side of the API. *server.Server implements it.
type Backend interface {
	Status(ctx context.Context) (server.Status, error)
	Clients(ctx context.Context) ([]server.ClientInfo, error)
	Client(ctx context.Context, id uuid.UUID) (server.ClientInfo, bool, error)
	Kick(ctx context.Context, id uuid.UUID) (bool, error)
}

// Server is the admin HTTP server.
type Server struct {
	backend      Backend
	ledger       ledger.Store
	router       *gin.Engine
	http         *http.Server
	port         int
	shutdownOnce sync.Once
}

// New creates the API server in a stopped state. store may be nil when the
// ledger is disabled.
func New(cfg Config, backend Backend, store ledger.Store) *Server {
	if cfg.Port <= 0 {
		cfg.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery())

	s := &Server{
		backend: backend,
		ledger:  store,
		router:  router,
		port:    cfg.Port,
	}
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.health)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.getStatus)

		v1.GET("/clients", s.getClients)
		v1.GET("/clients/:id", s.getClient)
		v1.DELETE("/clients/:id", s.kickClient)
		v1.GET("/clients/:id/history", s.getClientHistory)

		v1.GET("/ledger", s.getLedger)
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.port
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Admin API listening on port %d", s.port)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("admin API failed: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.http.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("admin API shutdown error: %w", err)
			logger.Error("Admin API shutdown error: %v", err)
		} else {
			logger.Info("Admin API stopped")
		}
	})
	return shutdownErr
}

// requestLogger logs each request at DEBUG through the process logger.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("API %s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
