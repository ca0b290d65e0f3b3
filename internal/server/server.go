package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/domain/storage"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/pkg/config"
)

// Server holds the dependencies for the HTTP server
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	store  storage.Store
	router http.Handler
	ready  atomic.Bool
}

// New creates a new Server instance with the configured storage backend
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	store, err := storage.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	return &Server{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}, nil
}

// Bootstrap prepares the store for traffic: schema init, reference
// seeding when the catalogue is empty, and a first prune of expired
// locations. /health reports ready only after this completes.
func (s *Server) Bootstrap(ctx context.Context) error {
	if err := s.store.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := s.store.SeedFromReferenceIfEmpty(ctx); err != nil {
		return fmt.Errorf("failed to seed reference data: %w", err)
	}

	pruned, err := s.store.PruneExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to prune expired locations: %w", err)
	}
	if pruned > 0 {
		s.logger.Info("Pruned expired locations at startup", zap.Int64("count", pruned))
	}

	s.ready.Store(true)
	s.logger.Info("Storage bootstrap completed",
		zap.String("backend", string(s.cfg.Storage.Backend)))
	return nil
}

// HTTPServer creates and configures the HTTP server
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         ":" + s.cfg.ServerPort,
		Handler:      s.router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// SetRouter sets the HTTP router/handler
func (s *Server) SetRouter(router http.Handler) {
	s.router = router
}

// Store returns the storage backend
func (s *Server) Store() storage.Store {
	return s.store
}

// Ready exposes the readiness flag for the health endpoint
func (s *Server) Ready() *atomic.Bool {
	return &s.ready
}

// Close closes all server resources
func (s *Server) Close() {
	if s.store != nil {
		if err := s.store.Close(context.Background()); err != nil {
			s.logger.Warn("Failed to close storage", zap.Error(err))
		}
	}
}
