// Package server provides the HTTP API: the streaming research endpoint and
// the saved report endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonathan/research-agent/internal/db"
	"github.com/jonathan/research-agent/internal/pipeline"
)

// DefaultRunTimeout bounds one research run.
const DefaultRunTimeout = 60 * time.Second

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	engine     *pipeline.Engine
	store      db.Store
	logger     *zap.Logger
	validate   *validator.Validate
	runTimeout time.Duration
}

// Config holds server configuration
type Config struct {
	Port       int
	RunTimeout time.Duration
}

// New creates a server around an engine and a report store.
func New(cfg Config, engine *pipeline.Engine, store db.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}

	s := &Server{
		engine:     engine,
		store:      store,
		logger:     logger,
		validate:   newValidator(),
		runTimeout: cfg.RunTimeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/research", s.handleResearch)
	mux.HandleFunc("/api/research", s.handleMethodNotAllowed)
	mux.HandleFunc("GET /api/reports", s.handleListReports)
	mux.HandleFunc("DELETE /api/reports", s.handleDeleteReports)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.withLogging(s.withCORS(mux)),
		ReadTimeout: 30 * time.Second,
		// Streams end on their own once the run budget is spent.
		WriteTimeout: cfg.RunTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}

	s.logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops accepting requests and waits for in-flight runs.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("error encoding JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
