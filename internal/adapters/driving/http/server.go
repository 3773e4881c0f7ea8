package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/signdesk/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	signingService driving.SigningService
	handoffService driving.HandoffService
	renderService  driving.RenderService

	// Infrastructure checks reported by /ready, keyed by name
	checks map[string]Pinger

	allowedOrigins []string
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		AllowedOrigins: []string{"*"},
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	signingService driving.SigningService,
	handoffService driving.HandoffService,
	renderService driving.RenderService,
	checks map[string]Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:         http.NewServeMux(),
		version:        cfg.Version,
		logger:         logger,
		signingService: signingService,
		handoffService: handoffService,
		renderService:  renderService,
		checks:         checks,
		allowedOrigins: cfg.AllowedOrigins,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = NewCORSMiddleware(s.allowedOrigins).Handler(h)
	h = NewLoggingMiddleware(s.logger).Handler(h)
	h = NewRecoveryMiddleware(s.logger).Handler(h)
	return h
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	capture := NewCaptureMiddleware()

	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Templates and signing sessions (primary device)
	s.router.HandleFunc("GET /api/v1/templates/{id}", s.handleGetTemplate)
	s.router.HandleFunc("POST /api/v1/templates/{id}/sessions", s.handleLoadSession)
	s.router.HandleFunc("GET /api/v1/sessions/{id}", s.handleGetSession)
	s.router.HandleFunc("DELETE /api/v1/sessions/{id}", s.handleCloseSession)
	s.router.HandleFunc("PUT /api/v1/sessions/{id}/fields/{fieldID}", s.handleSetFieldValue)
	s.router.HandleFunc("POST /api/v1/sessions/{id}/advance", s.handleAdvance)
	s.router.HandleFunc("GET /api/v1/sessions/{id}/validation", s.handleValidate)
	s.router.HandleFunc("POST /api/v1/sessions/{id}/submit", s.handleSubmit)

	// Hand-off (primary device side)
	s.router.HandleFunc("POST /api/v1/sessions/{id}/handoff", s.handleBeginHandoff)
	s.router.HandleFunc("GET /api/v1/sessions/{id}/handoff/events", s.handleHandoffEvents)
	s.router.HandleFunc("GET /api/v1/handoffs/{id}/qr.png", s.handleHandoffQR)

	// Capture (secondary device side), authorised by the hand-off token
	s.router.Handle("GET /api/v1/capture", capture.Authenticate(http.HandlerFunc(s.handleOpenCapture)))
	s.router.Handle("POST /api/v1/capture", capture.Authenticate(http.HandlerFunc(s.handleCompleteCapture)))
	s.router.Handle("POST /api/v1/capture/cancel", capture.Authenticate(http.HandlerFunc(s.handleCancelCapture)))

	// Signed documents
	s.router.HandleFunc("GET /api/v1/signed-documents/{id}", s.handleGetSignedDocument)
	s.router.HandleFunc("GET /api/v1/signed-documents/{id}/pdf", s.handleDownloadPDF)
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
