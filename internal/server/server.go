package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/pkg/constants"
)

// HTTPRecorder receives per-request telemetry. PrometheusMetrics implements it.
type HTTPRecorder interface {
	RecordHTTPRequest(method, path, status string, duration time.Duration)
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	logger     *logrus.Logger
	config     *Config
	handlers   *Handlers
	metrics    HTTPRecorder
}

// NewServer creates a new HTTP server instance. metrics may be nil.
func NewServer(config *Config, handlers *Handlers, metrics HTTPRecorder, logger *logrus.Logger) (*Server, error) {
	if config == nil {
		config = getDefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logrus.New()
	}

	if handlers == nil {
		var err error
		handlers, err = NewHandlers(HandlersConfig{MaxRecords: config.MaxRecords, MaxK: config.MaxK}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create API handlers: %w", err)
		}
	}

	server := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		config:   config,
		handlers: handlers,
		metrics:  metrics,
	}

	server.setupRoutes()
	server.setupMiddleware()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      server.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return server, nil
}

// Start serves until Stop is called; it returns http.ErrServerClosed after a clean stop
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("address", s.httpServer.Addr).Info("Starting HTTP server")

	if s.config.TLSCertFile != "" && s.config.TLSKeyFile != "" {
		s.logger.Info("Serving HTTPS")
		return s.httpServer.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
	}

	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.WithError(err).Error("Error shutting down HTTP server")
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.router
}

// GetConfig returns the server configuration
func (s *Server) GetConfig() *Config {
	return s.config
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handlers.Health).Methods(http.MethodGet)
	s.router.HandleFunc("/version", s.handlers.Version).Methods(http.MethodGet)

	post := []string{http.MethodPost}
	if s.config.EnableCORS {
		post = append(post, http.MethodOptions)
	}

	api := s.router.PathPrefix(constants.APIPrefix).Subrouter()
	api.HandleFunc("/search", s.handlers.Search).Methods(post...)
	api.HandleFunc("/anonymize", s.handlers.Anonymize).Methods(post...)
	api.HandleFunc("/reports", s.handlers.ListReports).Methods(http.MethodGet)
	api.HandleFunc("/reports/{id}", s.handlers.GetReport).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(s.handlers.NotFound)
}

// setupMiddleware installs middleware outermost first
func (s *Server) setupMiddleware() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
	if s.metrics != nil {
		s.router.Use(s.metricsMiddleware)
	}
	if s.config.EnableCORS {
		s.router.Use(s.corsMiddleware)
	}
	s.router.Use(s.requestSizeLimitMiddleware)
}
