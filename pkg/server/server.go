// Package server provides the HTTP API server for the bastion
// firewall decision service.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"sentinel-hq/bastion/pkg/config"
	"sentinel-hq/bastion/pkg/evaluation"
	"sentinel-hq/bastion/pkg/policystore"
	"sentinel-hq/bastion/pkg/server/handlers"
	"sentinel-hq/bastion/pkg/server/middleware"
	"sentinel-hq/bastion/pkg/telemetry/metrics"
)

// Server is the HTTP API server.
type Server struct {
	config       *config.ServerConfig
	evaluator    *evaluation.Evaluator
	policies     policystore.Store
	collector    *metrics.Collector
	metricsPath  string
	version      string
	logger       *slog.Logger
	handler      http.Handler
	limiter      *middleware.RateLimiter
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Options contains the collaborators a Server needs.
type Options struct {
	Config      *config.ServerConfig
	Evaluator   *evaluation.Evaluator
	Policies    policystore.Store
	Collector   *metrics.Collector
	MetricsPath string
	Version     string
	Logger      *slog.Logger
}

// New creates an API server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:       opts.Config,
		evaluator:    opts.Evaluator,
		policies:     opts.Policies,
		collector:    opts.Collector,
		metricsPath:  opts.MetricsPath,
		version:      opts.Version,
		logger:       logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}
	s.handler = s.setupRoutes()
	return s
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}
	if s.config.TLS.Enabled {
		s.httpServer.TLSConfig = &tls.Config{
			MinVersion: tlsMinVersion(s.config.TLS.MinVersion),
		}
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server",
			"address", s.config.ListenAddress,
			"tls", s.config.TLS.Enabled,
		)

		var err error
		if s.config.TLS.Enabled {
			err = s.httpServer.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}
		if s.limiter != nil {
			s.limiter.Stop()
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("API server stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	connectionHandler := handlers.NewConnectionHandler(s.evaluator, s.logger)
	policyHandler := handlers.NewPolicyHandler(s.policies, s.logger)
	healthHandler := handlers.NewHealthHandler(s.version)

	mux.HandleFunc("POST /connection", connectionHandler.Evaluate)
	mux.HandleFunc("GET /connection/{id}", connectionHandler.Get)
	mux.HandleFunc("POST /policy", policyHandler.Create)
	mux.HandleFunc("GET /policy", policyHandler.List)
	mux.HandleFunc("GET /policy/{id}", policyHandler.Get)
	mux.HandleFunc("PUT /policy/{id}", policyHandler.Update)
	mux.HandleFunc("DELETE /policy/{id}", policyHandler.Delete)
	mux.HandleFunc("GET /health", healthHandler.Check)

	if s.collector != nil && s.metricsPath != "" {
		mux.Handle("GET "+s.metricsPath, s.collector.Handler())
	}

	var handler http.Handler = mux

	handler = middleware.Timeout(s.config.RequestTimeout)(handler)
	handler = middleware.CORS(s.corsConfig())(handler)
	if s.config.RateLimit.Enabled {
		s.limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: s.config.RateLimit.RequestsPerSecond,
			Burst:             s.config.RateLimit.Burst,
		})
		handler = s.limiter.Middleware()(handler)
	}
	handler = middleware.Metrics(s.collector)(handler)
	handler = middleware.Logging(s.logger)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(handler)

	return handler
}

// tlsMinVersion maps the configured version string to a tls constant.
// Validation already restricted the value; anything else gets 1.2.
func tlsMinVersion(v string) uint16 {
	if v == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

// corsConfig converts config.CORSConfig to middleware.CORSConfig.
func (s *Server) corsConfig() *middleware.CORSConfig {
	return &middleware.CORSConfig{
		Enabled:        s.config.CORS.Enabled,
		AllowedOrigins: s.config.CORS.AllowedOrigins,
		AllowedMethods: s.config.CORS.AllowedMethods,
		AllowedHeaders: s.config.CORS.AllowedHeaders,
	}
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the HTTP handler built when the server was created.
func (s *Server) Handler() http.Handler {
	return s.handler
}
