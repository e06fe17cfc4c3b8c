package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/docbench/docbench/internal/api"
	"github.com/docbench/docbench/internal/config"
	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/home"
	"github.com/docbench/docbench/internal/metrics"
	"github.com/docbench/docbench/internal/server/endpoints"
	"github.com/docbench/docbench/internal/store"
	"github.com/docbench/docbench/internal/svcctx"
	"github.com/docbench/docbench/internal/tools"
)

// Server is the main Docbench HTTP server. It owns the result store for its
// lifetime - opening it on start and closing it on shutdown - and serves
// read and re-score operations over persisted runs.
type Server struct {
	httpServer *http.Server
	store      *store.Store
	registry   *tools.Registry
	suite      *metrics.Suite
	corpus     *corpus.Loader
	configMgr  *config.Manager
	home       *home.Dir
	paths      config.ResolvedPaths
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Home is the docbench home directory used for path fallbacks
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// SwaggerSpecPath overrides the OpenAPI spec location
	SwaggerSpecPath string
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		h, err := home.New("")
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		cfg.Home = h
	}

	conf := config.DefaultConfig()
	if cfg.ConfigManager != nil {
		conf = cfg.ConfigManager.Get()
	}

	// Create tool registry
	registry := tools.NewRegistry()
	registry.SetLogger(cfg.Logger)
	registry.Reload(conf.ToRegistryConfig())

	// If config manager provided, reload tools on config changes
	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			registry.Reload(c.ToRegistryConfig())
			cfg.Logger.Info("tool registry reloaded from config")
		})
	}

	suite := metrics.NewSuite(metrics.SuiteConfig{
		Providers: metrics.ConfiguredProviders(metrics.LayoutConfig{MinIoU: conf.Metrics.MinIoU}),
		Logger:    cfg.Logger,
	})

	s := &Server{
		registry:  registry,
		suite:     suite,
		configMgr: cfg.ConfigManager,
		home:      cfg.Home,
		paths:     conf.ResolvePaths(cfg.Home),
		logger:    cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{SwaggerSpecPath: cfg.SwaggerSpecPath}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start opens the store and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	// Open the result store
	if err := os.MkdirAll(filepath.Dir(s.paths.StorePath), 0o755); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	st, err := store.Open(s.paths.StorePath, s.logger)
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to open store: %w", err)
	}
	s.store = st
	s.logger.Info("store open", "path", s.paths.StorePath)

	// The corpus loader backs re-scoring; construction compiles the ground
	// truth schema but touches no files.
	loader, err := corpus.NewLoader(s.paths.CorpusDir, s.paths.GroundTruthDir, s.logger)
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to create corpus loader: %w", err)
	}
	s.corpus = loader

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		Store:        s.store,
		Registry:     s.registry,
		Suite:        s.suite,
		Corpus:       s.corpus,
		Logger:       s.logger,
		Home:         s.home,
		PipelinesDir: s.paths.PipelinesDir,
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown() // Release the store on HTTP error
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server and the store.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Close the store
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("store close error", "error", err)
		}
		s.store = nil
	}
	s.services = nil

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the tool registry.
func (s *Server) Registry() *tools.Registry {
	return s.registry
}

// Store returns the result store.
// Returns nil when the server hasn't started yet.
func (s *Server) Store() *store.Store {
	return s.store
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the store is open.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
