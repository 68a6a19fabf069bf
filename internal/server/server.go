// Package server provides the HTTP server for the roomcount service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ayusman/roomcount/internal/metrics"
	"github.com/ayusman/roomcount/internal/occupancy"
	"github.com/ayusman/roomcount/internal/server/api"
	"github.com/ayusman/roomcount/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Config holds the configuration for the HTTP server.
type Config struct {
	StaticDir string
	UploadDir string
	// Manager enables the job, status and legacy routes when set.
	Manager *occupancy.Manager
	// Store enables the saved-source routes and persists tunable changes.
	Store   *store.Store
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// DetectorReady is reported by the health check.
	DetectorReady bool
	// StatusInterval is the websocket push period. Zero means one second.
	StatusInterval time.Duration
	// CountingDefaults are restored when the stored counting override is
	// cleared. The reference tunables are used when unset.
	CountingDefaults occupancy.Tunables
}

// Server is the HTTP server for the roomcount API.
type Server struct {
	config  Config
	mux     *http.ServeMux
	handler http.Handler
	logger  *slog.Logger
	stream  *StatusStream
	start   time.Time
}

// New creates a new Server with the given configuration.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
		logger: logger.With("component", "server"),
		start:  time.Now(),
	}
	s.setupRoutes()
	s.handler = withCORS(s.mux)
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Manager != nil {
		jobs := api.NewJobHandler(s.config.Manager, s.config.Store, s.config.UploadDir, s.config.Logger)
		s.mux.Handle("/api/jobs", jobs)
		s.mux.Handle("/api/jobs/", jobs)
		s.mux.Handle("/api/status", api.NewStatusHandler(s.config.Manager))

		s.stream = NewStatusStream(s.config.Manager, s.config.StatusInterval, s.config.Logger)
		s.mux.Handle("/api/status/ws", s.stream)

		s.mux.Handle("/api/settings/counting", api.NewSettingsHandler(s.config.Store, s.config.Manager, s.config.CountingDefaults, s.config.Logger))

		legacy := api.NewLegacyHandler(jobs)
		for _, path := range []string{"/process_video_url", "/process_video_file", "/count", "/health"} {
			s.mux.Handle(path, legacy)
		}
	}

	if s.config.Store != nil {
		sources := api.NewSourceHandler(s.config.Store)
		s.mux.Handle("/api/sources", sources)
		s.mux.Handle("/api/sources/", sources)
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics.Handler())
	}

	// Static files
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)
	response := map[string]any{
		"status":         "ok",
		"uptime":         uptime.String(),
		"detector_ready": s.config.DetectorReady,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("http server listening", "address", listener.Addr().String())

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// Hijacked websocket connections are not tracked by Shutdown.
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// Close stops the status stream and disconnects its clients.
func (s *Server) Close() {
	if s.stream != nil {
		s.stream.Close()
	}
}

// withCORS allows browser clients on any origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
