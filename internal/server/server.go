// Package server provides the HTTP server for the Drishti face recognition
// service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayusman/drishti/internal/app"
	"github.com/ayusman/drishti/internal/server/api"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	// App is optional; without it only health and static files are served.
	App    *app.App
	Logger *slog.Logger
	// StreamInterval is the MJPEG frame period.
	StreamInterval time.Duration
}

// Server represents the HTTP server for the Drishti application.
type Server struct {
	config Config
	log    *slog.Logger
	mux    *http.ServeMux
	start  time.Time
	hub    *ResultsHub
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	s := &Server{
		config: config,
		log:    config.Logger,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if a := s.config.App; a != nil {
		faces := api.NewFaceHandler(a)
		s.mux.Handle("/api/faces", faces)
		s.mux.Handle("/api/faces/", faces)
		s.mux.Handle("/api/settings", api.NewSettingsHandler(a))

		if a.Store() != nil {
			s.mux.Handle("/api/sightings", api.NewSightingHandler(a.Store()))
		}

		s.mux.Handle("/api/stream", NewStreamHandler(a, s.config.StreamInterval))

		s.hub = NewResultsHub(s.log)
		a.OnResults(s.hub.Publish)
		s.mux.Handle("/api/results", s.hub)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type healthResponse struct {
	Status    string     `json:"status"`
	Uptime    string     `json:"uptime"`
	Enabled   *bool      `json:"enabled,omitempty"`
	Faces     *int       `json:"faces,omitempty"`
	Threshold *float64   `json:"threshold,omitempty"`
	Stats     *app.Stats `json:"stats,omitempty"`
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := healthResponse{
		Status: "ok",
		Uptime: time.Since(s.start).Round(time.Second).String(),
	}
	if a := s.config.App; a != nil {
		enabled := a.IsEnabled()
		faces := a.Gallery().Len()
		threshold := a.Threshold()
		stats := a.Stats()
		response.Enabled = &enabled
		response.Faces = &faces
		response.Threshold = &threshold
		response.Stats = &stats
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully
// and disconnects WebSocket clients.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("http server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.hub != nil {
		s.hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
