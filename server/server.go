// Package server implements the sitetrack HTTP server: the REST API over the
// project store, the SSE stream of store events and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/GoCodeAlone/sitetrack/activity"
	"github.com/GoCodeAlone/sitetrack/config"
	"github.com/GoCodeAlone/sitetrack/events"
	"github.com/GoCodeAlone/sitetrack/project"
	"github.com/GoCodeAlone/sitetrack/server/api"
	"github.com/GoCodeAlone/sitetrack/server/ws"
	"github.com/GoCodeAlone/sitetrack/suggest"
)

// Server is the sitetrack HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	store     project.Store
	bus       events.Bus
	activity  activity.Log
	suggester suggest.Suggester
	hub       *ws.Hub
	metrics   *metrics

	mu      sync.Mutex // guards httpSrv, detach, routed and stopped
	detach  []func()
	routed  bool
	stopped bool

	startTime time.Time
	version   string
}

// New creates a new Server with the given config and logger.
func New(cfg config.Config, ver string, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger,
		hub:       ws.NewHub(logger),
		metrics:   newMetrics(),
		startTime: time.Now(),
		version:   ver,
	}
}

// SetStore attaches the project store to the server.
func (s *Server) SetStore(store project.Store) {
	s.store = store
}

// SetBus attaches the event bus; store events are streamed to SSE clients.
func (s *Server) SetBus(bus events.Bus) {
	s.bus = bus
}

// SetActivityLog attaches the persistent activity log.
func (s *Server) SetActivityLog(log activity.Log) {
	s.activity = log
}

// SetSuggester attaches the subtask suggestion service.
func (s *Server) SetSuggester(sg suggest.Suggester) {
	s.suggester = sg
}

// SetStaticFS serves fsys for every path not claimed by the API, e.g. a
// dashboard build. Call before Start.
func (s *Server) SetStaticFS(fsys fs.FS) {
	s.mux.Handle("GET /", http.FileServerFS(fsys))
}

// Handler registers routes (once) and returns the root handler.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	if !s.routed {
		s.registerRoutes()
		s.routed = true
	}
	s.mu.Unlock()
	return s.requestMiddleware(s.mux)
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":9090"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return http.ErrServerClosed
	}
	s.httpSrv = srv
	s.mu.Unlock()

	s.logger.Info("server listening", slog.String("addr", addr))
	return srv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server and detaches from the bus.
// It is safe to call concurrently with Start; a Start that has not begun
// listening yet returns http.ErrServerClosed.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	detach := s.detach
	s.detach = nil
	srv := s.httpSrv
	s.mu.Unlock()

	for _, fn := range detach {
		fn()
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes. Callers hold mu.
func (s *Server) registerRoutes() {
	h := &api.Handlers{
		Store:     s.store,
		Suggester: s.suggester,
		Activity:  s.activity,
		Bus:       s.bus,
		Logger:    s.logger,
		Version:   s.version,
		StartAt:   s.startTime,
	}
	h.RegisterRoutes(s.mux)

	if s.bus != nil && !s.stopped {
		s.detach = append(s.detach, s.hub.Attach(s.bus), s.metrics.attach(s.bus))
	}
	s.mux.HandleFunc("GET /events", s.hub.ServeSSE)
	s.mux.Handle("GET /metrics", s.metrics.handler())
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
