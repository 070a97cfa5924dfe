// Package server provides the HTTP surface: health, recorded sessions,
// landmark topology and the live landmark websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/holistic/internal/server/api"
	"github.com/ayusman/holistic/internal/store"
)

// Config holds the server configuration. Optional parts left nil disable
// their routes.
type Config struct {
	StaticDir string
	Store     *store.Store
	Hub       *Hub
	Snapshots api.SnapshotSource
	Logger    *zap.Logger
}

// Server is the HTTP server.
type Server struct {
	config  Config
	mux     *http.ServeMux
	handler http.Handler
	start   time.Time
	log     *zap.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    log,
	}
	s.setupRoutes()
	s.handler = withLogging(log, s.mux)
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/api/topology", api.TopologyHandler())

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	if s.config.Snapshots != nil {
		s.mux.Handle("/api/snapshot", api.NewSnapshotHandler(s.config.Snapshots))
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/landmarks", s.config.Hub)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Hub != nil {
		response["clients"] = s.config.Hub.Clients()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.config.Hub != nil {
		s.config.Hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
