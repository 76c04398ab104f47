// Package health provides the HTTP health check endpoints.
//
// Docker and Kubernetes probe these endpoints to monitor the daemon:
// /healthz reports liveness, /readyz reports readiness. Readiness is the
// conjunction of named components (bus, gateway) registered at startup.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Server is a lightweight HTTP server exposing /healthz and /readyz.
type Server struct {
	port   int
	server *http.Server

	mu         sync.RWMutex
	components map[string]bool
}

// New creates a new health check server.
func New(port int) *Server {
	return &Server{port: port, components: map[string]bool{}}
}

// SetComponent records the readiness of a named component. The daemon is
// ready only when every registered component is.
func (s *Server) SetComponent(name string, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components[name] = ready
}

func (s *Server) ready() (bool, map[string]bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string]bool, len(s.components))
	all := len(s.components) > 0
	for name, ok := range s.components {
		snapshot[name] = ok
		all = all && ok
	}
	return all, snapshot
}

// ListenAndServe starts the health check HTTP server.
// It blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ready, components := s.ready()
		status := map[string]any{"components": components}
		if !ready {
			status["status"] = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			status["status"] = "ok"
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(status)
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("health server listening", "port", s.port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
