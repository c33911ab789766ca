// Package health serves the engine's state over HTTP: a liveness summary,
// the latest metrics snapshot, the TPS history, and Prometheus metrics.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/blockfeed/internal/engine"
	"github.com/vietddude/blockfeed/internal/metrics"
)

// SystemStatus represents the overall health state of the engine.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
)

// Server provides HTTP endpoints for status monitoring.
type Server struct {
	eng    *engine.Engine
	agg    *metrics.Aggregator
	server *http.Server
}

// NewServer creates a new status server.
func NewServer(eng *engine.Engine, agg *metrics.Aggregator, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		eng: eng,
		agg: agg,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/history", s.handleHistory)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := StatusHealthy
	if !s.eng.Connected() {
		status = StatusDegraded
	}

	snap, _ := s.eng.Bus().LastSnapshot()
	response := map[string]any{
		"status":      string(status),
		"connected":   snap.Connected,
		"backfilling": snap.Backfilling,
		"height":      snap.BlockHeight,
	}

	w.Header().Set("Content-Type", "application/json")
	if status == StatusDegraded {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.eng.Bus().LastSnapshot()
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "no snapshot yet"})
		return
	}
	json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.agg.History())
}
