// Package health exposes RPC provider health and Prometheus metrics over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/escalator/internal/infra/rpc/provider"
)

// SystemStatus represents the overall health state of the process.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report is the body of /health/detailed.
type Report struct {
	Status    SystemStatus                     `json:"status"`
	Providers map[string]provider.HealthStatus `json:"providers"`
}

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	providers []provider.Provider
	server    *http.Server
}

// NewServer creates a new health server listening on addr.
func NewServer(addr string, providers ...provider.Provider) *Server {
	mux := http.NewServeMux()
	s := &Server{
		providers: providers,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler returns the server's mux.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Stop is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Check builds the current report. The worst provider wins.
func (s *Server) Check() Report {
	report := Report{Status: StatusHealthy, Providers: make(map[string]provider.HealthStatus)}

	for _, p := range s.providers {
		h := p.GetHealth()
		report.Providers[p.GetName()] = h

		switch h.Status {
		case provider.StatusDown:
			report.Status = StatusCritical
		case provider.StatusDegraded, provider.StatusThrottled:
			if report.Status != StatusCritical {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.Check()

	response := map[string]string{"status": string(report.Status)}
	w.Header().Set("Content-Type", "application/json")

	if report.Status == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Check())
}
