// Package web exposes the HTTP surface: the streaming chat endpoint,
// worker health, and Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/import-ai/omnibox-wizard-sub000/internal/agent"
	"github.com/import-ai/omnibox-wizard-sub000/internal/config"
	"github.com/import-ai/omnibox-wizard-sub000/internal/observability"
	"github.com/import-ai/omnibox-wizard-sub000/internal/worker"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// ChatRunner starts one agent turn and streams its events.
type ChatRunner interface {
	Run(ctx context.Context, req agent.Request) <-chan models.StreamEvent
}

// HealthSource reports worker pool health; *worker.Tracker satisfies it.
type HealthSource interface {
	Snapshot() worker.HealthReport
	AllHealthy() bool
}

// Server is the wizard HTTP server.
type Server struct {
	chat    ChatRunner
	health  HealthSource
	log     *observability.Logger
	metrics *observability.Metrics
	started time.Time

	http *http.Server
}

// NewServer wires the HTTP surface. health and metrics may be nil.
func NewServer(cfg config.ServerConfig, chat ChatRunner, health HealthSource, log *observability.Logger, metrics *observability.Metrics) *Server {
	if log == nil {
		log = observability.NewLogger(observability.LogConfig{})
	}
	s := &Server{
		chat:    chat,
		health:  health,
		log:     log,
		metrics: metrics,
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", s.handleChat)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.HTTPPort)),
		Handler:           s.withRequestLog(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.log.Info(context.Background(), "http server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handleHealth reports liveness plus the worker pool snapshot. An
// unhealthy pool degrades the whole endpoint to 503 so orchestrators
// restart the process.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := struct {
		Status string              `json:"status"`
		Uptime string              `json:"uptime"`
		Worker worker.HealthReport `json:"workers"`
	}{
		Status: "healthy",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}

	status := http.StatusOK
	if s.health != nil {
		payload.Worker = s.health.Snapshot()
		if !s.health.AllHealthy() {
			payload.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// withRequestLog logs every request and records the HTTP metrics.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		elapsed := time.Since(start)
		s.log.Info(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", elapsed,
			"remote_addr", r.RemoteAddr,
		)
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, r.URL.Path, fmt.Sprintf("%d", wrapped.status), elapsed.Seconds())
		}
	})
}

// statusWriter captures the status code for logging. Flush must pass
// through or streaming responses buffer.
type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wrote {
		w.status = status
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
