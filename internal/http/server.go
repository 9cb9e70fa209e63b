// Package http serves health, readiness and Prometheus metrics endpoints.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"playlistfiller/internal/core"
)

const shutdownTimeout = 10 * time.Second

// Server exposes health, readiness and metrics while watch mode runs.
type Server struct {
	config *core.ServerConfig
	logger *zap.Logger
	server *http.Server
	ready  *atomic.Bool
}

// NewServer builds the server; /metrics exposes the collectors of gatherer.
func NewServer(config *core.ServerConfig, logger *zap.Logger, gatherer prometheus.Gatherer) *Server {
	ready := &atomic.Bool{}
	mux := setupRoutes(logger, gatherer, ready)

	return &Server{
		config: config,
		logger: logger,
		server: createHTTPServer(config, mux),
		ready:  ready,
	}
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func setupRoutes(logger *zap.Logger, gatherer prometheus.Gatherer, ready *atomic.Bool) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, logger, http.StatusOK, `{"status":"ok","service":"playlistfiller"}`)
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !ready.Load() {
			writeJSON(w, logger, http.StatusServiceUnavailable, `{"status":"waiting","service":"playlistfiller"}`)
			return
		}
		writeJSON(w, logger, http.StatusOK, `{"status":"ready","service":"playlistfiller"}`)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return mux
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		logger.Debug("Failed to write response", zap.Error(err))
	}
}

// SetReady switches /readyz to 200 once a run has completed.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}
