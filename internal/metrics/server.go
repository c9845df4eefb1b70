// SPDX-License-Identifier: MIT

package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/health"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
)

// Server is the optional debug listener: Prometheus metrics and a
// liveness probe, nothing else.
type Server struct {
	srv *http.Server
}

// NewServer builds the listener on addr.
func NewServer(addr string, hm *health.Manager) *Server {
	r := chi.NewRouter()
	r.Get("/healthz", hm.ServeHealth)
	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	logger := log.WithComponent("metrics")
	logger.Info().
		Str(log.FieldEvent, "metrics.listen").
		Str("addr", s.srv.Addr).
		Msg("metrics listener starting")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().
				Str(log.FieldEvent, "metrics.serve_failed").
				Err(err).
				Msg("metrics listener failed")
		}
	}()
}

// Shutdown stops the listener, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
