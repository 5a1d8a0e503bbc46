// Package ops serves Prometheus metrics and health checks next to the bot.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/labbot/core/buildinfo"
	"github.com/m3rciful/labbot/core/logger"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

const (
	readyTimeout    = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Error   string `json:"error,omitempty"`
}

// Server is the ops HTTP listener.
type Server struct {
	httpServer *http.Server
}

// NewRouter builds the ops routes. db may be nil, in which case readiness always fails.
func NewRouter(db Pinger) chi.Router {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, healthResponse{Status: "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if db == nil {
			writeHealth(w, http.StatusServiceUnavailable, healthResponse{Status: "fail", Error: "no database"})
			return
		}
		ctx, cancel := context.WithTimeout(req.Context(), readyTimeout)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			logger.Warn(ctx, logger.CompOps, "ops.ready.fail", logger.Err(err))
			writeHealth(w, http.StatusServiceUnavailable, healthResponse{Status: "fail", Error: "database unreachable"})
			return
		}
		writeHealth(w, http.StatusOK, healthResponse{Status: "ok"})
	})
	return r
}

func writeHealth(w http.ResponseWriter, code int, resp healthResponse) {
	resp.Version = buildinfo.Version
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// New prepares a listener on addr.
func New(addr string, db Pinger) *Server {
	return &Server{httpServer: &http.Server{
		Addr:              addr,
		Handler:           NewRouter(db),
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, logger.CompOps, "ops.listen", slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ops: serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops: shutdown: %w", err)
	}
	logger.Info(shutdownCtx, logger.CompOps, "ops.stopped")
	return nil
}
