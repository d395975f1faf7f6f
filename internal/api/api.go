// Package api implements the HTTP API server for detectoo.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/detectoo/detectoo/internal/chance"
	"github.com/detectoo/detectoo/internal/config"
	"github.com/detectoo/detectoo/internal/heatmap"
	"github.com/detectoo/detectoo/internal/sampler"
	"github.com/detectoo/detectoo/internal/session"
	"github.com/detectoo/detectoo/internal/verdict"
)

// Server is the detectoo HTTP API server.
type Server struct {
	addr    string
	cfg     *config.Config
	logger  *slog.Logger
	rand    chance.Source
	limiter *rate.Limiter
	metrics *metrics

	mux    *http.ServeMux
	server *http.Server
}

// New creates a new API server.
func New(addr string, cfg *config.Config, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:    addr,
		cfg:     cfg,
		logger:  logger,
		rand:    chance.Default(),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		metrics: newMetrics(),
	}
	s.mux = http.NewServeMux()
	s.registerRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("POST /api/report", s.handleReport)
	s.mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
}

// analyzer builds an Analyzer from the server config with the given delay.
func (s *Server) analyzer(delay time.Duration) *session.Analyzer {
	smp := sampler.New(s.rand, s.logger)
	smp.TileSize = s.cfg.TileSize
	smp.Threshold = s.cfg.Threshold
	return &session.Analyzer{
		Sampler: smp,
		Verdict: verdict.New(s.rand),
		Delay:   delay,
	}
}

func (s *Server) heatmapOptions() heatmap.Options {
	return heatmap.Options{Labels: s.cfg.HeatmapLabels}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("detectoo API server listening", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening on %s: %w", s.addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down API server")
		return s.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// readJSON decodes a JSON request body into v.
func readJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("empty request body")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
