package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/tokenforge/service/config"
	"github.com/brojonat/tokenforge/service/db"
	"github.com/brojonat/tokenforge/service/metrics"
	"github.com/brojonat/tokenforge/service/nats"
	"github.com/brojonat/tokenforge/service/tokentx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the token transaction service over HTTP.
type Server struct {
	cfg     *config.Config
	service *tokentx.Service
	sink    *buildSink
	store   *db.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The store is optional - if nil, builds are not recorded and the builds
// listing is unavailable.
// The publisher is optional - if nil, build events are not published.
// The metrics is optional - if nil, the metrics endpoint is not served.
func New(cfg *config.Config, service *tokentx.Service, store *db.Store, publisher nats.Publisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		service: service,
		sink: &buildSink{
			network:   cfg.SolanaNetwork,
			store:     store,
			publisher: publisher,
			metrics:   m,
			logger:    logger,
		},
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// Handler returns the routed handler wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	limit := s.cfg.MaxRequestBody

	s.route(mux, "POST /api/v1/create-token", "/api/v1/create-token", handleCreateToken(s.service, s.sink, limit, s.logger))
	s.route(mux, "POST /api/v1/mint-token", "/api/v1/mint-token", handleMintToken(s.service, s.sink, limit, s.logger))
	s.route(mux, "POST /api/v1/transfer-token", "/api/v1/transfer-token", handleTransferToken(s.service, s.sink, limit, s.logger))
	s.route(mux, "POST /api/v1/burn-token", "/api/v1/burn-token", handleBurnToken(s.service, s.sink, limit, s.logger))
	s.route(mux, "POST /api/v1/delegate-token", "/api/v1/delegate-token", handleDelegateToken(s.service, s.sink, limit, s.logger))

	if s.store != nil {
		s.route(mux, "GET /api/v1/builds", "/api/v1/builds", handleListBuilds(s.store, s.logger))
	} else {
		s.logger.Warn("database not configured, build records disabled")
	}

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("API is running"))
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

func (s *Server) route(mux *http.ServeMux, pattern, name string, h http.Handler) {
	mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.ServerAddr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15*time.Second + s.cfg.RPCTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server",
		"addr", s.cfg.ServerAddr,
		"network", s.cfg.SolanaNetwork,
	)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
