// Package server implements the HTTP API over the ingestion and answering
// pipeline: document ingestion (raw text and file upload), question
// answering with citations, collection lifecycle management, and the usual
// operational endpoints (health, readiness, metrics, history).
// The server is started by the `minirag serve` CLI command.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minirag/minirag-go/internal/history"
	"github.com/minirag/minirag-go/internal/index"
	"github.com/minirag/minirag-go/internal/logging"
	"github.com/minirag/minirag-go/internal/pipeline"
)

// New constructs a Server from the pipeline, the index admin client, an
// optional history store (nil disables GET /history), and the config.
func New(pl *pipeline.Pipeline, admin index.Admin, hist history.Store, cfg *Config) (*Server, error) {
	if pl == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	if admin == nil {
		return nil, fmt.Errorf("server: index admin must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must outlast the slowest answering pipeline run.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 32 << 20
	}

	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	registry := cfg.MetricsRegistry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	gatherer := cfg.MetricsGatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		rag:     pl,
		admin:   admin,
		hist:    hist,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(registry),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("server: MINIRAG_API_KEY not set — API authentication disabled")
	}

	// protected wraps a handler with rate limiting and Bearer auth.
	protected := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, rl.middleware(authMiddleware(cfg.APIKey, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("POST /ingest", protected("ingest", s.handleIngest))
	mux.Handle("POST /ask", protected("ask", s.handleAsk))
	mux.Handle("POST /upload", protected("upload", s.handleUpload))
	mux.Handle("POST /init", protected("init", s.handleInit))
	mux.Handle("POST /reset", protected("reset", s.handleReset))
	mux.Handle("GET /stats", protected("stats", s.handleStats))
	mux.Handle("GET /qdrant-check", protected("qdrant-check", s.handleQdrantCheck))
	mux.Handle("GET /history", protected("history", s.handleHistory))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, corsMiddleware(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}
