package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/minirag/minirag-go/internal/history"
	"github.com/minirag/minirag-go/internal/index"
	"github.com/minirag/minirag-go/internal/pipeline"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must cover the full answering pipeline including generation.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /ready.
	// If empty, /ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives all Prometheus metric registrations.
	// If nil, prometheus.DefaultRegisterer is used.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer serves GET /metrics.
	// If nil, prometheus.DefaultGatherer is used.
	MetricsGatherer prometheus.Gatherer
	// HistoryLimit is the default number of records returned by GET /history.
	// Defaults to 50 if zero.
	HistoryLimit int
	// MaxUploadBytes caps the size of POST /upload bodies. Defaults to 32 MiB.
	MaxUploadBytes int64
}

// ragPipeline is the interface the handlers call into. *pipeline.Pipeline
// satisfies it; tests inject a fake.
type ragPipeline interface {
	// Ingest chunks, embeds, and stores one document.
	Ingest(ctx context.Context, title, text string) (pipeline.IngestResult, error)
	// Answer runs the retrieval pipeline for one question.
	Answer(ctx context.Context, question string) (pipeline.AnswerResult, error)
	// EnsureReady creates the collection if needed.
	EnsureReady(ctx context.Context) error
	// Dimensions returns the active embedder's vector size.
	Dimensions() int
}

// Server is the HTTP server exposing the ingestion and answering pipeline.
type Server struct {
	// rag is the ingestion/answering pipeline behind every handler.
	rag ragPipeline
	// admin drives the collection lifecycle endpoints.
	admin index.Admin
	// hist records answered questions. May be nil (history disabled).
	hist history.Store
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// ingestRequest is the JSON body for POST /ingest.
type ingestRequest struct {
	// Title is the document title stored with every chunk.
	Title string `json:"title"`
	// Text is the raw document text.
	Text string `json:"text"`
}

// askRequest is the JSON body for POST /ask.
type askRequest struct {
	// Question is the user's question.
	Question string `json:"question"`
}

// errorResponse is the JSON error payload shared by all endpoints.
type errorResponse struct {
	// Error is a human-readable failure description.
	Error string `json:"error"`
}

// messageResponse is the JSON payload for lifecycle endpoints.
type messageResponse struct {
	// Message describes the completed action.
	Message string `json:"message"`
}

// uploadResponse is the JSON response for POST /upload.
type uploadResponse struct {
	// Filename is the uploaded file's name as received.
	Filename string `json:"filename"`
	// Title is the document title the chunks were stored under.
	Title string `json:"title"`
	// CharsExtracted is the length of the extracted text.
	CharsExtracted int `json:"chars_extracted"`
	// IngestResult reports what was stored.
	IngestResult pipeline.IngestResult `json:"ingest_result"`
}

// statsResponse is the JSON response for GET /stats.
type statsResponse struct {
	// Collection is the configured collection name.
	Collection string `json:"collection"`
	// PointsCount is the number of stored points.
	PointsCount uint64 `json:"points_count"`
}

// collectionsResponse is the JSON response for GET /qdrant-check.
type collectionsResponse struct {
	// Collections lists all collection names on the backend.
	Collections []string `json:"collections"`
}

// historyResponse is the JSON response for GET /history.
type historyResponse struct {
	// Records are the most recent answered questions, newest-first.
	Records []history.Record `json:"records"`
}
