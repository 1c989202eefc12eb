package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/minirag/minirag-go/internal/extract"
	"github.com/minirag/minirag-go/internal/history"
	"github.com/minirag/minirag-go/internal/logging"
	"github.com/minirag/minirag-go/internal/pipeline"
)

// outcome label values for the ask/ingest metrics.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// handleIngest handles POST /ingest: chunk, embed, and store raw text.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	start := time.Now()
	res, err := s.rag.Ingest(r.Context(), req.Title, req.Text)
	if err != nil {
		s.metrics.ingestRequestsTotal.WithLabelValues(outcomeError).Inc()
		s.writeServiceError(w, r, err)
		return
	}
	s.metrics.ingestRequestsTotal.WithLabelValues(outcomeOK).Inc()
	s.metrics.ingestDurationSeconds.Observe(time.Since(start).Seconds())
	s.metrics.ingestChunksTotal.Add(float64(res.Chunks))

	writeJSON(w, http.StatusOK, res)
}

// handleAsk handles POST /ask: retrieve, rerank, and generate a grounded
// answer. Successful answers are recorded in the history store when one is
// configured.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	start := time.Now()
	res, err := s.rag.Answer(r.Context(), req.Question)
	if err != nil {
		s.metrics.askRequestsTotal.WithLabelValues(outcomeError).Inc()
		s.metrics.askDurationSeconds.WithLabelValues(outcomeError).Observe(time.Since(start).Seconds())
		s.writeServiceError(w, r, err)
		return
	}
	s.metrics.askRequestsTotal.WithLabelValues(outcomeOK).Inc()
	s.metrics.askDurationSeconds.WithLabelValues(outcomeOK).Observe(time.Since(start).Seconds())

	s.recordHistory(r, req.Question, res)

	writeJSON(w, http.StatusOK, res)
}

// handleUpload handles POST /upload: multipart file + optional title,
// extracted to text and ingested like raw text.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	title := r.FormValue("title")
	if title == "" {
		title = "Uploaded Document"
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	text, err := extract.Text(header.Filename, content)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedType) {
			writeError(w, http.StatusBadRequest, "Only .txt and .pdf files are supported.")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to extract text: "+err.Error())
		return
	}

	res, err := s.rag.Ingest(r.Context(), title, text)
	if err != nil {
		s.metrics.ingestRequestsTotal.WithLabelValues(outcomeError).Inc()
		s.writeServiceError(w, r, err)
		return
	}
	s.metrics.ingestRequestsTotal.WithLabelValues(outcomeOK).Inc()
	s.metrics.ingestChunksTotal.Add(float64(res.Chunks))

	writeJSON(w, http.StatusOK, uploadResponse{
		Filename:       header.Filename,
		Title:          title,
		CharsExtracted: len(text),
		IngestResult:   res,
	})
}

// handleInit handles POST /init: create the collection if needed.
func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	if err := s.rag.EnsureReady(r.Context()); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Collection ready"})
}

// handleReset handles POST /reset: drop and recreate the collection,
// discarding all stored points.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.Reset(r.Context(), s.rag.Dimensions()); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Collection reset done"})
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	info, err := s.admin.Info(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Collection:  info.Collection,
		PointsCount: info.PointsCount,
	})
}

// handleQdrantCheck handles GET /qdrant-check.
func (s *Server) handleQdrantCheck(w http.ResponseWriter, r *http.Request) {
	names, err := s.admin.Collections(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, collectionsResponse{Collections: names})
}

// handleHistory handles GET /history. An optional ?limit= query parameter
// overrides the configured default.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := s.cfg.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := s.hist.Recent(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Records: recs})
}

// recordHistory persists one answered question. Failures are logged and
// never surfaced to the client — history is an operator convenience, not
// part of the request contract.
func (s *Server) recordHistory(r *http.Request, question string, res pipeline.AnswerResult) {
	if s.hist == nil {
		return
	}
	err := s.hist.Append(r.Context(), history.Record{
		Question:    question,
		Answer:      res.Answer,
		SourceCount: len(res.Sources),
		LatencyMs:   res.LatencyMs,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("history append failed", slog.Any("error", err))
	}
}

// writeServiceError maps a pipeline error to an HTTP status with an {error}
// payload: configuration problems are 500 (operator action needed), upstream
// service failures are 502, anything else 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).Error("request failed", slog.Any("error", err))

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pipeline.ErrConfiguration):
		status = http.StatusInternalServerError
	case errors.Is(err, pipeline.ErrEmbeddingService),
		errors.Is(err, pipeline.ErrIndexService),
		errors.Is(err, pipeline.ErrGenerationService):
		status = http.StatusBadGateway
	}
	writeError(w, status, err.Error())
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an {error} JSON payload with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
