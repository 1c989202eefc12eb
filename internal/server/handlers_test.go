package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/minirag/minirag-go/internal/history"
	"github.com/minirag/minirag-go/internal/index"
	"github.com/minirag/minirag-go/internal/pipeline"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

// fakeRAG is a test double for the ragPipeline interface.
type fakeRAG struct {
	// ingestResult and ingestErr are returned by Ingest.
	ingestResult pipeline.IngestResult
	ingestErr    error
	// answerResult and answerErr are returned by Answer.
	answerResult pipeline.AnswerResult
	answerErr    error
	// ensureErr is returned by EnsureReady.
	ensureErr error

	// lastTitle and lastText record the most recent Ingest arguments.
	lastTitle, lastText string
	// lastQuestion records the most recent Answer argument.
	lastQuestion string
}

func (f *fakeRAG) Ingest(_ context.Context, title, text string) (pipeline.IngestResult, error) {
	f.lastTitle, f.lastText = title, text
	return f.ingestResult, f.ingestErr
}

func (f *fakeRAG) Answer(_ context.Context, question string) (pipeline.AnswerResult, error) {
	f.lastQuestion = question
	return f.answerResult, f.answerErr
}

func (f *fakeRAG) EnsureReady(_ context.Context) error { return f.ensureErr }
func (f *fakeRAG) Dimensions() int                     { return 768 }

// fakeAdmin is a test double for the index.Admin interface.
type fakeAdmin struct {
	// collections and info are returned by the corresponding methods.
	collections []string
	info        index.CollectionInfo
	// resetDim records the dimensionality passed to Reset.
	resetDim int
	// err, when set, fails every method.
	err error
}

func (f *fakeAdmin) EnsureCollection(_ context.Context, _ int) error { return f.err }
func (f *fakeAdmin) Upsert(_ context.Context, _ []index.StoredPoint) error {
	return f.err
}
func (f *fakeAdmin) Query(_ context.Context, _ []float32, _ int) ([]index.SearchHit, error) {
	return nil, f.err
}
func (f *fakeAdmin) Collections(_ context.Context) ([]string, error) {
	return f.collections, f.err
}
func (f *fakeAdmin) Info(_ context.Context) (index.CollectionInfo, error) {
	return f.info, f.err
}
func (f *fakeAdmin) Reset(_ context.Context, dim int) error {
	f.resetDim = dim
	return f.err
}
func (f *fakeAdmin) Ping(_ context.Context) error { return f.err }
func (f *fakeAdmin) Close() error                 { return nil }

// fakeHistory is a test double for the history.Store interface.
type fakeHistory struct {
	// records accumulates appended records.
	records []history.Record
	// err, when set, fails every method.
	err error
}

func (f *fakeHistory) Append(_ context.Context, rec history.Record) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeHistory) Recent(_ context.Context, n int) ([]history.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if n > len(f.records) {
		n = len(f.records)
	}
	return f.records[:n], nil
}

func (f *fakeHistory) Close() error { return nil }

// newTestServer builds a minimal *Server with fakes and an isolated metrics
// registry. Tests mutate the fakes through the returned server's fields.
func newTestServer() *Server {
	return &Server{
		rag:     &fakeRAG{},
		admin:   &fakeAdmin{},
		cfg:     &Config{HistoryLimit: 50, MaxUploadBytes: 32 << 20},
		log:     slog.Default(),
		metrics: newServerMetrics(prometheus.NewRegistry()),
	}
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v — body: %s", err, w.Body.String())
	}
	return v
}

// ---------------------------------------------------------------------------
// POST /ingest
// ---------------------------------------------------------------------------

func TestHandleIngest_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	rag := s.rag.(*fakeRAG)
	rag.ingestResult = pipeline.IngestResult{Inserted: 3, Chunks: 3}

	req := httptest.NewRequest(http.MethodPost, "/ingest",
		strings.NewReader(`{"title":"Doc","text":"some text"}`))
	w := httptest.NewRecorder()

	s.handleIngest(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	res := decodeBody[pipeline.IngestResult](t, w)
	if res.Inserted != 3 || res.Chunks != 3 {
		t.Errorf("unexpected result: %+v", res)
	}
	if rag.lastTitle != "Doc" || rag.lastText != "some text" {
		t.Errorf("pipeline received %q/%q", rag.lastTitle, rag.lastText)
	}
}

func TestHandleIngest_MissingTitle(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/ingest",
		strings.NewReader(`{"text":"no title"}`))
	w := httptest.NewRecorder()

	s.handleIngest(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if resp := decodeBody[errorResponse](t, w); resp.Error == "" {
		t.Error("expected error payload")
	}
}

func TestHandleIngest_InvalidBody(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	s.handleIngest(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleIngest_ServiceError(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.rag.(*fakeRAG).ingestErr = pipeline.ErrEmbeddingService

	req := httptest.NewRequest(http.MethodPost, "/ingest",
		strings.NewReader(`{"title":"Doc","text":"t"}`))
	w := httptest.NewRecorder()

	s.handleIngest(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for embedding failure, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /ask
// ---------------------------------------------------------------------------

func TestHandleAsk_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	hist := &fakeHistory{}
	s.hist = hist
	s.rag.(*fakeRAG).answerResult = pipeline.AnswerResult{
		Answer: "grounded [1]",
		Sources: []pipeline.Source{
			{Ref: 1, Title: "Doc", Text: "the fact"},
		},
		LatencyMs: 12,
	}

	req := httptest.NewRequest(http.MethodPost, "/ask",
		strings.NewReader(`{"question":"what?"}`))
	w := httptest.NewRecorder()

	s.handleAsk(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	res := decodeBody[pipeline.AnswerResult](t, w)
	if res.Answer != "grounded [1]" || len(res.Sources) != 1 {
		t.Errorf("unexpected result: %+v", res)
	}

	if len(hist.records) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(hist.records))
	}
	rec := hist.records[0]
	if rec.Question != "what?" || rec.Answer != "grounded [1]" || rec.SourceCount != 1 {
		t.Errorf("history record mismatch: %+v", rec)
	}
}

func TestHandleAsk_MissingQuestion(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	s.handleAsk(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleAsk_ConfigurationError(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.rag.(*fakeRAG).answerErr = pipeline.ErrConfiguration

	req := httptest.NewRequest(http.MethodPost, "/ask",
		strings.NewReader(`{"question":"q"}`))
	w := httptest.NewRecorder()

	s.handleAsk(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for configuration error, got %d", w.Code)
	}
	if resp := decodeBody[errorResponse](t, w); resp.Error == "" {
		t.Error("expected error payload")
	}
}

func TestHandleAsk_GenerationError(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.rag.(*fakeRAG).answerErr = pipeline.ErrGenerationService

	req := httptest.NewRequest(http.MethodPost, "/ask",
		strings.NewReader(`{"question":"q"}`))
	w := httptest.NewRecorder()

	s.handleAsk(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for generation failure, got %d", w.Code)
	}
}

func TestHandleAsk_HistoryFailureDoesNotFailRequest(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.hist = &fakeHistory{err: errors.New("disk full")}
	s.rag.(*fakeRAG).answerResult = pipeline.AnswerResult{Answer: "ok", Sources: []pipeline.Source{}}

	req := httptest.NewRequest(http.MethodPost, "/ask",
		strings.NewReader(`{"question":"q"}`))
	w := httptest.NewRecorder()

	s.handleAsk(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 despite history failure, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /upload
// ---------------------------------------------------------------------------

// multipartBody builds a multipart form with one file field and an optional
// title field.
func multipartBody(t *testing.T, filename, content, title string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if title != "" {
		if err := mw.WriteField("title", title); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandleUpload_TextFile(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	rag := s.rag.(*fakeRAG)
	rag.ingestResult = pipeline.IngestResult{Inserted: 1, Chunks: 1}

	body, ct := multipartBody(t, "notes.txt", "file contents here", "My Notes")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	s.handleUpload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	res := decodeBody[uploadResponse](t, w)
	if res.Filename != "notes.txt" || res.Title != "My Notes" {
		t.Errorf("unexpected response: %+v", res)
	}
	if res.CharsExtracted != len("file contents here") {
		t.Errorf("chars_extracted: got %d", res.CharsExtracted)
	}
	if rag.lastTitle != "My Notes" || rag.lastText != "file contents here" {
		t.Errorf("pipeline received %q/%q", rag.lastTitle, rag.lastText)
	}
}

func TestHandleUpload_DefaultTitle(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	body, ct := multipartBody(t, "notes.txt", "text", "")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	s.handleUpload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if res := decodeBody[uploadResponse](t, w); res.Title != "Uploaded Document" {
		t.Errorf("expected default title, got %q", res.Title)
	}
}

func TestHandleUpload_UnsupportedType(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	body, ct := multipartBody(t, "image.png", "binary", "")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	s.handleUpload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := decodeBody[errorResponse](t, w)
	if resp.Error != "Only .txt and .pdf files are supported." {
		t.Errorf("unexpected error message: %q", resp.Error)
	}
}

func TestHandleUpload_MissingFile(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	w := httptest.NewRecorder()

	s.handleUpload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Collection lifecycle
// ---------------------------------------------------------------------------

func TestHandleInit_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/init", nil)
	w := httptest.NewRecorder()

	s.handleInit(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp := decodeBody[messageResponse](t, w); resp.Message != "Collection ready" {
		t.Errorf("unexpected message: %q", resp.Message)
	}
}

func TestHandleReset_UsesEmbedderDimensions(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	admin := s.admin.(*fakeAdmin)

	req := httptest.NewRequest(http.MethodPost, "/reset", nil)
	w := httptest.NewRecorder()

	s.handleReset(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if admin.resetDim != 768 {
		t.Errorf("reset dim: got %d, want 768", admin.resetDim)
	}
	if resp := decodeBody[messageResponse](t, w); resp.Message != "Collection reset done" {
		t.Errorf("unexpected message: %q", resp.Message)
	}
}

func TestHandleStats_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.admin.(*fakeAdmin).info = index.CollectionInfo{Collection: "docs", PointsCount: 42}

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()

	s.handleStats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	res := decodeBody[statsResponse](t, w)
	if res.Collection != "docs" || res.PointsCount != 42 {
		t.Errorf("unexpected stats: %+v", res)
	}
}

func TestHandleQdrantCheck_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.admin.(*fakeAdmin).collections = []string{"docs", "other"}

	req := httptest.NewRequest(http.MethodGet, "/qdrant-check", nil)
	w := httptest.NewRecorder()

	s.handleQdrantCheck(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	res := decodeBody[collectionsResponse](t, w)
	if len(res.Collections) != 2 || res.Collections[0] != "docs" {
		t.Errorf("unexpected collections: %v", res.Collections)
	}
}

func TestHandleQdrantCheck_Unreachable(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.admin.(*fakeAdmin).err = errors.New("connection refused")

	req := httptest.NewRequest(http.MethodGet, "/qdrant-check", nil)
	w := httptest.NewRecorder()

	s.handleQdrantCheck(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// GET /history
// ---------------------------------------------------------------------------

func TestHandleHistory_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.hist = &fakeHistory{records: []history.Record{
		{ID: 2, Question: "second"},
		{ID: 1, Question: "first"},
	}}

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	w := httptest.NewRecorder()

	s.handleHistory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	res := decodeBody[historyResponse](t, w)
	if len(res.Records) != 2 || res.Records[0].Question != "second" {
		t.Errorf("unexpected records: %+v", res.Records)
	}
}

func TestHandleHistory_LimitParam(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.hist = &fakeHistory{records: []history.Record{{ID: 3}, {ID: 2}, {ID: 1}}}

	req := httptest.NewRequest(http.MethodGet, "/history?limit=2", nil)
	w := httptest.NewRecorder()

	s.handleHistory(w, req)

	if res := decodeBody[historyResponse](t, w); len(res.Records) != 2 {
		t.Errorf("expected 2 records, got %d", len(res.Records))
	}
}

func TestHandleHistory_BadLimit(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.hist = &fakeHistory{}

	req := httptest.NewRequest(http.MethodGet, "/history?limit=abc", nil)
	w := httptest.NewRecorder()

	s.handleHistory(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleHistory_Disabled(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	// hist left nil.
	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	w := httptest.NewRecorder()

	s.handleHistory(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 when history disabled, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// CORS
// ---------------------------------------------------------------------------

func TestCORSMiddleware_Preflight(t *testing.T) {
	t.Parallel()

	h := corsMiddleware(okHandler)
	req := httptest.NewRequest(http.MethodOptions, "/ask", nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing permissive allow-origin header")
	}
}

func TestCORSMiddleware_PassThrough(t *testing.T) {
	t.Parallel()

	h := corsMiddleware(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("allow-origin header must be set on normal responses too")
	}
}
