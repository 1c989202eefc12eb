// Package pipeline composes the chunker, embedder, vector index, reranker,
// prompt assembler, and generator into the two top-level operations of the
// service: Ingest (text in, vectors stored) and Answer (question in, grounded
// answer with citations out). All collaborators are injected at construction
// so tests run against doubles and no package-level state exists.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/minirag/minirag-go/internal/chunker"
	"github.com/minirag/minirag-go/internal/embedder"
	"github.com/minirag/minirag-go/internal/generator"
	"github.com/minirag/minirag-go/internal/index"
	"github.com/minirag/minirag-go/internal/logging"
	"github.com/minirag/minirag-go/internal/prompt"
	"github.com/minirag/minirag-go/internal/rerank"
)

// Fixed answer strings for the two non-fault outcomes.
const (
	// NoRelevantInfoAnswer is returned when retrieval or filtering yields
	// nothing citable. This is a normal outcome, not an error.
	NoRelevantInfoAnswer = "I couldn't find relevant info in the provided data."

	// NoAnswerGenerated substitutes an empty generation response so the
	// request still succeeds with its sources attached.
	NoAnswerGenerated = "No answer generated."

	// sourcePastedText labels directly ingested text in stored payloads.
	sourcePastedText = "pasted_text"
)

// Config holds the tunables of the pipeline. Zero values select the
// documented defaults.
type Config struct {
	// WindowChars is the chunk window size (default 1200).
	WindowChars int

	// OverlapChars is the chunk overlap (default 150).
	OverlapChars int

	// TopK is the number of nearest neighbours fetched per question (default 5).
	TopK int

	// MinScore is the rerank relevance floor (default 0.60). Calibrated per
	// embedding backend.
	MinScore float64

	// MaxResults caps the citation list (default 3).
	MaxResults int

	// Fallback decides behaviour when no hit passes MinScore (default strict).
	Fallback rerank.FallbackPolicy

	// EmbedTimeout bounds each embedding call, including the reranker's
	// batch of re-embeddings (default 60s).
	EmbedTimeout time.Duration

	// IndexTimeout bounds each vector index call (default 15s).
	IndexTimeout time.Duration

	// GenerateTimeout bounds the generation call (default 120s).
	GenerateTimeout time.Duration
}

// Pipeline is the orchestrator for ingestion and answering. Safe for
// concurrent use: all fields are read-only after construction and the
// collaborators are themselves concurrency-safe.
type Pipeline struct {
	// chunks splits raw text into windows.
	chunks *chunker.Chunker

	// emb converts text to vectors.
	emb embedder.Embedder

	// idx is the external vector index.
	idx index.Index

	// gen produces the final answer text. May be nil when the generation
	// credential is absent — Answer then fails with ErrConfiguration while
	// ingestion keeps working.
	gen generator.Generator

	// cfg holds the resolved tunables.
	cfg Config
}

// IngestResult reports how much of a document was stored.
type IngestResult struct {
	// Inserted is the number of points upserted.
	Inserted int `json:"inserted"`

	// Chunks is the number of chunks produced.
	Chunks int `json:"chunks"`
}

// Source is one externally visible citation record. Ref equals the 1-based
// position of this source's text inside the prompt's context block, so a
// model-emitted "[k]" marker resolves to Sources[k-1].
type Source struct {
	// Ref is the 1-based citation index.
	Ref int `json:"ref"`

	// ID is the stored point's UUID.
	ID string `json:"id"`

	// Title is the document title from the stored payload.
	Title string `json:"title"`

	// ChunkIndex is the chunk's 0-based position within its document.
	ChunkIndex int `json:"chunk_index"`

	// RerankScore is the recomputed cosine similarity for this chunk.
	RerankScore float64 `json:"rerank_score"`

	// Text is the cited chunk content, identical to the prompt context entry.
	Text string `json:"text"`
}

// AnswerResult is the structured outcome of one question.
type AnswerResult struct {
	// Answer is the generated (or fallback) answer text.
	Answer string `json:"answer"`

	// Sources lists the citations backing the answer, in prompt order.
	Sources []Source `json:"sources"`

	// LatencyMs is the wall-clock duration of the whole operation.
	LatencyMs int64 `json:"latency_ms"`
}

// New constructs a Pipeline. The embedder and index are required; gen may be
// nil (ingest-only deployments, or a missing generation credential that
// should not take ingestion down with it). Invalid chunker geometry is a
// configuration error surfaced here.
func New(emb embedder.Embedder, idx index.Index, gen generator.Generator, cfg Config) (*Pipeline, error) {
	if emb == nil {
		return nil, fmt.Errorf("pipeline: embedder must not be nil: %w", ErrConfiguration)
	}
	if idx == nil {
		return nil, fmt.Errorf("pipeline: index must not be nil: %w", ErrConfiguration)
	}

	if cfg.WindowChars == 0 {
		cfg.WindowChars = chunker.DefaultWindowChars
	}
	if cfg.OverlapChars == 0 {
		cfg.OverlapChars = chunker.DefaultOverlapChars
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MinScore == 0 {
		cfg.MinScore = rerank.DefaultMinScore
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = rerank.DefaultMaxResults
	}
	if cfg.Fallback == "" {
		cfg.Fallback = rerank.PolicyStrict
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 60 * time.Second
	}
	if cfg.IndexTimeout <= 0 {
		cfg.IndexTimeout = 15 * time.Second
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 120 * time.Second
	}

	chunks, err := chunker.New(cfg.WindowChars, cfg.OverlapChars)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w: %w", ErrConfiguration, err)
	}

	return &Pipeline{
		chunks: chunks,
		emb:    emb,
		idx:    idx,
		gen:    gen,
		cfg:    cfg,
	}, nil
}

// Ingest chunks, embeds, and stores a document. Empty or whitespace-only
// text short-circuits before any network call. The collection is ensured
// with the embedder's dimensionality before the single batch upsert.
func (p *Pipeline) Ingest(ctx context.Context, title, text string) (IngestResult, error) {
	log := logging.FromContext(ctx)

	chunks := p.chunks.Chunk(text)
	if len(chunks) == 0 {
		log.Debug("ingest: no chunks produced, skipping", slog.String("title", title))
		return IngestResult{}, nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, p.cfg.EmbedTimeout)
	vectors, err := p.emb.Embed(embedCtx, chunker.Texts(chunks))
	cancel()
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest: batch embed failed: %w: %w", ErrEmbeddingService, err)
	}
	if len(vectors) != len(chunks) {
		return IngestResult{}, fmt.Errorf("ingest: embedder returned %d vectors for %d chunks: %w",
			len(vectors), len(chunks), ErrEmbeddingService)
	}

	if err := p.ensureCollection(ctx); err != nil {
		return IngestResult{}, err
	}

	points := make([]index.StoredPoint, 0, len(chunks))
	for i, ch := range chunks {
		points = append(points, index.StoredPoint{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: index.Payload{
				Title:      title,
				ChunkIndex: ch.Index,
				Text:       ch.Text,
				Source:     sourcePastedText,
			},
		})
	}

	upsertCtx, cancel := context.WithTimeout(ctx, p.cfg.IndexTimeout)
	defer cancel()
	if err := p.idx.Upsert(upsertCtx, points); err != nil {
		return IngestResult{}, fmt.Errorf("ingest: upsert failed: %w: %w", ErrIndexService, err)
	}

	log.Info("ingest: document stored",
		slog.String("title", title),
		slog.Int("chunks", len(chunks)),
	)

	return IngestResult{Inserted: len(points), Chunks: len(chunks)}, nil
}

// Answer runs the retrieval-and-reranking pipeline for one question and
// returns a grounded answer with citation-aligned sources. Empty retrieval
// and empty filtering are normal outcomes reported as a successful result
// with the no-relevant-info answer; everything else propagates as an error.
func (p *Pipeline) Answer(ctx context.Context, question string) (AnswerResult, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	if p.gen == nil {
		return AnswerResult{}, fmt.Errorf("answer: no generation backend configured: %w", ErrConfiguration)
	}

	embedCtx, cancel := context.WithTimeout(ctx, p.cfg.EmbedTimeout)
	queryVector, err := embedder.EmbedOne(embedCtx, p.emb, question)
	cancel()
	if err != nil {
		return AnswerResult{}, fmt.Errorf("answer: embedding question: %w: %w", ErrEmbeddingService, err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, p.cfg.IndexTimeout)
	hits, err := p.idx.Query(queryCtx, queryVector, p.cfg.TopK)
	cancel()
	if err != nil {
		return AnswerResult{}, fmt.Errorf("answer: index query failed: %w: %w", ErrIndexService, err)
	}

	if len(hits) == 0 {
		log.Info("answer: no hits retrieved")
		return p.noRelevantResult(start), nil
	}

	rerankCtx, cancel := context.WithTimeout(ctx, p.cfg.EmbedTimeout)
	reranked, err := rerank.Rerank(rerankCtx, queryVector, hits, p.emb)
	cancel()
	if err != nil {
		return AnswerResult{}, fmt.Errorf("answer: %w: %w", ErrEmbeddingService, err)
	}

	final := rerank.Filter(reranked, p.cfg.MinScore, p.cfg.MaxResults, p.cfg.Fallback)
	if len(final) == 0 {
		log.Info("answer: no hit passed relevance floor",
			slog.Float64("min_score", p.cfg.MinScore),
			slog.Int("reranked", len(reranked)),
		)
		return p.noRelevantResult(start), nil
	}

	sources := make([]Source, 0, len(final))
	contexts := make([]string, 0, len(final))
	for i, rh := range final {
		sources = append(sources, Source{
			Ref:         i + 1,
			ID:          rh.Hit.ID,
			Title:       rh.Hit.Payload.Title,
			ChunkIndex:  rh.Hit.Payload.ChunkIndex,
			RerankScore: rh.Score,
			Text:        rh.Hit.Payload.Text,
		})
		contexts = append(contexts, rh.Hit.Payload.Text)
	}

	genCtx, cancel := context.WithTimeout(ctx, p.cfg.GenerateTimeout)
	answer, err := p.gen.Generate(genCtx, prompt.Build(question, contexts))
	cancel()
	if err != nil {
		return AnswerResult{}, fmt.Errorf("answer: %w: %w", ErrGenerationService, err)
	}
	if answer == "" {
		answer = NoAnswerGenerated
	}

	latency := time.Since(start)
	log.Info("answer: completed",
		slog.Int("sources", len(sources)),
		slog.Duration("latency", latency),
	)

	return AnswerResult{
		Answer:    answer,
		Sources:   sources,
		LatencyMs: latency.Milliseconds(),
	}, nil
}

// EnsureReady creates the collection for the configured embedder if needed.
// Exposed for the /init endpoint and startup checks.
func (p *Pipeline) EnsureReady(ctx context.Context) error {
	return p.ensureCollection(ctx)
}

// Dimensions returns the active embedder's vector size.
func (p *Pipeline) Dimensions() int { return p.emb.Dimensions() }

// ensureCollection ensures the collection exists with the embedder's
// dimensionality, classifying a mismatch as configuration rather than a
// transient index fault.
func (p *Pipeline) ensureCollection(ctx context.Context) error {
	ensureCtx, cancel := context.WithTimeout(ctx, p.cfg.IndexTimeout)
	defer cancel()

	if err := p.idx.EnsureCollection(ensureCtx, p.emb.Dimensions()); err != nil {
		if errors.Is(err, index.ErrDimensionMismatch) {
			return fmt.Errorf("ensure collection: %w: %w", ErrConfiguration, err)
		}
		return fmt.Errorf("ensure collection failed: %w: %w", ErrIndexService, err)
	}
	return nil
}

// noRelevantResult builds the successful "nothing found" outcome with an
// empty (but non-nil, for JSON) source list.
func (p *Pipeline) noRelevantResult(start time.Time) AnswerResult {
	return AnswerResult{
		Answer:    NoRelevantInfoAnswer,
		Sources:   []Source{},
		LatencyMs: time.Since(start).Milliseconds(),
	}
}
