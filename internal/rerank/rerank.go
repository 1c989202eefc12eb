// Package rerank rescores initial vector-index hits by true query–chunk
// cosine similarity and filters them down to a short, highly relevant
// citation list. The index's own score is deliberately distrusted: each
// surviving hit is re-embedded and scored against the query embedding, so
// the final ordering reflects the embedding space itself rather than
// whatever approximation the index used.
package rerank

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/minirag/minirag-go/internal/embedder"
	"github.com/minirag/minirag-go/internal/index"
)

// Tunables calibrated for the gemini text-embedding-004 space. Cosine score
// distributions differ across embedding models — recalibrate MinScore when
// switching backends.
const (
	// DefaultMinScore is the cosine-similarity relevance floor.
	DefaultMinScore = 0.60

	// DefaultMaxResults caps the citation list. Three chunks keeps answers
	// grounded in a short, highly relevant context rather than a long
	// mediocre one.
	DefaultMaxResults = 3

	// defaultConcurrency bounds the per-hit re-embedding worker pool.
	defaultConcurrency = 4
)

// FallbackPolicy names the behaviour when no hit passes the relevance floor.
type FallbackPolicy string

const (
	// PolicyStrict returns no hits when nothing passes MinScore, signalling
	// "no relevant information found". This is the default: weakly relevant
	// material is never presented as a cited source.
	PolicyStrict FallbackPolicy = "strict"

	// PolicyBestEffort returns the single highest-scoring hit regardless of
	// the floor, so the caller always gets an attempted answer.
	PolicyBestEffort FallbackPolicy = "best-effort"
)

// RerankedHit is a search hit with its recomputed query similarity.
type RerankedHit struct {
	// Score is the cosine similarity between the query embedding and the
	// hit's re-embedded text, in [-1, 1].
	Score float64

	// Hit is the original index result.
	Hit index.SearchHit
}

// Cosine returns the cosine similarity dot(a,b) / (||a||·||b||), defined as
// 0.0 when either vector has zero norm (a zero vector carries no direction
// to compare against). Vectors of different lengths come from different
// embedding spaces and are incomparable, so they also score 0.0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rerank re-embeds each hit's text and scores it against queryVector.
// Hits with empty payload text are dropped before scoring — they cannot be
// cited. Re-embedding calls are independent and run on a bounded worker
// pool; if any call fails or the context is cancelled, no partial result is
// returned. Output is sorted by score descending, stable on ties (original
// retrieval order wins).
func Rerank(ctx context.Context, queryVector []float32, hits []index.SearchHit, emb embedder.Embedder) ([]RerankedHit, error) {
	candidates := make([]index.SearchHit, 0, len(hits))
	for _, h := range hits {
		if h.Payload.Text == "" {
			continue
		}
		candidates = append(candidates, h)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	reranked := make([]RerankedHit, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultConcurrency)

	for i, hit := range candidates {
		g.Go(func() error {
			vec, err := embedder.EmbedOne(gctx, emb, hit.Payload.Text)
			if err != nil {
				return fmt.Errorf("rerank: embedding hit %s: %w", hit.ID, err)
			}
			reranked[i] = RerankedHit{Score: Cosine(queryVector, vec), Hit: hit}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})

	return reranked, nil
}

// Filter keeps hits scoring at least minScore, capped at maxResults. The
// input must already be sorted descending (as returned by Rerank). When
// nothing passes the floor, the configured fallback policy decides: strict
// returns nil, best-effort returns the top hit alone.
func Filter(reranked []RerankedHit, minScore float64, maxResults int, policy FallbackPolicy) []RerankedHit {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	var kept []RerankedHit
	for _, rh := range reranked {
		if rh.Score >= minScore {
			kept = append(kept, rh)
		}
		if len(kept) == maxResults {
			break
		}
	}

	if len(kept) == 0 && len(reranked) > 0 && policy == PolicyBestEffort {
		return reranked[:1]
	}

	return kept
}
