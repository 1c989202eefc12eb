// Package embedder provides implementations of the Embedder interface for
// converting text into dense vector embeddings. Backends: Google Gemini
// (remote, via the genai SDK), OpenAI (remote, plain HTTP), and Ollama
// (local, plain HTTP). The backend is selected once at startup — never per
// call — so a process always embeds into a single, fixed vector space.
package embedder

import (
	"context"
	"fmt"
)

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice. Service failures are
	// returned unretried — callers own retry/backoff policy.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed output vector length of this provider.
	// The vector index collection must be created with the same value;
	// a mismatch is a startup configuration error, never recoverable.
	Dimensions() int
}

// EmbedOne embeds a single text and returns its vector. Thin convenience over
// the batch call used for queries and per-hit reranking.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, errEmbedCount(1, len(vecs))
	}
	return vecs[0], nil
}

// errEmbedCount reports a backend returning the wrong number of vectors.
func errEmbedCount(want, got int) error {
	return fmt.Errorf("embedder: expected %d embeddings, got %d", want, got)
}
