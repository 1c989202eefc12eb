package pipeline

import "errors"

// Error kinds surfaced by the orchestrators. Callers classify failures with
// errors.Is — the concrete cause stays wrapped alongside the kind.
var (
	// ErrConfiguration marks fatal misconfiguration: a missing credential,
	// invalid chunker geometry, or an embedder whose dimensionality does not
	// match the existing collection. Never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmbeddingService marks a transient embedding backend failure.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrIndexService marks a transient vector index failure.
	ErrIndexService = errors.New("index service error")

	// ErrGenerationService marks a transient generation backend failure.
	ErrGenerationService = errors.New("generation service error")
)
