package server

import (
	"context"
	"fmt"

	"github.com/minirag/minirag-go/internal/embedder"
	"github.com/minirag/minirag-go/internal/index"
)

// IndexPinger probes the vector index backend. It satisfies the Pinger
// interface and is used by GET /ready.
type IndexPinger struct {
	// admin is the index client to probe.
	admin index.Admin
}

// NewIndexPinger constructs an IndexPinger for the given index client.
func NewIndexPinger(admin index.Admin) *IndexPinger {
	return &IndexPinger{admin: admin}
}

// Name returns the dependency label used in readiness responses.
func (p *IndexPinger) Name() string { return "qdrant" }

// Ping checks index backend reachability.
func (p *IndexPinger) Ping(ctx context.Context) error {
	if err := p.admin.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// EmbedderPinger probes the embedding backend by embedding a single short
// text. Embedding calls are cheap compared to generation, so a real call is
// an acceptable readiness probe for both local and remote backends.
type EmbedderPinger struct {
	// emb is the embedder to probe.
	emb embedder.Embedder
	// name identifies the backend in readiness responses (e.g. "gemini").
	name string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given embedder and
// backend name.
func NewEmbedderPinger(emb embedder.Embedder, name string) *EmbedderPinger {
	return &EmbedderPinger{emb: emb, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping embeds a one-word probe text and checks the returned vector.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vec, err := embedder.EmbedOne(ctx, p.emb, "ping")
	if err != nil {
		return fmt.Errorf("embed probe failed: %w", err)
	}
	if len(vec) == 0 {
		return fmt.Errorf("embed probe returned empty vector")
	}
	return nil
}
