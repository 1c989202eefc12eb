package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/minirag/minirag-go/internal/embedder"
	"github.com/minirag/minirag-go/internal/index"
	"github.com/minirag/minirag-go/internal/pipeline"
	"github.com/minirag/minirag-go/internal/rerank"
)

// buildIndex connects to Qdrant using QDRANT_* environment variables.
// The caller owns the returned client and must Close it.
func buildIndex() (*index.QdrantIndex, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)

	idx, err := index.NewQdrantIndex(&index.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "mini_rag_docs"),
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	return idx, nil
}

// buildEmbedder validates the embedding configuration and constructs the
// configured embedding backend.
func buildEmbedder(ctx context.Context, log *slog.Logger) (embedder.Embedder, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised",
		slog.String("backend", embedder.ResolveBackend()),
		slog.Int("dimensions", emb.Dimensions()),
	)
	return emb, nil
}

// pipelineConfigFromEnv reads the retrieval tunables. Zero values select the
// pipeline's documented defaults.
func pipelineConfigFromEnv() pipeline.Config {
	return pipeline.Config{
		WindowChars:  getEnvInt("CHUNK_WINDOW_CHARS", 0),
		OverlapChars: getEnvInt("CHUNK_OVERLAP_CHARS", 0),
		TopK:         getEnvInt("RETRIEVAL_TOP_K", 0),
		MinScore:     getEnvFloat("RERANK_MIN_SCORE", 0),
		MaxResults:   getEnvInt("RERANK_MAX_RESULTS", 0),
		Fallback:     rerank.FallbackPolicy(os.Getenv("RERANK_FALLBACK")),
	}
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the float value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
