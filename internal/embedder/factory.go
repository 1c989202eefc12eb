package embedder

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// Default embedding models and their output dimensions per backend. The
// dimensionality is a property of the model, not a free constant: it is fed
// into collection creation and validated against existing collections.
const (
	defaultGeminiModel = "text-embedding-004"
	defaultOllamaModel = "all-minilm"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultGeminiDimensions is the output dimension of text-embedding-004.
	defaultGeminiDimensions = 768
	// defaultOllamaDimensions is the output dimension of all-minilm.
	// Other Ollama models differ — override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 384
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// DefaultDimensions returns the default embedding vector size for the given
// backend name. EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	case "openai":
		return defaultOpenAIDimensions
	default:
		return defaultGeminiDimensions
	}
}

// ResolveBackend returns the effective embedding backend name from the
// environment. Defaults to gemini, the remote backend the service was
// calibrated against.
func ResolveBackend() string {
	return getEnvOrDefault("EMBEDDING_PROVIDER", "gemini")
}

// NewFromEnv constructs an Embedder from environment variables. The backend
// is a deployment-time choice — the returned instance embeds into one fixed
// vector space for the lifetime of the process.
//
// Environment variables:
//
//	EMBEDDING_PROVIDER    = gemini | ollama | openai    (default: gemini)
//	EMBEDDING_MODEL       overrides the backend's default model
//	EMBEDDING_DIMENSIONS  overrides the default vector size
//	EMBEDDING_API_KEY     overrides the backend's native credential
//	EMBEDDING_ENDPOINT    overrides the backend's endpoint (ollama/openai)
//
//	Gemini:  GOOGLE_API_KEY (required)
//	Ollama:  OLLAMA_HOST (default: http://localhost:11434), no credential
//	OpenAI:  OPENAI_API_KEY (required)
func NewFromEnv(ctx context.Context) (Embedder, error) {
	backend := ResolveBackend()

	switch backend {
	case "gemini":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("GOOGLE_API_KEY")
		}
		return NewGeminiEmbedder(ctx, &GeminiConfig{
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultGeminiModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", defaultGeminiDimensions),
		})

	case "ollama":
		host := getEnv("EMBEDDING_ENDPOINT")
		if host == "" {
			host = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:       host,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", defaultOllamaDimensions),
		}), nil

	case "openai":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("OPENAI_API_KEY")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    getEnv("EMBEDDING_ENDPOINT"),
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions),
		})

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q — valid values: gemini, ollama, openai", backend)
	}
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
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
