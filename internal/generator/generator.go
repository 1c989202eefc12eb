// Package generator defines the Generator interface and factory for the
// external text-completion service that produces grounded answers.
// Supported backends: Google Gemini, OpenAI, and Ollama, all driven through
// the eino ChatModel abstraction so the answering pipeline never depends on
// a specific vendor SDK.
package generator

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// Backend enumerates the supported generation providers.
type Backend string

const (
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
)

// Generator produces a completion for an assembled prompt.
// Implementations must be safe to call from multiple goroutines.
type Generator interface {
	// Generate returns the model's answer text for the given prompt.
	// An empty response is returned as-is — the caller owns the fallback.
	Generate(ctx context.Context, promptText string) (string, error)
}

// Config holds generation provider configuration resolved from environment
// variables or explicit caller-supplied values.
type Config struct {
	// Backend identifies which provider to use.
	Backend Backend

	// Model is the model name to use (e.g. "gemini-2.5-flash", "gpt-4o").
	Model string

	// APIKey is the authentication credential (unused for Ollama).
	APIKey string

	// BaseURL overrides the default API endpoint (Ollama host).
	BaseURL string

	// MaxTokens caps the number of tokens generated per response.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// NewFromEnv constructs a Generator by reading provider configuration from
// environment variables. MODEL_PROVIDER selects the backend.
//
// Environment variables:
//
//	MODEL_PROVIDER = gemini | openai | ollama (default: gemini)
//
//	Gemini:  GOOGLE_API_KEY, GEMINI_MODEL (default: gemini-2.5-flash)
//	OpenAI:  OPENAI_API_KEY, OPENAI_MODEL (default: gpt-4o-mini)
//	Ollama:  OLLAMA_HOST (default: http://localhost:11434), OLLAMA_MODEL (default: llama3)
//
//	Shared:  MODEL_MAX_TOKENS (default: 1024), MODEL_TEMPERATURE (default: 0.2)
func NewFromEnv(ctx context.Context) (Generator, error) {
	backend := Backend(getEnvOrDefault("MODEL_PROVIDER", string(BackendGemini)))

	cfg := &Config{
		Backend:     backend,
		MaxTokens:   getEnvInt("MODEL_MAX_TOKENS", 1024),
		Temperature: getEnvFloat32("MODEL_TEMPERATURE", 0.2),
	}

	switch backend {
	case BackendGemini:
		cfg.APIKey = os.Getenv("GOOGLE_API_KEY")
		cfg.Model = getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash")
	case BackendOpenAI:
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.Model = getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini")
	case BackendOllama:
		cfg.BaseURL = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		cfg.Model = getEnvOrDefault("OLLAMA_MODEL", "llama3")
	}

	return New(ctx, cfg)
}

// New constructs a Generator from an explicit Config, delegating to the
// appropriate backend constructor. Missing credentials surface here, at
// startup, rather than on the first request.
func New(ctx context.Context, cfg *Config) (Generator, error) {
	switch cfg.Backend {
	case BackendGemini:
		return newGemini(ctx, cfg)
	case BackendOpenAI:
		return newOpenAI(ctx, cfg)
	case BackendOllama:
		return newOllama(ctx, cfg)
	default:
		return nil, fmt.Errorf("generator: unknown backend %q — valid values: gemini, openai, ollama", cfg.Backend)
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

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
