package generator

import (
	"context"
	"fmt"

	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// chatGenerator adapts an eino ChatModel to the Generator interface: the
// assembled prompt goes out as a single user message and the completion
// content comes back as plain text.
type chatGenerator struct {
	// chat is the underlying chat model.
	chat model.BaseChatModel
	// name labels the backend in error messages.
	name string
}

// Generate sends the prompt as one user message and returns the completion
// content. Service failures propagate unretried.
func (g *chatGenerator) Generate(ctx context.Context, promptText string) (string, error) {
	resp, err := g.chat.Generate(ctx, []*schema.Message{
		schema.UserMessage(promptText),
	})
	if err != nil {
		return "", fmt.Errorf("generator: %s generate failed: %w", g.name, err)
	}
	if resp == nil {
		return "", fmt.Errorf("generator: %s returned nil response", g.name)
	}
	return resp.Content, nil
}

// newGemini constructs a Generator backed by Google Gemini (AI Studio).
// Requires GOOGLE_API_KEY.
func newGemini(ctx context.Context, cfg *Config) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generator: GOOGLE_API_KEY is required for gemini backend")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("generator: failed to create gemini client: %w", err)
	}
	chat, err := einogemini.NewChatModel(ctx, &einogemini.Config{
		Client: client,
		Model:  cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("generator: failed to create gemini chat model: %w", err)
	}
	return &chatGenerator{chat: chat, name: "gemini"}, nil
}

// newOpenAI constructs a Generator backed by the OpenAI API.
// Requires OPENAI_API_KEY.
func newOpenAI(ctx context.Context, cfg *Config) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generator: OPENAI_API_KEY is required for openai backend")
	}
	chat, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generator: failed to create openai chat model: %w", err)
	}
	return &chatGenerator{chat: chat, name: "openai"}, nil
}

// newOllama constructs a Generator backed by a local Ollama instance.
// No credential required.
func newOllama(ctx context.Context, cfg *Config) (Generator, error) {
	chat, err := einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("generator: failed to create ollama chat model: %w", err)
	}
	return &chatGenerator{chat: chat, name: "ollama"}, nil
}
