// Package summarize implements daily summary generation for archived groups:
// transcript assembly, truncation, dispatch to a text-generation backend and
// idempotent storage of the result.
package summarize

import (
	"context"
	"fmt"
	"strings"
)

// Generator produces a text completion from a system instruction and a
// conversation transcript. One implementation per provider; the pipeline is
// agnostic to which one is configured.
type Generator interface {
	// Generate returns the completion text. Network or API failures are
	// returned as errors, never as partial text.
	Generate(ctx context.Context, systemPrompt, transcript string) (string, error)

	// Name returns the provider name.
	Name() string
}

// GeneratorConfig configures the text-generation backend.
type GeneratorConfig struct {
	// Provider is "openai" or "anthropic".
	Provider string `yaml:"provider"`

	// Model is the model name (provider default when empty).
	Model string `yaml:"model"`

	// APIKey is the backend API key.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the API endpoint (empty = provider default).
	BaseURL string `yaml:"base_url"`

	// MaxTokens bounds the completion length (default 1024).
	MaxTokens int `yaml:"max_tokens"`
}

// DefaultGeneratorConfig returns sensible defaults.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Provider:  "openai",
		MaxTokens: 1024,
	}
}

// NewGenerator creates the configured provider. The provider is selected once
// here; adding a provider means adding a case, not branching deeper.
func NewGenerator(cfg GeneratorConfig) (Generator, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIGenerator(cfg), nil
	case "anthropic":
		return NewAnthropicGenerator(cfg), nil
	default:
		return nil, fmt.Errorf("unknown summary provider %q", cfg.Provider)
	}
}
