// Package embed implements embedding generation for semantic search.
// Providers implement a small interface so the archive can stay agnostic;
// a null provider disables the vector subsystem entirely.
package embed

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// maxInputChars caps the text sent to the embedding backend. Longer inputs
// are truncated, never rejected.
const maxInputChars = 8000

// Provider generates vector embeddings from text.
type Provider interface {
	// Embed generates one embedding per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the width of the output vectors (0 = disabled).
	Dimensions() int

	// Name returns the provider name.
	Name() string

	// Model returns the model name.
	Model() string
}

// Config configures the embedding provider.
type Config struct {
	// Provider is "openai" or "none".
	Provider string `yaml:"provider"`

	// Model is the embedding model name (default "text-embedding-3-small").
	Model string `yaml:"model"`

	// Dimensions is the output vector width (default 1536). Must match the
	// width the archive store was created with.
	Dimensions int `yaml:"dimensions"`

	// APIKey is the backend API key. Empty falls back to OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the API endpoint (empty = provider default).
	BaseURL string `yaml:"base_url"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:   "none",
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
	}
}

// NewProvider creates a provider from config. Unknown providers degrade to
// the null provider so a misconfigured embedding section never aborts startup.
func NewProvider(cfg Config) Provider {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg)
	default:
		return &NullProvider{}
	}
}

// ---------- OpenAI ----------

// OpenAIProvider generates embeddings with the OpenAI Embeddings API.
type OpenAIProvider struct {
	client openai.Client
	model  string
	dims   int
}

// NewOpenAIProvider creates an OpenAI embedding provider.
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = 1536
	}

	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  model,
		dims:   dims,
	}
}

// Embed generates embeddings for a batch of texts. Inputs longer than the
// input cap are truncated before the call.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = Truncate(t, maxInputChars)
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:      openai.EmbeddingModel(p.model),
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
		Dimensions: openai.Int(int64(p.dims)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: embed: %w", err)
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if int(d.Index) >= len(embeddings) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		embeddings[d.Index] = vec
	}
	return embeddings, nil
}

// Dimensions returns the output vector width.
func (p *OpenAIProvider) Dimensions() int { return p.dims }

// Name returns "openai".
func (p *OpenAIProvider) Name() string { return "openai" }

// Model returns the model name.
func (p *OpenAIProvider) Model() string { return p.model }

// ---------- Null ----------

// NullProvider disables semantic search. Embed returns no vectors.
type NullProvider struct{}

// Embed returns nil.
func (p *NullProvider) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return nil, nil
}

// Dimensions returns 0.
func (p *NullProvider) Dimensions() int { return 0 }

// Name returns "none".
func (p *NullProvider) Name() string { return "none" }

// Model returns "none".
func (p *NullProvider) Model() string { return "none" }

// Truncate returns at most n bytes of text, cut at a rune boundary so the
// result is always valid UTF-8.
func Truncate(text string, n int) string {
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}
