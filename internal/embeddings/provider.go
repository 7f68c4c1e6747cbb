package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates a provider call failed.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrEmbeddingUnavailable is returned by Service when no vector can be
	// produced. Callers treat it as "retrieval disabled for this call".
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
)

// Provider is the interface for embedding backends.
type Provider interface {
	// EmbedDocuments embeds corpus passages.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is "fastembed", "tei" or "openai".
	Provider string
	Model    string
	// BaseURL is used by the tei and openai providers.
	BaseURL string
	// APIKey is used by the openai provider.
	APIKey string
	// CacheDir is the FastEmbed model cache directory.
	CacheDir string
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "fastembed", "":
		p, err = newFastEmbed(cfg)
	case "tei":
		p, err = newTEI(cfg)
	case "openai":
		p, err = newOpenAI(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newFastEmbed(cfg ProviderConfig) (Provider, error) {
	p, err := NewFastEmbedProvider(FastEmbedConfig{Model: cfg.Model, CacheDir: cfg.CacheDir})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newTEI(cfg ProviderConfig) (Provider, error) {
	p, err := NewTEIProvider(TEIConfig{BaseURL: cfg.BaseURL, Model: cfg.Model})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newOpenAI(cfg ProviderConfig) (Provider, error) {
	p, err := NewOpenAIProvider(OpenAIConfig{BaseURL: cfg.BaseURL, Model: cfg.Model, APIKey: cfg.APIKey})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// modelDimensions lists the dimensions of models fixd knows by name.
var modelDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"text-embedding-3-small":                 1536,
	"text-embedding-3-large":                 3072,
	"text-embedding-ada-002":                 1536,
}

// detectDimensionFromModel returns the embedding dimension for a model name.
// Falls back to 384 if the model is unknown.
func detectDimensionFromModel(model string) int {
	if dim, ok := modelDimensions[model]; ok {
		return dim
	}
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "large"):
		return 1024
	case strings.Contains(lower, "base"):
		return 768
	default:
		return 384
	}
}
