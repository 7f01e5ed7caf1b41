// Package embeddings provides embedding generation and the embedding
// lifecycle for incident text.
//
// Two interchangeable providers satisfy the Provider contract: a
// deterministic local embedder (pure function of the input, no external
// dependency) and a TEI/OpenAI-compatible HTTP provider. Which variant
// is active is a configuration concern decided at startup.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for embedding operations.
var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates the provider failed to produce a vector.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Provider types accepted by ProviderConfig.
const (
	ProviderLocal = "local"
	ProviderTEI   = "tei"
)

// DefaultDimension is the vector dimension used when none is configured.
const DefaultDimension = 384

// Provider is the interface for embedding providers.
type Provider interface {
	// EmbedDocuments generates embeddings for multiple texts, one
	// fixed-dimension vector per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension for the current model.
	Dimension() int

	// Model returns the model identifier recorded on incident rows.
	Model() string

	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "local" (default) or "tei".
	Provider string `koanf:"provider"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// BaseURL is the TEI endpoint (only used for the tei provider).
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates against the TEI endpoint (optional).
	APIKey string `koanf:"api_key"`

	// Dimension is the embedding dimension. Defaults to 384.
	Dimension int `koanf:"dimension"`
}

// Validate checks the provider configuration.
func (c ProviderConfig) Validate() error {
	switch c.Provider {
	case ProviderLocal, "":
	case ProviderTEI:
		if c.BaseURL == "" {
			return fmt.Errorf("%w: base_url is required for the tei provider", ErrInvalidConfig)
		}
		if c.Model == "" {
			return fmt.Errorf("%w: model is required for the tei provider", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
	}
	if c.Dimension < 0 {
		return fmt.Errorf("%w: dimension must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	dim := cfg.Dimension
	if dim == 0 {
		dim = DefaultDimension
	}

	switch cfg.Provider {
	case ProviderLocal, "":
		return NewLocalProvider(LocalConfig{Dimension: dim}), nil
	case ProviderTEI:
		return NewTEIProvider(TEIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: dim,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
