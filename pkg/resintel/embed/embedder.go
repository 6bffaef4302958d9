// Package embed turns documents into dense vectors.
package embed

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
)

// Embedder converts texts into one row per text.
type Embedder interface {
	Name() string
	// Dimension is the row width, or 0 when it is only known after the first call.
	Dimension() int
	Embed(ctx context.Context, texts []string) (*mat.Dense, error)
}

// Config selects and configures an Embedder.
type Config struct {
	// Provider is "openai" (any OpenAI-compatible /embeddings endpoint) or "hashing".
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	APIKey    string `yaml:"-"`
	BatchSize int    `yaml:"batch_size"`
	TimeoutS  int    `yaml:"timeout_seconds"`
	// Dimension applies to the hashing embedder.
	Dimension int `yaml:"dimension"`
}

// New builds the configured embedder.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "", "hashing":
		return NewHashingEmbedder(cfg.Dimension, nil), nil
	case "openai":
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: openai embedder needs an API key or a base_url", internalerr.ErrInvalidConfig)
		}
		return NewHTTPEmbedder(cfg), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", internalerr.ErrInvalidConfig, cfg.Provider)
	}
}
