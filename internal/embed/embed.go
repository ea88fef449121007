// Package embed turns text into fixed-length vectors. Providers share one
// interface; the static provider needs no network and anchors tests.
package embed

import (
	"context"
	"fmt"
)

// Provider computes embeddings for batches of text. Every vector it
// returns has exactly Dimensions elements.
type Provider interface {
	Name() string
	Dimensions() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config selects and parameterizes a provider.
type Config struct {
	Provider   string // static, openai, ollama
	Model      string
	Dimensions int
	APIKey     string // openai only
	BaseURL    string // override for self-hosted endpoints
}

// New builds the configured provider. An empty provider name selects the
// static one.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", "none", "static":
		return NewStatic(cfg.Dimensions), nil
	case "openai":
		return NewOpenAI(cfg)
	case "ollama":
		return NewOllama(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
