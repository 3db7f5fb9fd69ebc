// Package embed turns text into fixed-dimension vectors.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/originality/internal/cache"
	"github.com/ppiankov/originality/internal/model"
	"github.com/ppiankov/originality/internal/worker"
)

// Embedder produces embeddings. Every vector returned by one Embedder has
// the same dimension.
type Embedder interface {
	// Embed returns the vector for one text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model identifies the provider and model, for cache keys and reports
	Model() string
}

// New builds the embedder described by cfg. A non-nil cache wraps it in a
// CachedEmbedder; a non-nil limiter throttles provider calls per host.
func New(cfg model.Config, c cache.Cache, limiter *worker.Limiter, logger *slog.Logger) (Embedder, error) {
	timeout := time.Duration(cfg.Embedding.Timeout) * time.Second

	var e Embedder
	switch strings.ToLower(cfg.Embedding.Provider) {
	case "", "ollama":
		e = NewOllamaEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.HTTP, timeout, limiter)
	case "openai":
		if cfg.Embedding.APIKey == "" {
			return nil, fmt.Errorf("embedding provider openai requires an API key")
		}
		e = NewOpenAIEmbedder(cfg.Embedding.APIKey, cfg.Embedding.BaseURL, cfg.Embedding.Model, limiter)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: ollama, openai)", cfg.Embedding.Provider)
	}

	if c != nil && cfg.Cache.Enabled {
		e = NewCachedEmbedder(e, c, cfg.Cache.DiskTTL, logger)
	}
	return e, nil
}
