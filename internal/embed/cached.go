package embed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ppiankov/originality/internal/cache"
)

// CachedEmbedder memoizes vectors by model and text
type CachedEmbedder struct {
	next   Embedder
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedEmbedder wraps next with c
func NewCachedEmbedder(next Embedder, c cache.Cache, ttl time.Duration, logger *slog.Logger) *CachedEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{next: next, cache: c, ttl: ttl, logger: logger}
}

// Model returns the wrapped embedder's model
func (c *CachedEmbedder) Model() string {
	return c.next.Model()
}

// Embed returns a cached vector or computes and stores it
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.get(text); ok {
		return v, nil
	}
	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.put(text, v)
	return v, nil
}

// EmbedBatch only sends the cache misses to the wrapped embedder
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingAt []int
	for i, t := range texts {
		if v, ok := c.get(t); ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		missingAt = append(missingAt, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.next.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, v := range vectors {
		out[missingAt[j]] = v
		c.put(missing[j], v)
	}
	return out, nil
}

func (c *CachedEmbedder) key(text string) string {
	return cache.Key("embed", c.next.Model(), text)
}

func (c *CachedEmbedder) get(text string) ([]float32, bool) {
	data, ok := c.cache.Get(c.key(text))
	if !ok {
		return nil, false
	}
	var v []float32
	if err := json.Unmarshal(data, &v); err != nil || len(v) == 0 {
		return nil, false
	}
	return v, true
}

func (c *CachedEmbedder) put(text string, v []float32) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(c.key(text), data, c.ttl); err != nil {
		c.logger.Debug("embedding cache write failed", "error", err)
	}
}
