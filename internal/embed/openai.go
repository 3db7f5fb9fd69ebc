package embed

import (
	"context"
	"fmt"
	"sort"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/originality/internal/worker"
)

// OpenAIEmbedder calls the embeddings endpoint of OpenAI or a compatible API
type OpenAIEmbedder struct {
	client  *openai.Client
	model   string
	baseURL string
	limiter *worker.Limiter
}

// NewOpenAIEmbedder creates an OpenAI embedder
func NewOpenAIEmbedder(apiKey, baseURL, modelName string, limiter *worker.Limiter) *OpenAIEmbedder {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	if modelName == "" {
		modelName = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   modelName,
		baseURL: clientConfig.BaseURL,
		limiter: limiter,
	}
}

// Model returns "openai/<model>"
func (o *OpenAIEmbedder) Model() string {
	return "openai/" + o.model
}

// Embed generates a vector embedding for the given text
func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call
func (o *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx, o.baseURL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("openai embed: empty vector at %d", i)
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
