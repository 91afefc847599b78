package domain

import (
	"context"
	"fmt"
)

// KeyPrefix namespaces every percept key in the KV store.
const KeyPrefix = "percept:"

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// BatchFallback вызывает Embed по одному для каждого текста. Safety net для провайдеров
// без нативного batch.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	embeddings := make([][]float32, len(texts))
	var totalPrompt, totalTokens int

	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("fallback embed [%d]: %w", i, err)
		}
		embeddings[i] = res.Embedding
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

// DefaultPromptTemplate renders a class name into the text actually
// embedded for open-vocabulary matching.
const DefaultPromptTemplate = "a photo of a %s"

// PromptEmbedder is a domain decorator that renders each class name
// through a prompt template before embedding.
type PromptEmbedder struct {
	inner    Embedder
	template string
}

// NewPromptEmbedder creates a decorator with the given template.
// The template must contain exactly one %s verb.
func NewPromptEmbedder(inner Embedder, template string) *PromptEmbedder {
	if template == "" {
		template = DefaultPromptTemplate
	}
	return &PromptEmbedder{inner: inner, template: template}
}

// Embed renders the prompt and delegates to the inner embedder.
func (e *PromptEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, fmt.Sprintf(e.template, text))
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("prompt embed: %w", err)
	}
	return result, nil
}

// BatchEmbed renders every prompt and delegates to the inner BatchEmbedder.
// Если inner не поддерживает batch — fallback на поштучный Embed.
func (e *PromptEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	rendered := make([]string, len(texts))
	for i, t := range texts {
		rendered[i] = fmt.Sprintf(e.template, t)
	}

	if be, ok := e.inner.(BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, rendered)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("prompt batch embed: %w", err)
		}
		return res, nil
	}

	res, err := BatchFallback(ctx, e.inner, rendered)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("prompt batch embed fallback: %w", err)
	}
	return res, nil
}
