package domain

import "context"

type embeddingUsageKey struct{}

// EmbeddingUsage collects token spend for a single ops request. A learn
// handler seeds the context before triggering the synchronous vocabulary
// push, the embedder chain adds tokens as it runs, and the handler reads
// the total back for the response headers.
type EmbeddingUsage struct {
	TotalTokens int
	Used        bool // true if the embedder ran, even on a cache hit with 0 tokens
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records consumed tokens.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u != nil {
		u.TotalTokens += n
		u.Used = true
	}
}
