package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sightline-ai/percept/internal/domain"
)

const extractorSystemPrompt = "You extract physical object nouns from scene descriptions " +
	"for an object detector vocabulary. Respond only with a JSON array of lowercase " +
	"singular noun phrases, no other text."

// Extractor pulls detectable object nouns out of free-form scene
// descriptions via an OpenAI-compatible chat API.
type Extractor struct {
	client   *openai.Client
	model    string
	maxNouns int
	logger   *zap.Logger
}

// ExtractorConfig holds the noun extractor settings.
type ExtractorConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	MaxNouns int
	Logger   *zap.Logger
}

// NewExtractor creates an OpenAI-compatible noun extractor.
func NewExtractor(cfg *ExtractorConfig) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	maxNouns := cfg.MaxNouns
	if maxNouns <= 0 {
		maxNouns = 10
	}

	return &Extractor{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		maxNouns: maxNouns,
		logger:   cfg.Logger,
	}
}

// Extract returns up to maxNouns object nouns from the description.
// Errors are wrapped with domain.ErrExtractorUnavailable so callers can
// fall back to local extraction.
func (e *Extractor) Extract(ctx context.Context, description string) ([]string, error) {
	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractorSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: e.buildPrompt(description)},
		},
		Temperature: 0,
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, parseAPIError(err, domain.ErrExtractorUnavailable)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty chat response: %w", domain.ErrExtractorUnavailable)
	}

	nouns, err := parseNounArray(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parse nouns: %w: %w", err, domain.ErrExtractorUnavailable)
	}

	if len(nouns) > e.maxNouns {
		nouns = nouns[:e.maxNouns]
	}
	return nouns, nil
}

func (e *Extractor) buildPrompt(description string) string {
	var sb strings.Builder
	sb.WriteString("Extract at most ")
	fmt.Fprintf(&sb, "%d", e.maxNouns)
	sb.WriteString(" physical object nouns a camera could detect from this scene description. ")
	sb.WriteString("Skip people references, abstract words and colors.\n\n")
	sb.WriteString("DESCRIPTION:\n")
	sb.WriteString(description)
	sb.WriteString("\n\nRespond in strict JSON format: [\"noun\", ...]")
	return sb.String()
}

// parseNounArray extracts the JSON array from the completion, tolerating
// markdown fences around it.
func parseNounArray(content string) ([]string, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var raw []string
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}

	nouns := make([]string, 0, len(raw))
	for _, n := range raw {
		n = domain.NormalizeClassName(n)
		if n == "" {
			continue
		}
		nouns = append(nouns, n)
	}
	return nouns, nil
}
