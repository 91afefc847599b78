package percept

import (
	"fmt"

	"github.com/sightline-ai/percept/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrVocabularyFull         = domain.ErrVocabularyFull
	ErrBackendUnavailable     = domain.ErrBackendUnavailable
	ErrExtractorUnavailable   = domain.ErrExtractorUnavailable
	ErrEmbeddingQuotaExceeded = domain.ErrEmbeddingQuotaExceeded
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)

// codeSentinels maps ops API error codes back to sentinel errors so a
// wire error still answers errors.Is.
var codeSentinels = map[string]error{
	"vocabulary_full":          ErrVocabularyFull,
	"backend_unavailable":      ErrBackendUnavailable,
	"extractor_unavailable":    ErrExtractorUnavailable,
	"embedding_quota_exceeded": ErrEmbeddingQuotaExceeded,
	"embedding_provider_error": ErrEmbeddingProviderError,
}

// APIError is an error response from the perceptd ops API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("percept: api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// Unwrap exposes the sentinel behind a known error code, if any.
func (e *APIError) Unwrap() error {
	return codeSentinels[e.Code]
}
