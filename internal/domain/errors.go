package domain

import "errors"

var (
	// ErrEmptyClassName signals a blank detection or vocabulary name.
	ErrEmptyClassName = errors.New("empty class name")
	// ErrInvalidConfidence signals a confidence outside [0,1].
	ErrInvalidConfidence = errors.New("confidence out of range")
	// ErrInvalidBox signals a malformed normalized bounding box.
	ErrInvalidBox = errors.New("invalid bounding box")
	// ErrVocabularyFull signals the dynamic store is at capacity after pruning.
	ErrVocabularyFull = errors.New("vocabulary full")
	// ErrFrameSourceDone signals an exhausted frame source.
	ErrFrameSourceDone = errors.New("frame source exhausted")
	// ErrBackendUnavailable signals an unreachable detector backend.
	ErrBackendUnavailable = errors.New("detector backend unavailable")
	// ErrExtractorUnavailable signals an unreachable noun extractor.
	ErrExtractorUnavailable = errors.New("noun extractor unavailable")

	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
