package pipeline

import (
	"context"

	"github.com/sightline-ai/percept/internal/domain"
)

// Detector is one inference layer as seen by the orchestrator. Both
// wrappers fail closed, so Detect never returns an error.
type Detector interface {
	Detect(ctx context.Context, frame domain.Frame, conf float64) []domain.Detection
}

// VocabDetector additionally accepts runtime vocabulary pushes.
type VocabDetector interface {
	Detector
	SetVocabulary(ctx context.Context, classes []string) error
}

// Merger combines both layer outputs into one ranked list.
type Merger interface {
	Merge(guardian, learner []domain.Detection) []domain.Detection
}

// Learning ingests vocabulary candidates from external signals.
type Learning interface {
	FromDescription(ctx context.Context, text string) []string
	FromPointsOfInterest(ctx context.Context, poiNames []string) []string
	FromUserMemory(ctx context.Context, objectName string, metadata map[string]string) bool
}

// VocabularyProvider exposes the full class list for learner pushes.
type VocabularyProvider interface {
	CurrentVocabulary() []string
}

// FeedbackTrigger maps merged detections to one haptic command.
type FeedbackTrigger interface {
	TriggerFeedback(detections []domain.Detection) domain.FeedbackCommand
}

// DetectionRecorder appends merged detections to the session journal.
type DetectionRecorder interface {
	RecordDetections(ctx context.Context, seq uint64, dets []domain.Detection) error
}

// Closer releases backend resources at shutdown.
type Closer interface {
	Close() error
}
