package learning

import (
	"context"

	"github.com/sightline-ai/percept/internal/domain"
)

// NounExtractor obtains object-noun candidates from free text.
type NounExtractor interface {
	Extract(ctx context.Context, text string) ([]string, error)
}

// Store is the vocabulary surface the learner admits names into.
type Store interface {
	Add(name string, source domain.VocabSource, metadata map[string]string) bool
}

// Recorder journals admission decisions for later analysis.
type Recorder interface {
	RecordLearn(ctx context.Context, source domain.VocabSource, class string, accepted bool, reason string) error
}
