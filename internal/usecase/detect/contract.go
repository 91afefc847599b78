package detect

import (
	"context"

	"github.com/sightline-ai/percept/internal/domain"
)

// Backend invokes one underlying detection model. Implementations
// return raw boxes in pixel coordinates.
type Backend interface {
	Detect(ctx context.Context, frame domain.Frame, conf float64) ([]domain.RawBox, error)
}

// VocabBackend additionally accepts runtime class pushes.
type VocabBackend interface {
	Backend
	SetClasses(ctx context.Context, classes []string, vectors [][]float32) error
}

// SourceResolver reports the provenance of a detected class name.
type SourceResolver interface {
	SourceOf(name string) domain.VocabSource
}
