package detect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sightline-ai/percept/internal/domain"
	"github.com/sightline-ai/percept/internal/metrics"
	"github.com/sightline-ai/percept/internal/perf"
)

const (
	// DefaultLearnerBudget is the per-call warn threshold.
	DefaultLearnerBudget = 150 * time.Millisecond
	// DefaultVocabPushBudget is the warn threshold for a vocabulary push.
	DefaultVocabPushBudget = 50 * time.Millisecond
)

// LearnerConfig tunes the open-vocabulary detector wrapper.
type LearnerConfig struct {
	// LatencyBudget is the inference warn threshold, not a cutoff.
	LatencyBudget time.Duration
	// VocabBudget is the vocabulary push warn threshold.
	VocabBudget time.Duration
	// Window sizes the rolling latency buffer.
	Window int
	Logger *zap.Logger
}

// Learner wraps the open-vocabulary detector. Its class set changes at
// runtime through SetVocabulary; pushes and inference are serialized so
// a frame never runs against a half-updated vocabulary.
type Learner struct {
	backend  VocabBackend
	embedder domain.Embedder
	resolver SourceResolver

	budget      time.Duration
	vocabBudget time.Duration
	tracker     *perf.Tracker
	log         *zap.Logger

	mu    sync.Mutex
	vocab []string
}

// NewLearner creates the learner wrapper. The embedder may be nil: the
// backend then receives class names without vectors and embeds them
// itself, which the sim backend does trivially. The resolver may be nil,
// in which case every detection is tagged SourceUnknown.
func NewLearner(backend VocabBackend, embedder domain.Embedder, resolver SourceResolver, cfg LearnerConfig) *Learner {
	budget := cfg.LatencyBudget
	if budget <= 0 {
		budget = DefaultLearnerBudget
	}
	vocabBudget := cfg.VocabBudget
	if vocabBudget <= 0 {
		vocabBudget = DefaultVocabPushBudget
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Learner{
		backend:     backend,
		embedder:    embedder,
		resolver:    resolver,
		budget:      budget,
		vocabBudget: vocabBudget,
		tracker:     perf.NewTracker(cfg.Window),
		log:         log,
	}
}

// Vocabulary returns a copy of the class list currently pushed to the
// backend.
func (l *Learner) Vocabulary() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.vocab))
	copy(out, l.vocab)
	return out
}

// Stats returns the rolling inference latency summary.
func (l *Learner) Stats() perf.Summary { return l.tracker.Summary() }

// SetVocabulary embeds the class names and pushes them to the backend.
// On any failure the previous vocabulary stays active and the error is
// returned; детектор продолжает работать со старым словарём.
func (l *Learner) SetVocabulary(ctx context.Context, classes []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		metrics.VocabularyPushDuration.Observe(elapsed.Seconds())
		if elapsed > l.vocabBudget {
			l.log.Warn("vocabulary push over budget",
				zap.Duration("elapsed", elapsed),
				zap.Duration("budget", l.vocabBudget),
				zap.Int("classes", len(classes)))
		}
	}()

	vectors, err := l.embedClasses(ctx, classes)
	if err != nil {
		l.log.Warn("vocabulary embed failed, keeping previous vocabulary",
			zap.Error(err),
			zap.Int("classes", len(classes)))
		return fmt.Errorf("embed vocabulary: %w", err)
	}

	if err := l.backend.SetClasses(ctx, classes, vectors); err != nil {
		l.log.Warn("vocabulary push failed, keeping previous vocabulary",
			zap.Error(err),
			zap.Int("classes", len(classes)))
		return fmt.Errorf("push vocabulary: %w", err)
	}

	l.vocab = make([]string, len(classes))
	copy(l.vocab, classes)
	metrics.VocabularyLastPush.SetToCurrentTime()
	l.log.Info("vocabulary pushed to learner", zap.Int("classes", len(classes)))
	return nil
}

func (l *Learner) embedClasses(ctx context.Context, classes []string) ([][]float32, error) {
	if l.embedder == nil || len(classes) == 0 {
		return nil, nil
	}

	var res domain.BatchEmbeddingResult
	var err error
	if be, ok := l.embedder.(domain.BatchEmbedder); ok {
		res, err = be.BatchEmbed(ctx, classes)
	} else {
		res, err = domain.BatchFallback(ctx, l.embedder, classes)
	}
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) != len(classes) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d classes", len(res.Embeddings), len(classes))
	}
	return res.Embeddings, nil
}

// Detect runs one open-vocabulary inference. A backend failure is
// logged and yields an empty list so a learner hiccup never blocks the
// guardian path. Each detection is tagged with its vocabulary origin.
func (l *Learner) Detect(ctx context.Context, frame domain.Frame, conf float64) []domain.Detection {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		l.tracker.Observe(float64(elapsed) / float64(time.Millisecond))
		metrics.DetectionLatency.WithLabelValues("learner").Observe(elapsed.Seconds())
		if elapsed > l.budget {
			l.log.Warn("learner inference over budget",
				zap.Duration("elapsed", elapsed),
				zap.Duration("budget", l.budget),
				zap.Uint64("seq", frame.Seq))
		}
	}()

	boxes, err := l.backend.Detect(ctx, frame, conf)
	if err != nil {
		l.log.Error("learner inference failed, returning empty",
			zap.Error(err),
			zap.Uint64("seq", frame.Seq))
		return []domain.Detection{}
	}

	detections := make([]domain.Detection, 0, len(boxes))
	for _, raw := range boxes {
		class := domain.NormalizeClassName(raw.Class)
		if class == "" {
			continue
		}
		if raw.Confidence < conf {
			continue
		}
		box, ok := normalizeBox(raw, frame.Width, frame.Height)
		if !ok {
			l.log.Debug("learner dropped malformed box",
				zap.String("class", class),
				zap.Uint64("seq", frame.Seq))
			continue
		}

		det, err := domain.NewDetection(class, raw.Confidence, box, domain.LayerLearner)
		if err != nil {
			l.log.Debug("learner dropped invalid detection", zap.Error(err))
			continue
		}
		det.Origin = l.sourceOf(class)
		detections = append(detections, det)
	}

	metrics.DetectionsTotal.WithLabelValues("learner").Add(float64(len(detections)))
	return detections
}

func (l *Learner) sourceOf(class string) domain.VocabSource {
	if l.resolver == nil {
		return domain.SourceUnknown
	}
	return l.resolver.SourceOf(class)
}
