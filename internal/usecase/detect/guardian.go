package detect

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sightline-ai/percept/internal/domain"
	"github.com/sightline-ai/percept/internal/haptics"
	"github.com/sightline-ai/percept/internal/metrics"
	"github.com/sightline-ai/percept/internal/perf"
)

// DefaultGuardianBudget is the per-call warn threshold.
const DefaultGuardianBudget = 100 * time.Millisecond

// GuardianConfig tunes the static safety detector wrapper.
type GuardianConfig struct {
	// SafetyClasses empty means DefaultSafetyClasses.
	SafetyClasses []string
	// LatencyBudget is the warn threshold, not a cutoff.
	LatencyBudget time.Duration
	// Window sizes the rolling latency buffer.
	Window int
	// Actuator receives feedback commands. Nil disables haptics.
	Actuator domain.Actuator
	Logger   *zap.Logger
}

// Guardian wraps the safety-critical detector. Its class set is fixed
// at construction and never mutated.
type Guardian struct {
	backend  Backend
	classes  map[string]struct{}
	budget   time.Duration
	tracker  *perf.Tracker
	actuator domain.Actuator
	log      *zap.Logger
}

// NewGuardian creates the guardian wrapper around a backend.
func NewGuardian(backend Backend, cfg GuardianConfig) *Guardian {
	names := cfg.SafetyClasses
	if len(names) == 0 {
		names = DefaultSafetyClasses
	}
	classes := make(map[string]struct{}, len(names))
	for _, name := range names {
		classes[domain.NormalizeClassName(name)] = struct{}{}
	}

	budget := cfg.LatencyBudget
	if budget <= 0 {
		budget = DefaultGuardianBudget
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Guardian{
		backend:  backend,
		classes:  classes,
		budget:   budget,
		tracker:  perf.NewTracker(cfg.Window),
		actuator: cfg.Actuator,
		log:      log,
	}
}

// Classes returns the safety class set size, for the status endpoint.
func (g *Guardian) Classes() int { return len(g.classes) }

// Stats returns the rolling latency summary.
func (g *Guardian) Stats() perf.Summary { return g.tracker.Summary() }

// Detect runs one inference and returns safety-set detections. A
// backend failure is logged and yields an empty list: guardian sits on
// the safety-critical path and must never take the pipeline down.
func (g *Guardian) Detect(ctx context.Context, frame domain.Frame, conf float64) []domain.Detection {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		g.tracker.Observe(float64(elapsed) / float64(time.Millisecond))
		metrics.DetectionLatency.WithLabelValues("guardian").Observe(elapsed.Seconds())
		if elapsed > g.budget {
			g.log.Warn("guardian inference over budget",
				zap.Duration("elapsed", elapsed),
				zap.Duration("budget", g.budget),
				zap.Uint64("seq", frame.Seq))
		}
	}()

	boxes, err := g.backend.Detect(ctx, frame, conf)
	if err != nil {
		g.log.Error("guardian inference failed, returning empty",
			zap.Error(err),
			zap.Uint64("seq", frame.Seq))
		return []domain.Detection{}
	}

	detections := make([]domain.Detection, 0, len(boxes))
	for _, raw := range boxes {
		class := domain.NormalizeClassName(raw.Class)
		if _, ok := g.classes[class]; !ok {
			// Не из safety-набора — отдаём только learner-путь
			continue
		}
		if raw.Confidence < conf {
			continue
		}
		box, ok := normalizeBox(raw, frame.Width, frame.Height)
		if !ok {
			g.log.Debug("guardian dropped malformed box",
				zap.String("class", class),
				zap.Uint64("seq", frame.Seq))
			continue
		}

		det, err := domain.NewDetection(class, raw.Confidence, box, domain.LayerGuardian)
		if err != nil {
			g.log.Debug("guardian dropped invalid detection", zap.Error(err))
			continue
		}
		detections = append(detections, det)
	}

	metrics.DetectionsTotal.WithLabelValues("guardian").Add(float64(len(detections)))
	return detections
}

// TriggerFeedback maps the single highest-priority detection to a
// haptic command; the first seen wins a priority tie. Empty input stops
// the actuator. Returns the command that was issued.
func (g *Guardian) TriggerFeedback(detections []domain.Detection) domain.FeedbackCommand {
	cmd := domain.FeedbackCommand{Kind: domain.CommandStop}
	if len(detections) > 0 {
		top := detections[0]
		for _, d := range detections[1:] {
			if d.Priority > top.Priority {
				top = d
			}
		}
		cmd = haptics.CommandFor(top.Priority)
		metrics.AlertsTotal.WithLabelValues(top.Priority.String()).Inc()
	}

	if g.actuator != nil {
		haptics.Apply(g.actuator, cmd)
	}
	return cmd
}
