package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sightline-ai/percept/internal/domain"
	"github.com/sightline-ai/percept/internal/metrics"
)

// RunnerConfig tunes the frame loop.
type RunnerConfig struct {
	// Confidence is the detection threshold handed to both layers.
	Confidence float64
	Logger     *zap.Logger
}

// Runner owns the frame loop: pull, process, actuate, journal.
type Runner struct {
	source   domain.FrameSource
	orch     *Orchestrator
	feedback FeedbackTrigger
	// recorder is nil when the session journal is disabled.
	recorder DetectionRecorder
	conf     float64
	log      *zap.Logger
}

// NewRunner wires the frame loop. The recorder may be nil.
func NewRunner(source domain.FrameSource, orch *Orchestrator, feedback FeedbackTrigger, recorder DetectionRecorder, cfg RunnerConfig) *Runner {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		source:   source,
		orch:     orch,
		feedback: feedback,
		recorder: recorder,
		conf:     cfg.Confidence,
		log:      log,
	}
}

// Run processes frames until the source is exhausted or the context is
// canceled, then releases the pipeline. Journal failures never stop the
// loop.
func (r *Runner) Run(ctx context.Context) error {
	defer r.orch.Cleanup()
	r.log.Info("pipeline runner started", zap.Float64("confidence", r.conf))

	for {
		frame, err := r.source.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrFrameSourceDone):
				r.log.Info("frame source exhausted")
				return nil
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				r.log.Info("pipeline runner stopped")
				return nil
			default:
				metrics.FramesTotal.WithLabelValues("error").Inc()
				return fmt.Errorf("next frame: %w", err)
			}
		}

		res := r.orch.ProcessFrame(ctx, frame, r.conf)
		r.feedback.TriggerFeedback(res.Merged)

		if r.recorder != nil {
			if err := r.recorder.RecordDetections(ctx, frame.Seq, res.Merged); err != nil {
				r.log.Warn("journal append failed",
					zap.Error(err),
					zap.Uint64("seq", frame.Seq))
			}
		}
	}
}
