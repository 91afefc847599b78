// Package pipeline drives per-frame dual detection and runtime
// vocabulary updates.
package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sightline-ai/percept/internal/domain"
	"github.com/sightline-ai/percept/internal/metrics"
	"github.com/sightline-ai/percept/internal/perf"
)

const (
	// workerCount pins inference concurrency: one worker per layer.
	workerCount = 2
	// DefaultStatsEvery is the frame interval between aggregate log lines.
	DefaultStatsEvery = 100
)

// Config tunes the orchestrator.
type Config struct {
	// StatsEvery is the frame interval between aggregate log lines.
	StatsEvery int
	// Window sizes the rolling latency buffers.
	Window int
	// GuardianBudget and LearnerBudget are the rolling-mean thresholds
	// reported in the aggregate log line.
	GuardianBudget time.Duration
	LearnerBudget  time.Duration
	// Closers are released exactly once by Cleanup.
	Closers []Closer
	Logger  *zap.Logger
}

// Result is the outcome of one processed frame.
type Result struct {
	Guardian []domain.Detection
	Learner  []domain.Detection
	Merged   []domain.Detection

	GuardianMS float64
	LearnerMS  float64
	TotalMS    float64
}

// PipelineStats is the rolling performance view for the status endpoint.
type PipelineStats struct {
	Frames      uint64       `json:"frames"`
	VocabPushes uint64       `json:"vocab_pushes"`
	Guardian    perf.Summary `json:"guardian"`
	Learner     perf.Summary `json:"learner"`
	VocabPush   perf.Summary `json:"vocab_push"`
	Total       perf.Summary `json:"total"`
}

// Orchestrator fans one frame out to both detectors over a fixed worker
// pool, blocks for both results and merges them. Learning calls flow
// through it so every admission is followed by a synchronous vocabulary
// push to the learner.
type Orchestrator struct {
	guardian Detector
	learner  VocabDetector
	merger   Merger
	learning Learning
	vocab    VocabularyProvider

	statsEvery     uint64
	guardianBudget time.Duration
	learnerBudget  time.Duration

	guardianPerf *perf.Tracker
	learnerPerf  *perf.Tracker
	vocabPerf    *perf.Tracker
	totalPerf    *perf.Tracker

	mu     sync.Mutex
	frames uint64
	pushes uint64

	tasks     chan func()
	workersWG sync.WaitGroup
	closeOnce sync.Once
	closers   []Closer
	log       *zap.Logger
}

// New creates the orchestrator and starts its worker pool.
func New(guardian Detector, learner VocabDetector, merger Merger, learning Learning, vocab VocabularyProvider, cfg Config) *Orchestrator {
	statsEvery := cfg.StatsEvery
	if statsEvery <= 0 {
		statsEvery = DefaultStatsEvery
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	o := &Orchestrator{
		guardian:       guardian,
		learner:        learner,
		merger:         merger,
		learning:       learning,
		vocab:          vocab,
		statsEvery:     uint64(statsEvery),
		guardianBudget: cfg.GuardianBudget,
		learnerBudget:  cfg.LearnerBudget,
		guardianPerf:   perf.NewTracker(cfg.Window),
		learnerPerf:    perf.NewTracker(cfg.Window),
		vocabPerf:      perf.NewTracker(cfg.Window),
		totalPerf:      perf.NewTracker(cfg.Window),
		tasks:          make(chan func()),
		closers:        cfg.Closers,
		log:            log,
	}

	for i := 0; i < workerCount; i++ {
		o.workersWG.Add(1)
		go o.worker()
	}
	return o
}

func (o *Orchestrator) worker() {
	defer o.workersWG.Done()
	for task := range o.tasks {
		task()
	}
}

// ProcessFrame runs both detectors on the frame and merges their
// output. It blocks until both layers finish; each layer fails closed
// internally, so a slow or broken backend degrades rather than aborts.
func (o *Orchestrator) ProcessFrame(ctx context.Context, frame domain.Frame, confidence float64) Result {
	start := time.Now()
	var res Result
	var wg sync.WaitGroup
	wg.Add(2)

	// Оба замыкания пишут в разные поля, гонки нет
	o.tasks <- func() {
		defer wg.Done()
		t0 := time.Now()
		res.Guardian = o.guardian.Detect(ctx, frame, confidence)
		res.GuardianMS = millis(time.Since(t0))
	}
	o.tasks <- func() {
		defer wg.Done()
		t0 := time.Now()
		res.Learner = o.learner.Detect(ctx, frame, confidence)
		res.LearnerMS = millis(time.Since(t0))
	}
	wg.Wait()

	res.Merged = o.merger.Merge(res.Guardian, res.Learner)
	total := time.Since(start)
	res.TotalMS = millis(total)

	o.guardianPerf.Observe(res.GuardianMS)
	o.learnerPerf.Observe(res.LearnerMS)
	o.totalPerf.Observe(res.TotalMS)
	metrics.FrameLatency.Observe(total.Seconds())
	metrics.FramesTotal.WithLabelValues("ok").Inc()

	o.mu.Lock()
	o.frames++
	logNow := o.frames%o.statsEvery == 0
	frames := o.frames
	o.mu.Unlock()
	if logNow {
		o.logStats(frames)
	}
	return res
}

func (o *Orchestrator) logStats(frames uint64) {
	g := o.guardianPerf.Summary()
	l := o.learnerPerf.Summary()
	total := o.totalPerf.Summary()

	o.log.Info("pipeline rolling stats",
		zap.Uint64("frames", frames),
		zap.Float64("guardian_mean_ms", g.Mean),
		zap.Float64("guardian_p95_ms", g.P95),
		zap.Float64("learner_mean_ms", l.Mean),
		zap.Float64("learner_p95_ms", l.P95),
		zap.Float64("total_mean_ms", total.Mean),
		zap.Float64("total_p95_ms", total.P95),
		zap.Bool("guardian_within_budget", g.Mean <= millis(o.guardianBudget)),
		zap.Bool("learner_within_budget", l.Mean <= millis(o.learnerBudget)))
}

// LearnFromDescription admits nouns from a scene description, then
// pushes the updated vocabulary when anything was admitted.
func (o *Orchestrator) LearnFromDescription(ctx context.Context, text string) []string {
	admitted := o.learning.FromDescription(ctx, text)
	o.pushIfAdmitted(ctx, len(admitted))
	return admitted
}

// LearnFromPOI admits canonical objects for nearby points of interest,
// then pushes the updated vocabulary when anything was admitted.
func (o *Orchestrator) LearnFromPOI(ctx context.Context, names []string) []string {
	admitted := o.learning.FromPointsOfInterest(ctx, names)
	o.pushIfAdmitted(ctx, len(admitted))
	return admitted
}

// LearnFromMemory admits one user-taught object, then pushes the
// updated vocabulary on admission.
func (o *Orchestrator) LearnFromMemory(ctx context.Context, name string, metadata map[string]string) bool {
	admitted := o.learning.FromUserMemory(ctx, name, metadata)
	if admitted {
		o.pushIfAdmitted(ctx, 1)
	}
	return admitted
}

func (o *Orchestrator) pushIfAdmitted(ctx context.Context, admitted int) {
	if admitted == 0 {
		return
	}
	// Синхронно: следующий кадр уже должен видеть новый словарь
	o.PushVocabulary(ctx)
}

// PushVocabulary pushes the store's current class list to the learner.
// On failure the learner keeps its previous vocabulary and the error is
// returned for the caller to log or ignore.
func (o *Orchestrator) PushVocabulary(ctx context.Context) error {
	classes := o.vocab.CurrentVocabulary()
	start := time.Now()
	err := o.learner.SetVocabulary(ctx, classes)
	o.vocabPerf.Observe(millis(time.Since(start)))
	if err != nil {
		o.log.Warn("vocabulary push failed, learner keeps previous set",
			zap.Error(err),
			zap.Int("classes", len(classes)))
		return err
	}

	o.mu.Lock()
	o.pushes++
	o.mu.Unlock()
	return nil
}

// Stats returns the rolling performance view.
func (o *Orchestrator) Stats() PipelineStats {
	o.mu.Lock()
	frames := o.frames
	pushes := o.pushes
	o.mu.Unlock()

	return PipelineStats{
		Frames:      frames,
		VocabPushes: pushes,
		Guardian:    o.guardianPerf.Summary(),
		Learner:     o.learnerPerf.Summary(),
		VocabPush:   o.vocabPerf.Summary(),
		Total:       o.totalPerf.Summary(),
	}
}

// Cleanup stops the worker pool and releases backend resources. Safe to
// call more than once and without any prior ProcessFrame.
func (o *Orchestrator) Cleanup() {
	o.closeOnce.Do(func() {
		close(o.tasks)
		o.workersWG.Wait()
		for _, c := range o.closers {
			if err := c.Close(); err != nil {
				o.log.Warn("backend close failed", zap.Error(err))
			}
		}
		o.log.Info("detection pipeline released")
	})
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
