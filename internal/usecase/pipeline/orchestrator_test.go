package pipeline

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sightline-ai/percept/internal/domain"
	"github.com/sightline-ai/percept/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterDetectionMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

type stubDetector struct {
	delay time.Duration
	dets  []domain.Detection
	calls int
}

func (s *stubDetector) Detect(_ context.Context, _ domain.Frame, _ float64) []domain.Detection {
	s.calls++
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.dets
}

type stubVocabDetector struct {
	stubDetector
	setCalls [][]string
	setErr   error
}

func (s *stubVocabDetector) SetVocabulary(_ context.Context, classes []string) error {
	s.setCalls = append(s.setCalls, classes)
	return s.setErr
}

type concatMerger struct{}

func (concatMerger) Merge(guardian, learner []domain.Detection) []domain.Detection {
	return append(append([]domain.Detection{}, guardian...), learner...)
}

type stubLearning struct {
	descResult   []string
	poiResult    []string
	memoryResult bool
}

func (s *stubLearning) FromDescription(_ context.Context, _ string) []string { return s.descResult }

func (s *stubLearning) FromPointsOfInterest(_ context.Context, _ []string) []string {
	return s.poiResult
}

func (s *stubLearning) FromUserMemory(_ context.Context, _ string, _ map[string]string) bool {
	return s.memoryResult
}

type stubVocab struct {
	classes []string
}

func (s *stubVocab) CurrentVocabulary() []string { return s.classes }

type countingCloser struct {
	closed int
	err    error
}

func (c *countingCloser) Close() error {
	c.closed++
	return c.err
}

func newTestOrchestrator(guardian Detector, learner VocabDetector, learning Learning, vocab VocabularyProvider, cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return New(guardian, learner, concatMerger{}, learning, vocab, cfg)
}

func frame(seq uint64) domain.Frame {
	return domain.Frame{Width: 640, Height: 480, Seq: seq, Timestamp: time.Now()}
}

// --- Tests ---

func TestProcessFrame_RunsLayersInParallel(t *testing.T) {
	guardian := &stubDetector{delay: 50 * time.Millisecond}
	learner := &stubVocabDetector{stubDetector: stubDetector{delay: 50 * time.Millisecond}}
	o := newTestOrchestrator(guardian, learner, &stubLearning{}, &stubVocab{}, Config{})
	defer o.Cleanup()

	start := time.Now()
	o.ProcessFrame(context.Background(), frame(1), 0.35)
	elapsed := time.Since(start)

	// Последовательный запуск дал бы ~100ms
	if elapsed >= 90*time.Millisecond {
		t.Errorf("expected parallel execution near 50ms, took %v", elapsed)
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("expected both layers awaited, took %v", elapsed)
	}
}

func TestProcessFrame_MergesBothLayers(t *testing.T) {
	guardian := &stubDetector{dets: []domain.Detection{
		{Class: "person", Confidence: 0.9, Layer: domain.LayerGuardian},
	}}
	learner := &stubVocabDetector{stubDetector: stubDetector{dets: []domain.Detection{
		{Class: "mailbox", Confidence: 0.7, Layer: domain.LayerLearner},
	}}}
	o := newTestOrchestrator(guardian, learner, &stubLearning{}, &stubVocab{}, Config{})
	defer o.Cleanup()

	res := o.ProcessFrame(context.Background(), frame(1), 0.35)

	if len(res.Guardian) != 1 || len(res.Learner) != 1 {
		t.Fatalf("expected one detection per layer, got %d/%d", len(res.Guardian), len(res.Learner))
	}
	if len(res.Merged) != 2 {
		t.Fatalf("expected 2 merged detections, got %d", len(res.Merged))
	}
	if guardian.calls != 1 || learner.calls != 1 {
		t.Errorf("expected one call per layer, got %d/%d", guardian.calls, learner.calls)
	}
}

func TestProcessFrame_CountsFrames(t *testing.T) {
	guardian := &stubDetector{}
	learner := &stubVocabDetector{}
	o := newTestOrchestrator(guardian, learner, &stubLearning{}, &stubVocab{}, Config{})
	defer o.Cleanup()

	for i := 0; i < 3; i++ {
		o.ProcessFrame(context.Background(), frame(uint64(i)), 0.35)
	}

	stats := o.Stats()
	if stats.Frames != 3 {
		t.Errorf("expected 3 frames, got %d", stats.Frames)
	}
	if stats.Guardian.Count != 3 || stats.Learner.Count != 3 || stats.Total.Count != 3 {
		t.Errorf("expected 3 latency samples per tracker, got %+v", stats)
	}
}

func TestLearnFromDescription_PushesVocabulary(t *testing.T) {
	learner := &stubVocabDetector{}
	vocab := &stubVocab{classes: []string{"person", "mailbox"}}
	learning := &stubLearning{descResult: []string{"mailbox"}}
	o := newTestOrchestrator(&stubDetector{}, learner, learning, vocab, Config{})
	defer o.Cleanup()

	admitted := o.LearnFromDescription(context.Background(), "a mailbox by the road")

	if !reflect.DeepEqual(admitted, []string{"mailbox"}) {
		t.Fatalf("expected [mailbox], got %v", admitted)
	}
	// Пуш синхронный: к возврату вызова уже случился
	if len(learner.setCalls) != 1 {
		t.Fatalf("expected 1 vocabulary push, got %d", len(learner.setCalls))
	}
	if !reflect.DeepEqual(learner.setCalls[0], vocab.classes) {
		t.Errorf("expected full vocabulary pushed, got %v", learner.setCalls[0])
	}
	if o.Stats().VocabPushes != 1 {
		t.Errorf("expected 1 push counted, got %d", o.Stats().VocabPushes)
	}
}

func TestLearnFromDescription_NoAdmissionNoPush(t *testing.T) {
	learner := &stubVocabDetector{}
	o := newTestOrchestrator(&stubDetector{}, learner, &stubLearning{}, &stubVocab{}, Config{})
	defer o.Cleanup()

	admitted := o.LearnFromDescription(context.Background(), "nothing new here")

	if len(admitted) != 0 {
		t.Fatalf("expected no admissions, got %v", admitted)
	}
	if len(learner.setCalls) != 0 {
		t.Errorf("expected no pushes, got %d", len(learner.setCalls))
	}
}

func TestLearnFromPOI_PushesVocabulary(t *testing.T) {
	learner := &stubVocabDetector{}
	learning := &stubLearning{poiResult: []string{"coffee shop sign", "menu board"}}
	o := newTestOrchestrator(&stubDetector{}, learner, learning, &stubVocab{}, Config{})
	defer o.Cleanup()

	admitted := o.LearnFromPOI(context.Background(), []string{"Starbucks"})

	if len(admitted) != 2 {
		t.Fatalf("expected 2 admissions, got %v", admitted)
	}
	if len(learner.setCalls) != 1 {
		t.Errorf("expected 1 vocabulary push, got %d", len(learner.setCalls))
	}
}

func TestLearnFromMemory_PushesOnAdmission(t *testing.T) {
	learner := &stubVocabDetector{}
	o := newTestOrchestrator(&stubDetector{}, learner, &stubLearning{memoryResult: true}, &stubVocab{}, Config{})
	defer o.Cleanup()

	if !o.LearnFromMemory(context.Background(), "wallet", nil) {
		t.Fatal("expected admission")
	}
	if len(learner.setCalls) != 1 {
		t.Errorf("expected 1 vocabulary push, got %d", len(learner.setCalls))
	}
}

func TestLearnFromMemory_RejectionNoPush(t *testing.T) {
	learner := &stubVocabDetector{}
	o := newTestOrchestrator(&stubDetector{}, learner, &stubLearning{memoryResult: false}, &stubVocab{}, Config{})
	defer o.Cleanup()

	if o.LearnFromMemory(context.Background(), "person", nil) {
		t.Fatal("expected rejection")
	}
	if len(learner.setCalls) != 0 {
		t.Errorf("expected no pushes, got %d", len(learner.setCalls))
	}
}

func TestPushVocabulary_ErrorNotCounted(t *testing.T) {
	learner := &stubVocabDetector{setErr: errors.New("model server down")}
	o := newTestOrchestrator(&stubDetector{}, learner, &stubLearning{}, &stubVocab{classes: []string{"person"}}, Config{})
	defer o.Cleanup()

	if err := o.PushVocabulary(context.Background()); err == nil {
		t.Fatal("expected push error")
	}
	if o.Stats().VocabPushes != 0 {
		t.Errorf("failed push must not count, got %d", o.Stats().VocabPushes)
	}
}

func TestCleanup_Idempotent(t *testing.T) {
	closer := &countingCloser{}
	o := newTestOrchestrator(&stubDetector{}, &stubVocabDetector{}, &stubLearning{}, &stubVocab{}, Config{
		Closers: []Closer{closer},
	})

	o.Cleanup()
	o.Cleanup()

	if closer.closed != 1 {
		t.Errorf("expected exactly one close, got %d", closer.closed)
	}
}

func TestCleanup_WithoutFrames(t *testing.T) {
	o := newTestOrchestrator(&stubDetector{}, &stubVocabDetector{}, &stubLearning{}, &stubVocab{}, Config{})

	// Без единого кадра тоже не должно зависнуть
	done := make(chan struct{})
	go func() {
		o.Cleanup()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Cleanup hung without prior frames")
	}
}

func TestCleanup_ClosesAllBackends(t *testing.T) {
	first := &countingCloser{}
	second := &countingCloser{err: errors.New("already closed")}
	o := newTestOrchestrator(&stubDetector{}, &stubVocabDetector{}, &stubLearning{}, &stubVocab{}, Config{
		Closers: []Closer{first, second},
	})

	o.Cleanup()

	if first.closed != 1 || second.closed != 1 {
		t.Errorf("expected both closers released, got %d/%d", first.closed, second.closed)
	}
}
