package sim

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sightline-ai/percept/internal/domain"
)

const defaultBoxesPerFrame = 2

// sizeFracs are box side fractions chosen so the resulting normalized
// areas land in each of the four proximity tiers.
var sizeFracs = [4]float64{0.62, 0.45, 0.28, 0.12}

// Config controls the simulated detector backend.
type Config struct {
	// Classes active at construction, replaced by SetClasses.
	Classes []string
	// BoxesPerFrame caps how many boxes one frame yields. Default 2.
	BoxesPerFrame int
	// Latency is added to every Detect call to mimic inference time.
	Latency time.Duration
	Logger  *zap.Logger
}

// Backend produces deterministic pseudo-detections derived from the frame
// sequence number: the same frame and class list always yield the same boxes.
type Backend struct {
	mu            sync.Mutex
	classes       []string
	boxesPerFrame int
	latency       time.Duration
	log           *zap.Logger
}

// NewBackend returns a simulated backend over cfg.Classes.
func NewBackend(cfg *Config) *Backend {
	boxes := cfg.BoxesPerFrame
	if boxes <= 0 {
		boxes = defaultBoxesPerFrame
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	classes := make([]string, len(cfg.Classes))
	copy(classes, cfg.Classes)

	return &Backend{
		classes:       classes,
		boxesPerFrame: boxes,
		latency:       cfg.Latency,
		log:           log,
	}
}

// Detect returns pseudo-boxes for the frame. Boxes below conf are dropped.
func (b *Backend) Detect(ctx context.Context, frame domain.Frame, conf float64) ([]domain.RawBox, error) {
	if b.latency > 0 {
		timer := time.NewTimer(b.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	classes := b.classes
	b.mu.Unlock()

	if len(classes) == 0 || frame.Width <= 0 || frame.Height <= 0 {
		return nil, nil
	}

	n := int(frame.Seq%uint64(b.boxesPerFrame)) + 1
	boxes := make([]domain.RawBox, 0, n)
	for i := 0; i < n; i++ {
		k := frame.Seq + uint64(i)
		confidence := 0.55 + 0.05*float64(k%9)
		if confidence < conf {
			continue
		}
		boxes = append(boxes, boxFor(frame, k, classes[k%uint64(len(classes))], confidence))
	}
	return boxes, nil
}

// boxFor places a tier-sized box, sliding left to right as k grows.
func boxFor(frame domain.Frame, k uint64, class string, confidence float64) domain.RawBox {
	f := sizeFracs[k%4]
	w := f * float64(frame.Width)
	h := f * float64(frame.Height)
	x1 := (float64(frame.Width) - w) * float64(k%5) / 4
	y1 := (float64(frame.Height) - h) / 2
	return domain.RawBox{
		Class:      class,
		Confidence: confidence,
		X1:         x1,
		Y1:         y1,
		X2:         x1 + w,
		Y2:         y1 + h,
	}
}

// SetClasses replaces the active class list. Vectors are ignored: the
// simulated backend has no embedding space.
func (b *Backend) SetClasses(_ context.Context, classes []string, _ [][]float32) error {
	next := make([]string, len(classes))
	copy(next, classes)

	b.mu.Lock()
	b.classes = next
	b.mu.Unlock()

	b.log.Debug("sim backend classes replaced", zap.Int("count", len(next)))
	return nil
}

// Ping reports the backend as always reachable.
func (b *Backend) Ping(context.Context) error { return nil }

// Close releases nothing but satisfies the optional closer contract.
func (b *Backend) Close() error { return nil }
