package sim

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sightline-ai/percept/internal/domain"
)

func testFrame(seq uint64) domain.Frame {
	return domain.Frame{
		Data:      make([]byte, 640*480*3),
		Width:     640,
		Height:    480,
		Timestamp: time.Now(),
		Seq:       seq,
	}
}

// --- Backend ---

func TestBackend_Deterministic(t *testing.T) {
	b := NewBackend(&Config{Classes: []string{"person", "dog"}, Logger: zap.NewNop()})

	frame := testFrame(7)
	first, err := b.Detect(context.Background(), frame, 0.0)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	second, err := b.Detect(context.Background(), frame, 0.0)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(first) == 0 {
		t.Fatal("expected at least one box")
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same frame produced different boxes:\n%+v\n%+v", first, second)
	}
}

func TestBackend_ConfidenceThreshold(t *testing.T) {
	b := NewBackend(&Config{Classes: []string{"person", "dog"}, Logger: zap.NewNop()})

	// seq=1 даёт два бокса с confidence 0.60 и 0.65
	frame := testFrame(1)
	all, err := b.Detect(context.Background(), frame, 0.0)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 boxes without threshold, got %d", len(all))
	}

	filtered, err := b.Detect(context.Background(), frame, 0.62)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(filtered) != 1 {
		t.Fatalf("expected 1 box above 0.62, got %d", len(filtered))
	}
	if filtered[0].Confidence < 0.62 {
		t.Errorf("box below threshold survived: %+v", filtered[0])
	}
}

func TestBackend_BoxesStayInFrame(t *testing.T) {
	b := NewBackend(&Config{Classes: []string{"person", "dog", "chair"}, Logger: zap.NewNop()})

	for seq := uint64(0); seq < 20; seq++ {
		frame := testFrame(seq)
		boxes, err := b.Detect(context.Background(), frame, 0.0)
		if err != nil {
			t.Fatalf("Detect failed at seq %d: %v", seq, err)
		}
		for _, box := range boxes {
			if box.X1 < 0 || box.Y1 < 0 || box.X2 > float64(frame.Width) || box.Y2 > float64(frame.Height) {
				t.Errorf("seq %d: box out of frame: %+v", seq, box)
			}
			if box.X1 >= box.X2 || box.Y1 >= box.Y2 {
				t.Errorf("seq %d: degenerate box: %+v", seq, box)
			}
		}
	}
}

func TestBackend_SetClassesReplacesVocabulary(t *testing.T) {
	b := NewBackend(&Config{Classes: []string{"person"}, Logger: zap.NewNop()})

	frame := testFrame(0)
	boxes, err := b.Detect(context.Background(), frame, 0.0)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(boxes) != 1 || boxes[0].Class != "person" {
		t.Fatalf("unexpected boxes before SetClasses: %+v", boxes)
	}

	if err := b.SetClasses(context.Background(), []string{"mailbox"}, nil); err != nil {
		t.Fatalf("SetClasses failed: %v", err)
	}

	boxes, err = b.Detect(context.Background(), frame, 0.0)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(boxes) != 1 || boxes[0].Class != "mailbox" {
		t.Fatalf("unexpected boxes after SetClasses: %+v", boxes)
	}
}

func TestBackend_EmptyClasses(t *testing.T) {
	b := NewBackend(&Config{Logger: zap.NewNop()})

	boxes, err := b.Detect(context.Background(), testFrame(3), 0.0)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(boxes) != 0 {
		t.Errorf("expected no boxes without classes, got %d", len(boxes))
	}
}

// --- SyntheticSource ---

func TestSource_LimitExhausts(t *testing.T) {
	src := NewSource(SourceConfig{Width: 64, Height: 48, Limit: 3})

	for i := uint64(0); i < 3; i++ {
		frame, err := src.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed at %d: %v", i, err)
		}
		if frame.Seq != i {
			t.Errorf("expected seq %d, got %d", i, frame.Seq)
		}
		if len(frame.Data) != 64*48*3 {
			t.Errorf("expected %d bytes, got %d", 64*48*3, len(frame.Data))
		}
	}

	_, err := src.Next(context.Background())
	if !errors.Is(err, domain.ErrFrameSourceDone) {
		t.Errorf("expected ErrFrameSourceDone, got %v", err)
	}
}

func TestSource_CancelDuringPacing(t *testing.T) {
	src := NewSource(SourceConfig{Width: 64, Height: 48, Interval: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Next(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
