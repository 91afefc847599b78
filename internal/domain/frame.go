package domain

import (
	"context"
	"time"
)

// Frame is one decoded camera image: 8-bit, 3 channels, row-major.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Timestamp time.Time
	Seq       uint64
}

// FrameSource supplies decoded frames on demand. Capture backends live
// outside the core; the pipeline only pulls.
type FrameSource interface {
	// Next blocks until a frame is available or ctx is done.
	// Returns ErrFrameSourceDone when the source is exhausted.
	Next(ctx context.Context) (Frame, error)
}
