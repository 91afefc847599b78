// Package sim provides an in-process frame source and detector backend
// so the daemon runs end to end without a camera or a model server.
package sim

import (
	"context"
	"time"

	"github.com/sightline-ai/percept/internal/domain"
)

// SourceConfig controls the synthetic frame generator.
type SourceConfig struct {
	Width  int
	Height int
	// Interval paces Next calls. Zero means no pacing.
	Interval time.Duration
	// Limit caps the number of frames. Zero means unlimited.
	Limit uint64
}

// SyntheticSource generates fixed-size frames with a static test pattern.
// Not safe for concurrent use; the pipeline runner is the sole consumer.
type SyntheticSource struct {
	width    int
	height   int
	interval time.Duration
	limit    uint64
	seq      uint64
	data     []byte
}

// NewSource returns a source producing cfg.Width x cfg.Height frames.
func NewSource(cfg SourceConfig) *SyntheticSource {
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.Height <= 0 {
		cfg.Height = 480
	}

	// Один буфер на все кадры, содержимое не меняется
	data := make([]byte, cfg.Width*cfg.Height*3)
	for i := range data {
		data[i] = byte(i % 251)
	}

	return &SyntheticSource{
		width:    cfg.Width,
		height:   cfg.Height,
		interval: cfg.Interval,
		limit:    cfg.Limit,
		data:     data,
	}
}

// Next returns the next synthetic frame, pacing by the configured interval.
// Returns domain.ErrFrameSourceDone once the frame limit is reached.
func (s *SyntheticSource) Next(ctx context.Context) (domain.Frame, error) {
	if s.limit > 0 && s.seq >= s.limit {
		return domain.Frame{}, domain.ErrFrameSourceDone
	}

	if s.interval > 0 {
		timer := time.NewTimer(s.interval)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return domain.Frame{}, ctx.Err()
		}
	}

	frame := domain.Frame{
		Data:      s.data,
		Width:     s.width,
		Height:    s.height,
		Timestamp: time.Now(),
		Seq:       s.seq,
	}
	s.seq++
	return frame, nil
}
