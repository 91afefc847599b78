// Package perf tracks rolling per-call latency samples for monitoring.
// Samples feed log warnings and the status endpoint, never control flow.
package perf

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// DefaultWindow is the ring buffer size used when none is given.
const DefaultWindow = 100

// Summary is a point-in-time view over the rolling window.
type Summary struct {
	Count  uint64  `json:"count"` // total samples ever observed
	Window int     `json:"window"`
	Mean   float64 `json:"mean_ms"`
	P95    float64 `json:"p95_ms"`
	Max    float64 `json:"max_ms"`
	Last   float64 `json:"last_ms"`
}

// Tracker keeps a fixed-size rolling window of latency samples in
// milliseconds. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	samples []float64
	next    int
	filled  int
	count   uint64
	last    float64
}

// NewTracker creates a tracker with the given window size.
func NewTracker(window int) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{samples: make([]float64, window)}
}

// Observe records one latency sample, evicting the oldest when the
// window is full.
func (t *Tracker) Observe(ms float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples[t.next] = ms
	t.next = (t.next + 1) % len(t.samples)
	if t.filled < len(t.samples) {
		t.filled++
	}
	t.count++
	t.last = ms
}

// Count returns the total number of samples ever observed.
func (t *Tracker) Count() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Mean returns the rolling mean, 0 when empty.
func (t *Tracker) Mean() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.filled == 0 {
		return 0
	}
	return stat.Mean(t.samples[:t.filled], nil)
}

// Summary computes rolling statistics over the current window.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	window := make([]float64, t.filled)
	copy(window, t.samples[:t.filled])
	s := Summary{Count: t.count, Window: len(t.samples), Last: t.last}
	t.mu.Unlock()

	if len(window) == 0 {
		return s
	}

	sort.Float64s(window)
	s.Mean = stat.Mean(window, nil)
	s.P95 = stat.Quantile(0.95, stat.Empirical, window, nil)
	s.Max = window[len(window)-1]
	return s
}
