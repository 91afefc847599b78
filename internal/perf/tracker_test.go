package perf

import "testing"

func TestTracker_EmptySummary(t *testing.T) {
	tr := NewTracker(10)
	s := tr.Summary()
	if s.Count != 0 || s.Mean != 0 || s.P95 != 0 {
		t.Errorf("expected zero summary, got %+v", s)
	}
}

func TestTracker_Mean(t *testing.T) {
	tr := NewTracker(10)
	for _, v := range []float64{10, 20, 30} {
		tr.Observe(v)
	}
	if got := tr.Mean(); got != 20 {
		t.Errorf("expected mean 20, got %f", got)
	}
}

func TestTracker_WindowEviction(t *testing.T) {
	tr := NewTracker(3)
	// First three fill the window, the fourth evicts the oldest (100).
	for _, v := range []float64{100, 10, 20, 30} {
		tr.Observe(v)
	}
	if got := tr.Mean(); got != 20 {
		t.Errorf("expected mean 20 after eviction, got %f", got)
	}
	if got := tr.Count(); got != 4 {
		t.Errorf("expected total count 4, got %d", got)
	}
}

func TestTracker_Summary(t *testing.T) {
	tr := NewTracker(100)
	for i := 1; i <= 100; i++ {
		tr.Observe(float64(i))
	}
	s := tr.Summary()
	if s.Count != 100 {
		t.Errorf("expected count 100, got %d", s.Count)
	}
	if s.Mean != 50.5 {
		t.Errorf("expected mean 50.5, got %f", s.Mean)
	}
	if s.Max != 100 {
		t.Errorf("expected max 100, got %f", s.Max)
	}
	if s.P95 < 90 || s.P95 > 100 {
		t.Errorf("expected p95 in [90,100], got %f", s.P95)
	}
	if s.Last != 100 {
		t.Errorf("expected last 100, got %f", s.Last)
	}
}

func TestTracker_DefaultWindow(t *testing.T) {
	tr := NewTracker(0)
	if len(tr.samples) != DefaultWindow {
		t.Errorf("expected default window %d, got %d", DefaultWindow, len(tr.samples))
	}
}
