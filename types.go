package percept

import "time"

// HealthStatus represents the aggregated daemon health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded", "error"
	Checks map[string]string `json:"checks"` // component → "ok"/"error"
}

// LayerStats is a rolling latency summary for one pipeline stage.
type LayerStats struct {
	Count  uint64  `json:"count"`
	Window int     `json:"window"`
	Mean   float64 `json:"mean_ms"`
	P95    float64 `json:"p95_ms"`
	Max    float64 `json:"max_ms"`
	Last   float64 `json:"last_ms"`
}

// PipelineStats is the rolling performance view of the detection loop.
type PipelineStats struct {
	Frames      uint64     `json:"frames"`
	VocabPushes uint64     `json:"vocab_pushes"`
	Guardian    LayerStats `json:"guardian"`
	Learner     LayerStats `json:"learner"`
	VocabPush   LayerStats `json:"vocab_push"`
	Total       LayerStats `json:"total"`
}

// VocabularyCounts summarizes the class lists inside Status.
type VocabularyCounts struct {
	Base        int       `json:"base"`
	Dynamic     int       `json:"dynamic"`
	Total       int       `json:"total"`
	Capacity    int       `json:"capacity"`
	LastUpdated time.Time `json:"last_updated"`
}

// Status is the aggregate daemon view.
type Status struct {
	Version       string           `json:"version"`
	Commit        string           `json:"commit"`
	Pipeline      PipelineStats    `json:"pipeline"`
	Vocabulary    VocabularyCounts `json:"vocabulary"`
	SafetyClasses int              `json:"safety_classes"`
}

// UsageReport is embedding token spend for one budget window.
// Limit 0 means no limit is configured; Remaining is -1 in that case.
type UsageReport struct {
	Window    string    `json:"window"` // "day" or "month"
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Limit     int64     `json:"limit"`
	Used      int64     `json:"used"`
	Remaining int64     `json:"remaining"`
	Exhausted bool      `json:"exhausted"`
}

// VocabularyEntry is one dynamically learned class name.
type VocabularyEntry struct {
	Name      string            `json:"name"`
	Source    string            `json:"source"` // "gemini", "maps", "memory"
	FirstSeen time.Time         `json:"first_seen"`
	UseCount  int               `json:"use_count"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// VocabularyList is the active detector vocabulary.
type VocabularyList struct {
	Classes     []string          `json:"classes"` // base names first, then dynamic
	Base        int               `json:"base"`
	Dynamic     []VocabularyEntry `json:"dynamic"`
	Capacity    int               `json:"capacity"`
	LastUpdated time.Time         `json:"last_updated"`
}

// TeachResult reports a user-memory admission outcome.
type TeachResult struct {
	Name           string `json:"name"`
	Added          bool   `json:"added"`
	DynamicEntries int    `json:"dynamic_entries"`
}

// PruneResult reports how many dynamic entries a prune removed.
type PruneResult struct {
	Removed        int `json:"removed"`
	DynamicEntries int `json:"dynamic_entries"`
}
