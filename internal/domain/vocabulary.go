package domain

import (
	"strings"
	"time"
)

// VocabSource identifies where a vocabulary name came from.
type VocabSource string

const (
	// SourceBase marks a name from the fixed base vocabulary.
	SourceBase VocabSource = "base"
	// SourceGemini marks a name learned from a scene description.
	SourceGemini VocabSource = "gemini"
	// SourceMaps marks a name learned from a point-of-interest list.
	SourceMaps VocabSource = "maps"
	// SourceMemory marks a name supplied directly by the user.
	SourceMemory VocabSource = "memory"
	// SourceUnknown marks a name the store has never seen.
	SourceUnknown VocabSource = "unknown"
)

// VocabularyEntry is one dynamically learned class name.
// Name is the unique key within the dynamic store.
type VocabularyEntry struct {
	Name      string            `json:"name"`
	Source    VocabSource       `json:"source"`
	FirstSeen time.Time         `json:"first_seen"`
	UseCount  int               `json:"use_count"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Age returns how long ago the entry was first learned.
func (e VocabularyEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.FirstSeen)
}

// NormalizeClassName lower-cases and trims a class name. All vocabulary
// keys and dedup comparisons go through this.
func NormalizeClassName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
