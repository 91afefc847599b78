// Package vocabulary holds the detector class lists: the fixed base
// vocabulary plus a bounded store of dynamically learned names.
package vocabulary

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sightline-ai/percept/internal/domain"
	"github.com/sightline-ai/percept/internal/metrics"
)

// Defaults for the dynamic store bounds.
const (
	DefaultMaxEntries  = 50
	DefaultPruneAge    = 24 * time.Hour
	DefaultMinUseCount = 3
)

// repository persists the dynamic vocabulary between runs.
type repository interface {
	Load() (map[string]domain.VocabularyEntry, time.Time, error)
	Save(entries map[string]domain.VocabularyEntry) error
}

// Config bounds the dynamic store. Zero values take the defaults.
type Config struct {
	MaxEntries int
	PruneAge   time.Duration
	// MinUseCount is the use count at which an entry survives pruning.
	MinUseCount int
}

// Store keeps the dynamic vocabulary behind a mutex: the pipeline
// goroutine and the ops API mutate it concurrently.
type Store struct {
	mu          sync.Mutex
	entries     map[string]domain.VocabularyEntry
	order       []string
	repo        repository
	maxEntries  int
	pruneAge    time.Duration
	minUseCount int
	lastUpdated time.Time
	log         *zap.Logger
	now         func() time.Time // переопределяется в тестах
}

// New creates a store and loads persisted entries. A nil repo disables
// persistence. Load errors log and start empty: a broken file must not
// keep the device from booting.
func New(repo repository, cfg Config, log *zap.Logger) *Store {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.PruneAge <= 0 {
		cfg.PruneAge = DefaultPruneAge
	}
	if cfg.MinUseCount <= 0 {
		cfg.MinUseCount = DefaultMinUseCount
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Store{
		entries:     make(map[string]domain.VocabularyEntry),
		repo:        repo,
		maxEntries:  cfg.MaxEntries,
		pruneAge:    cfg.PruneAge,
		minUseCount: cfg.MinUseCount,
		log:         log,
		now:         time.Now,
	}
	s.load()

	metrics.VocabularySize.Set(float64(len(s.entries)))
	return s
}

func (s *Store) load() {
	if s.repo == nil {
		return
	}

	loaded, lastUpdated, err := s.repo.Load()
	if err != nil {
		s.log.Warn("vocabulary load failed, starting empty", zap.Error(err))
		return
	}

	for name, e := range loaded {
		key := domain.NormalizeClassName(name)
		if key == "" || IsBase(key) {
			// База всегда главнее динамики
			continue
		}
		e.Name = key
		if e.UseCount < 1 {
			e.UseCount = 1
		}
		s.entries[key] = e
	}

	// Файл хранит map: восстанавливаем порядок вставки по FirstSeen
	s.order = make([]string, 0, len(s.entries))
	for name := range s.entries {
		s.order = append(s.order, name)
	}
	sort.Slice(s.order, func(i, j int) bool {
		a, b := s.entries[s.order[i]], s.entries[s.order[j]]
		if a.FirstSeen.Equal(b.FirstSeen) {
			return a.Name < b.Name
		}
		return a.FirstSeen.Before(b.FirstSeen)
	})

	s.lastUpdated = lastUpdated
	s.log.Info("vocabulary loaded",
		zap.Int("entries", len(s.entries)),
		zap.Time("last_updated", lastUpdated))
}

// Add admits a learned name into the dynamic store. Returns true only
// when a new entry was created. Base names are never admitted; a known
// dynamic name bumps its use count instead. When the store is full it
// prunes first and rejects if still full.
func (s *Store) Add(name string, source domain.VocabSource, metadata map[string]string) bool {
	key := domain.NormalizeClassName(name)
	if key == "" {
		return false
	}
	if IsBase(key) {
		metrics.LearnedTermsTotal.WithLabelValues(string(source), "duplicate").Inc()
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.UseCount++
		s.entries[key] = e
		s.persistLocked()
		metrics.LearnedTermsTotal.WithLabelValues(string(source), "duplicate").Inc()
		return false
	}

	if len(s.entries) >= s.maxEntries {
		if s.pruneLocked() > 0 {
			s.persistLocked()
		}
		if len(s.entries) >= s.maxEntries {
			s.log.Warn("vocabulary full, rejecting",
				zap.String("name", key),
				zap.Int("max_entries", s.maxEntries))
			metrics.LearnedTermsTotal.WithLabelValues(string(source), "rejected").Inc()
			return false
		}
	}

	s.entries[key] = domain.VocabularyEntry{
		Name:      key,
		Source:    source,
		FirstSeen: s.now(),
		UseCount:  1,
		Metadata:  metadata,
	}
	s.order = append(s.order, key)
	s.persistLocked()

	metrics.LearnedTermsTotal.WithLabelValues(string(source), "added").Inc()
	s.log.Info("vocabulary entry added",
		zap.String("name", key),
		zap.String("source", string(source)),
		zap.Int("dynamic_entries", len(s.entries)))
	return true
}

// Prune removes every dynamic entry that is both older than PruneAge
// and used fewer than MinUseCount times. Returns how many were removed.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.pruneLocked()
	if removed > 0 {
		s.persistLocked()
	}
	return removed
}

func (s *Store) pruneLocked() int {
	now := s.now()
	remaining := make([]string, 0, len(s.order))
	removed := 0

	for _, name := range s.order {
		e := s.entries[name]
		if e.Age(now) > s.pruneAge && e.UseCount < s.minUseCount {
			delete(s.entries, name)
			removed++
			continue
		}
		remaining = append(remaining, name)
	}
	s.order = remaining

	if removed > 0 {
		s.log.Info("vocabulary pruned",
			zap.Int("removed", removed),
			zap.Int("dynamic_entries", len(s.entries)))
	}
	return removed
}

// persistLocked saves the dynamic map and keeps in-memory state
// authoritative on failure. Caller holds s.mu.
func (s *Store) persistLocked() {
	s.lastUpdated = s.now()
	metrics.VocabularySize.Set(float64(len(s.entries)))

	if s.repo == nil {
		return
	}
	if err := s.repo.Save(s.entries); err != nil {
		s.log.Error("vocabulary save failed, in-memory state kept", zap.Error(err))
	}
}

// CurrentVocabulary returns base names followed by dynamic names in
// insertion order. The result is what the learner detector runs on.
func (s *Store) CurrentVocabulary() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(baseVocabulary)+len(s.order))
	out = append(out, baseVocabulary...)
	out = append(out, s.order...)
	return out
}

// SourceOf reports the provenance of a class name.
func (s *Store) SourceOf(name string) domain.VocabSource {
	key := domain.NormalizeClassName(name)
	if IsBase(key) {
		return domain.SourceBase
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		return e.Source
	}
	return domain.SourceUnknown
}

// Entries returns the dynamic entries in insertion order.
func (s *Store) Entries() []domain.VocabularyEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.VocabularyEntry, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.entries[name])
	}
	return out
}

// Len returns the number of dynamic entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cap returns the soft capacity of the dynamic store.
func (s *Store) Cap() int {
	return s.maxEntries
}

// LastUpdated returns when the store last changed.
func (s *Store) LastUpdated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdated
}
