// Package vocabfile persists learned vocabulary as a JSON file on disk.
package vocabfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sightline-ai/percept/internal/domain"
)

// fileFormat is the on-disk layout of the vocabulary file.
type fileFormat struct {
	LastUpdated time.Time                         `json:"last_updated"`
	Entries     map[string]domain.VocabularyEntry `json:"entries"`
}

// Repo reads and writes a vocabulary file.
type Repo struct {
	path string
	now  func() time.Time
}

// New creates a vocabulary file repository at the given path.
func New(path string) *Repo {
	return &Repo{path: path, now: time.Now}
}

// Path returns the backing file path.
func (r *Repo) Path() string { return r.path }

// Load reads the vocabulary file. A missing file yields an empty map so
// a fresh device starts clean. A corrupt file yields an empty map plus
// the parse error, letting the caller log and continue.
func (r *Repo) Load() (map[string]domain.VocabularyEntry, time.Time, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]domain.VocabularyEntry{}, time.Time{}, nil
		}
		return map[string]domain.VocabularyEntry{}, time.Time{}, fmt.Errorf("read %s: %w", r.path, err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return map[string]domain.VocabularyEntry{}, time.Time{}, fmt.Errorf("parse %s: %w", r.path, err)
	}
	if f.Entries == nil {
		f.Entries = map[string]domain.VocabularyEntry{}
	}
	return f.Entries, f.LastUpdated, nil
}

// Check probes that the vocabulary directory is writable, so a broken
// mount shows up in /healthz before the first failed Save.
func (r *Repo) Check() error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".vocabulary-probe-*")
	if err != nil {
		return fmt.Errorf("vocabulary dir not writable: %w", err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}

// Save atomically replaces the vocabulary file: write a temp file in the
// same directory, then rename over the target. A crash mid-write leaves
// the previous file intact.
func (r *Repo) Save(entries map[string]domain.VocabularyEntry) error {
	f := fileFormat{
		LastUpdated: r.now(),
		Entries:     entries,
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal vocabulary: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".vocabulary-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", r.path, err)
	}
	return nil
}
