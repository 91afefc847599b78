// Package fusion merges the two detector outputs into one ranked list.
// The merge is pure: no I/O, no clocks, deterministic for equal input.
package fusion

import (
	"sort"
	"strings"

	"github.com/sightline-ai/percept/internal/domain"
)

// DefaultPriorityClasses is the built-in alert priority set. It overlaps
// the guardian safety set but also names hazards only the learner can
// see, like stairs or a wet floor sign.
var DefaultPriorityClasses = []string{
	"person",
	"car",
	"truck",
	"bus",
	"motorcycle",
	"bicycle",
	"train",
	"traffic light",
	"stop sign",
	"knife",
	"scissors",
	"dog",
	"stairs",
	"staircase",
	"door",
	"glass door",
	"fire",
	"smoke",
	"pothole",
	"wet floor sign",
}

// Aggregator deduplicates and ranks detections from both layers.
type Aggregator struct {
	priority map[string]struct{}
}

// New creates an aggregator. Empty classes means DefaultPriorityClasses.
func New(priorityClasses []string) *Aggregator {
	if len(priorityClasses) == 0 {
		priorityClasses = DefaultPriorityClasses
	}
	set := make(map[string]struct{}, len(priorityClasses))
	for _, name := range priorityClasses {
		set[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	return &Aggregator{priority: set}
}

// PrioritySize returns the priority class count, for the status endpoint.
func (a *Aggregator) PrioritySize() int { return len(a.priority) }

// IsPriority reports whether a class belongs to the priority set.
func (a *Aggregator) IsPriority(class string) bool {
	_, ok := a.priority[strings.ToLower(class)]
	return ok
}

// Merge combines both detector outputs: one entry per class keeping the
// higher confidence (tie keeps the guardian copy), priority classes
// first, each partition sorted by confidence descending.
func (a *Aggregator) Merge(guardian, learner []domain.Detection) []domain.Detection {
	merged := make([]domain.Detection, 0, len(guardian)+len(learner))
	index := make(map[string]int, len(guardian)+len(learner))

	dedup := func(dets []domain.Detection) {
		for _, d := range dets {
			key := strings.ToLower(d.Class)
			if i, ok := index[key]; ok {
				// Только строго выше: при равенстве остаётся первый
				if d.Confidence > merged[i].Confidence {
					merged[i] = d
				}
				continue
			}
			index[key] = len(merged)
			merged = append(merged, d)
		}
	}
	dedup(guardian)
	dedup(learner)

	priority := make([]domain.Detection, 0, len(merged))
	other := make([]domain.Detection, 0, len(merged))
	for _, d := range merged {
		if a.IsPriority(d.Class) {
			priority = append(priority, d)
		} else {
			other = append(other, d)
		}
	}

	byConfidence := func(dets []domain.Detection) func(i, j int) bool {
		return func(i, j int) bool { return dets[i].Confidence > dets[j].Confidence }
	}
	sort.SliceStable(priority, byConfidence(priority))
	sort.SliceStable(other, byConfidence(other))

	return append(priority, other...)
}

// PriorityAlerts returns the deduplicated class names from the priority
// set, highest confidence first.
func (a *Aggregator) PriorityAlerts(guardian, learner []domain.Detection) []string {
	merged := a.Merge(guardian, learner)
	names := make([]string, 0, len(merged))
	for _, d := range merged {
		if !a.IsPriority(d.Class) {
			// Приоритетная часть идёт первой, дальше можно не смотреть
			break
		}
		names = append(names, d.Class)
	}
	return names
}
