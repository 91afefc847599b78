package domain

import (
	"fmt"
	"strings"
)

// SourceLayer identifies which detector produced a detection.
type SourceLayer string

const (
	// LayerGuardian marks output of the static safety detector.
	LayerGuardian SourceLayer = "guardian"
	// LayerLearner marks output of the dynamic-vocabulary detector.
	LayerLearner SourceLayer = "learner"
)

// ProximityTier is a coarse distance bucket derived from bounding-box area.
type ProximityTier string

const (
	TierImmediate ProximityTier = "immediate"
	TierNear      ProximityTier = "near"
	TierFar       ProximityTier = "far"
	TierDistant   ProximityTier = "distant"
)

// Priority ranks a detection for alerting, 1:1 with ProximityTier.
// Higher value = more urgent, so the top detection is a plain max.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// String returns the wire/log name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// Area thresholds (fraction of frame area) separating proximity tiers.
const (
	AreaImmediate = 0.30
	AreaNear      = 0.15
	AreaFar       = 0.05
)

// BBox is a bounding box normalized to [0,1] frame coordinates.
type BBox struct {
	X1, Y1, X2, Y2 float64
}

// Area returns the normalized box area.
func (b BBox) Area() float64 {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

func (b BBox) valid() bool {
	inRange := func(v float64) bool { return v >= 0 && v <= 1 }
	return inRange(b.X1) && inRange(b.Y1) && inRange(b.X2) && inRange(b.Y2) &&
		b.X1 < b.X2 && b.Y1 < b.Y2
}

// RawBox is one raw model output box in pixel coordinates, before
// thresholding and normalization by the detector wrappers.
type RawBox struct {
	Class      string
	Confidence float64
	X1, Y1     float64
	X2, Y2     float64
}

// Detection is one observed object instance in one frame.
// Created per inference call, immutable, never persisted by the core.
type Detection struct {
	Class      string
	Confidence float64
	Box        BBox
	Area       float64
	Tier       ProximityTier
	Priority   Priority
	Layer      SourceLayer
	// Origin is the vocabulary provenance of Class for learner
	// detections (base/gemini/maps/memory). Empty for guardian.
	Origin VocabSource
}

// NewDetection validates inputs and derives Area, Tier and Priority.
func NewDetection(class string, confidence float64, box BBox, layer SourceLayer) (Detection, error) {
	class = strings.TrimSpace(class)
	if class == "" {
		return Detection{}, ErrEmptyClassName
	}
	if confidence < 0 || confidence > 1 {
		return Detection{}, fmt.Errorf("%w: %f", ErrInvalidConfidence, confidence)
	}
	if !box.valid() {
		return Detection{}, fmt.Errorf("%w: %+v", ErrInvalidBox, box)
	}

	area := box.Area()
	tier := TierForArea(area)
	return Detection{
		Class:      class,
		Confidence: confidence,
		Box:        box,
		Area:       area,
		Tier:       tier,
		Priority:   PriorityForTier(tier),
		Layer:      layer,
	}, nil
}

// TierForArea maps a normalized box area to a proximity tier.
func TierForArea(area float64) ProximityTier {
	switch {
	case area >= AreaImmediate:
		return TierImmediate
	case area >= AreaNear:
		return TierNear
	case area >= AreaFar:
		return TierFar
	default:
		return TierDistant
	}
}

// PriorityForTier maps a proximity tier to its alerting priority.
func PriorityForTier(tier ProximityTier) Priority {
	switch tier {
	case TierImmediate:
		return PriorityCritical
	case TierNear:
		return PriorityHigh
	case TierFar:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
