// Package detect wraps the two detector backends: the static safety
// guardian and the dynamic-vocabulary learner. Both fail closed: an
// inference error yields an empty detection list, never a panic or an
// error to the pipeline.
package detect

import "github.com/sightline-ai/percept/internal/domain"

// DefaultSafetyClasses is the built-in guardian class set: hazards and
// obstacles relevant to a walking user.
var DefaultSafetyClasses = []string{
	"person", "bicycle", "car", "motorcycle", "bus", "train", "truck",
	"traffic light", "fire hydrant", "stop sign", "bench", "dog",
	"chair", "couch", "dining table", "knife", "scissors", "oven",
	"refrigerator", "toilet",
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeBox converts a pixel-space raw box into frame-relative
// coordinates, clamping to the frame. Degenerate boxes report false.
func normalizeBox(raw domain.RawBox, width, height int) (domain.BBox, bool) {
	if width <= 0 || height <= 0 {
		return domain.BBox{}, false
	}

	w, h := float64(width), float64(height)
	box := domain.BBox{
		X1: clamp01(raw.X1 / w),
		Y1: clamp01(raw.Y1 / h),
		X2: clamp01(raw.X2 / w),
		Y2: clamp01(raw.Y2 / h),
	}
	if box.X1 >= box.X2 || box.Y1 >= box.Y2 {
		return domain.BBox{}, false
	}
	return box, true
}
