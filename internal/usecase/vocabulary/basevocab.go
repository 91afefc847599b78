package vocabulary

// baseVocabulary is the static class list the guardian model ships with:
// COCO-derived, oriented at hazards and daily living, with the outdoor
// sports classes dropped and "door" added for indoor navigation.
var baseVocabulary = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train",
	"truck", "boat", "traffic light", "fire hydrant", "stop sign",
	"parking meter", "bench", "bird", "cat", "dog", "horse", "sheep",
	"cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella",
	"handbag", "tie", "suitcase", "skis", "sports ball", "skateboard",
	"surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork",
	"knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv",
	"laptop", "mouse", "remote", "keyboard", "cell phone", "microwave",
	"oven", "toaster", "sink", "refrigerator", "book", "clock", "vase",
	"scissors", "teddy bear", "hair drier", "toothbrush", "door",
}

var baseSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(baseVocabulary))
	for _, name := range baseVocabulary {
		set[name] = struct{}{}
	}
	return set
}()

// BaseVocabulary returns a copy of the fixed base class list.
func BaseVocabulary() []string {
	out := make([]string, len(baseVocabulary))
	copy(out, baseVocabulary)
	return out
}

// IsBase reports whether the normalized name belongs to the base list.
func IsBase(name string) bool {
	_, ok := baseSet[name]
	return ok
}
