package tracking

import (
	"strings"

	"github.com/sentinel-vision/sentinel/internal/monitoring"
)

// BoxTracker abstracts the tracking implementation used by an edge loop.
type BoxTracker interface {
	// Update consumes one frame of detections and returns the boxes that were
	// associated with a track, each annotated with the track id.
	Update(detections []Box) []TrackedBox
}

// Verify at compile time that both implementations satisfy BoxTracker.
var (
	_ BoxTracker = (*Tracker)(nil)
	_ BoxTracker = Passthrough{}
)

// Tracker implementation names accepted by New.
const (
	ImplCentroid    = "centroid"
	ImplPassthrough = "passthrough"
)

// Passthrough labels each detection with its 1-based position in the frame.
// Ids are not stable across frames.
type Passthrough struct{}

// Update implements BoxTracker.
func (Passthrough) Update(detections []Box) []TrackedBox {
	out := make([]TrackedBox, len(detections))
	for i, d := range detections {
		out[i] = TrackedBox{Box: d, TrackID: int64(i + 1)}
	}
	return out
}

// New returns the tracker named by impl. Unknown names fall back to the
// centroid tracker.
func New(impl string, config Config) BoxTracker {
	switch strings.ToLower(strings.TrimSpace(impl)) {
	case "", ImplCentroid:
		return NewTracker(config)
	case ImplPassthrough, "ocsort_stub":
		return Passthrough{}
	default:
		monitoring.Logf("tracker %q not available; using %s", impl, ImplCentroid)
		return NewTracker(config)
	}
}
