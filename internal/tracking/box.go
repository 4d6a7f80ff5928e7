package tracking

import "fmt"

// Box is a detection in frame pixel coordinates. Extra carries any trailing
// fields supplied with the detection; they are reported back unchanged.
type Box struct {
	X1, Y1, X2, Y2 float64
	Extra          []float64
}

// BoxFromValues builds a Box from the wire form [x1, y1, x2, y2, extra...].
func BoxFromValues(v []float64) (Box, error) {
	if len(v) < 4 {
		return Box{}, fmt.Errorf("box needs at least 4 values, got %d", len(v))
	}
	b := Box{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}
	if len(v) > 4 {
		b.Extra = append([]float64(nil), v[4:]...)
	}
	return b, nil
}

// Center returns the midpoint of the box.
func (b Box) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2.0, (b.Y1 + b.Y2) / 2.0
}

// Values returns the wire form of the box.
func (b Box) Values() []float64 {
	out := make([]float64, 0, 4+len(b.Extra))
	out = append(out, b.X1, b.Y1, b.X2, b.Y2)
	return append(out, b.Extra...)
}

// TrackedBox is a detection annotated with the identity of the track it was
// associated with in the current update.
type TrackedBox struct {
	Box
	TrackID int64
}

// Values returns the wire form [x1, y1, x2, y2, extra..., id].
func (t TrackedBox) Values() []float64 {
	return append(t.Box.Values(), float64(t.TrackID))
}

// Track is the tracker's view of one physical object.
type Track struct {
	ID        int64
	CenterX   float64
	CenterY   float64
	LostCount int
}
