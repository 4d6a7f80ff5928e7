package tracking

import "fmt"

// Normalize converts tracked boxes to the ingestion wire form. The four box
// coordinates are divided by the frame width and height; trailing fields and
// the track id are appended unchanged.
func Normalize(tracked []TrackedBox, width, height int) ([][]float64, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	w, h := float64(width), float64(height)
	out := make([][]float64, 0, len(tracked))
	for _, tb := range tracked {
		row := make([]float64, 0, 5+len(tb.Extra))
		row = append(row, tb.X1/w, tb.Y1/h, tb.X2/w, tb.Y2/h)
		row = append(row, tb.Extra...)
		row = append(row, float64(tb.TrackID))
		out = append(out, row)
	}
	return out, nil
}
