package edge

import (
	"math"

	"github.com/sentinel-vision/sentinel/internal/tracking"
)

// Detector finds people in a frame. n is the frame counter.
type Detector interface {
	Detect(f Frame, n int) []tracking.Box
}

// MockDetector emits five 40x80 boxes sweeping across the frame.
type MockDetector struct{}

// Detect implements Detector.
func (MockDetector) Detect(f Frame, n int) []tracking.Box {
	span := f.Width - 60
	if span <= 0 {
		span = 1
	}
	boxes := make([]tracking.Box, 0, 5)
	for i := 0; i < 5; i++ {
		x := (n*5 + i*60) % span
		y := 120 + int(40*math.Sin(float64(n+i)/10))
		boxes = append(boxes, tracking.Box{
			X1: float64(x), Y1: float64(y),
			X2: float64(x + 40), Y2: float64(y + 80),
		})
	}
	return boxes
}
