package tracking

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Config holds tracker tuning parameters.
type Config struct {
	// MaxLost is the number of consecutive missed updates a track survives.
	// A track is deleted once its lost count exceeds this value.
	MaxLost int
	// DistThresh is the largest centre distance, in pixels, that can be
	// committed as a match.
	DistThresh float64
}

// DefaultConfig returns the tracker defaults.
func DefaultConfig() Config {
	return Config{
		MaxLost:    10,
		DistThresh: 80.0,
	}
}

// Tracker is a greedy centroid tracker for a single camera.
type Tracker struct {
	Config Config

	// tracks are kept in creation order, which is also id order.
	tracks []*Track
	nextID int64
}

// NewTracker creates a tracker with the given configuration.
func NewTracker(config Config) *Tracker {
	return &Tracker{
		Config: config,
		nextID: 1,
	}
}

// match is one committed (track row, detection column) pair.
type match struct {
	track int
	det   int
}

// Update associates one frame of detections with the current tracks and
// returns each associated box annotated with its track id.
//
// Step 1: compute detection centres.
// Step 2: greedily match tracks to detections by centre distance.
// Step 3: spawn tracks for unmatched detections.
// Step 4: age unmatched tracks and drop those past MaxLost.
// Step 5: report the box carried by each track this cycle, in track order.
func (t *Tracker) Update(detections []Box) []TrackedBox {
	centers := make([][2]float64, len(detections))
	for j, d := range detections {
		cx, cy := d.Center()
		centers[j] = [2]float64{cx, cy}
	}

	associated := make(map[int64]Box, len(detections))
	matchedTrack := make(map[int64]bool, len(t.tracks))
	matchedDet := make([]bool, len(detections))

	for _, m := range t.greedyMatch(centers) {
		tr := t.tracks[m.track]
		tr.CenterX, tr.CenterY = centers[m.det][0], centers[m.det][1]
		tr.LostCount = 0
		matchedTrack[tr.ID] = true
		matchedDet[m.det] = true
		associated[tr.ID] = detections[m.det]
	}

	existing := len(t.tracks)
	for j, d := range detections {
		if matchedDet[j] {
			continue
		}
		tr := t.spawn(centers[j])
		associated[tr.ID] = d
	}

	kept := t.tracks[:0]
	for i, tr := range t.tracks {
		if i < existing && !matchedTrack[tr.ID] {
			tr.LostCount++
		}
		if tr.LostCount > t.Config.MaxLost {
			continue
		}
		kept = append(kept, tr)
	}
	for i := len(kept); i < len(t.tracks); i++ {
		t.tracks[i] = nil
	}
	t.tracks = kept

	out := make([]TrackedBox, 0, len(associated))
	for _, tr := range t.tracks {
		if b, ok := associated[tr.ID]; ok {
			out = append(out, TrackedBox{Box: b, TrackID: tr.ID})
		}
	}
	return out
}

// greedyMatch repeatedly commits the globally cheapest remaining
// track/detection pair until the cheapest pair is over the threshold. Ties
// resolve to the first entry in row-major order.
func (t *Tracker) greedyMatch(centers [][2]float64) []match {
	rows, cols := len(t.tracks), len(centers)
	if rows == 0 || cols == 0 {
		return nil
	}

	cost := mat.NewDense(rows, cols, nil)
	for i, tr := range t.tracks {
		p := []float64{tr.CenterX, tr.CenterY}
		for j := range centers {
			cost.Set(i, j, floats.Distance(p, centers[j][:], 2))
		}
	}

	raw := cost.RawMatrix()
	inf := math.Inf(1)
	matches := make([]match, 0, min(rows, cols))
	for range min(rows, cols) {
		k := floats.MinIdx(raw.Data)
		best := raw.Data[k]
		if math.IsInf(best, 1) || best > t.Config.DistThresh {
			break
		}
		i, j := k/raw.Stride, k%raw.Stride
		matches = append(matches, match{track: i, det: j})
		for c := 0; c < cols; c++ {
			cost.Set(i, c, inf)
		}
		for r := 0; r < rows; r++ {
			cost.Set(r, j, inf)
		}
	}
	return matches
}

func (t *Tracker) spawn(center [2]float64) *Track {
	tr := &Track{ID: t.nextID, CenterX: center[0], CenterY: center[1]}
	t.nextID++
	t.tracks = append(t.tracks, tr)
	return tr
}

// Tracks returns a snapshot of the live tracks in creation order.
func (t *Tracker) Tracks() []Track {
	out := make([]Track, len(t.tracks))
	for i, tr := range t.tracks {
		out[i] = *tr
	}
	return out
}

// TrackCount returns the number of live tracks.
func (t *Tracker) TrackCount() int {
	return len(t.tracks)
}
