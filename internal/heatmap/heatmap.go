// Package heatmap accumulates per-camera occupancy of normalized box centers
// and renders it as a PNG.
package heatmap

import (
	"fmt"
	"io"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Grid dimensions in cells.
const (
	Cols = 64
	Rows = 36
)

// Map holds one grid per camera. It is safe for concurrent use.
type Map struct {
	mu    sync.Mutex
	grids map[string]*mat.Dense
}

// New returns an empty Map.
func New() *Map {
	return &Map{grids: make(map[string]*mat.Dense)}
}

// cell maps a normalized coordinate to a grid index, clamping to the edge.
func cell(v float64, n int) int {
	i := int(v * float64(n))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Add counts the center of each normalized [x1, y1, x2, y2, ...] box.
// Entries with fewer than four values are ignored.
func (m *Map) Add(cameraID string, persons [][]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.grids[cameraID]
	if g == nil {
		g = mat.NewDense(Rows, Cols, nil)
		m.grids[cameraID] = g
	}
	for _, p := range persons {
		if len(p) < 4 {
			continue
		}
		cx := (p[0] + p[2]) / 2
		cy := (p[1] + p[3]) / 2
		r, c := cell(cy, Rows), cell(cx, Cols)
		g.Set(r, c, g.At(r, c)+1)
	}
}

// Count returns the count in one cell, or 0 for an unknown camera.
func (m *Map) Count(cameraID string, row, col int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.grids[cameraID]
	if g == nil {
		return 0
	}
	return g.At(row, col)
}

// Total returns the number of centers counted for a camera.
func (m *Map) Total(cameraID string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.grids[cameraID]
	if g == nil {
		return 0
	}
	return mat.Sum(g)
}

// snapshot copies the grid so rendering runs without the lock.
func (m *Map) snapshot(cameraID string) *mat.Dense {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := mat.NewDense(Rows, Cols, nil)
	if g := m.grids[cameraID]; g != nil {
		out.Copy(g)
	}
	return out
}

// grid adapts a count matrix to plotter.GridXYZ. Row 0 is the top of the
// image, so Y is flipped.
type grid struct {
	m *mat.Dense
}

func (g grid) Dims() (c, r int)   { return Cols, Rows }
func (g grid) Z(c, r int) float64 { return g.m.At(Rows-1-r, c) }
func (g grid) X(c int) float64    { return float64(c) }
func (g grid) Y(r int) float64    { return float64(r) }

// WritePNG renders the camera's grid to w. Unknown cameras render an empty
// map.
func (m *Map) WritePNG(cameraID string, w io.Writer) error {
	g := grid{m.snapshot(cameraID)}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Occupancy: %s", cameraID)
	p.HideAxes()

	hm := plotter.NewHeatMap(g, palette.Heat(12, 1))
	if hm.Min == hm.Max {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)

	wt, err := p.WriterTo(8*vg.Inch, 4.5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}
