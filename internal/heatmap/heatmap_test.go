package heatmap

import (
	"bytes"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_BoxCenters(t *testing.T) {
	m := New()
	m.Add("cam_1", [][]float64{
		{0, 0, 0.02, 0.02, 1},  // center (0.01, 0.01) -> cell (0, 0)
		{0.5, 0.5, 0.52, 0.52}, // center (0.51, 0.51) -> row 18, col 32
		{0.98, 0.98, 1.0, 1.0}, // bottom right
		{0.1, 0.2},             // ignored
	})

	assert.Equal(t, 1.0, m.Count("cam_1", 0, 0))
	assert.Equal(t, 1.0, m.Count("cam_1", 18, 32))
	assert.Equal(t, 1.0, m.Count("cam_1", Rows-1, Cols-1))
	assert.Equal(t, 3.0, m.Total("cam_1"))
	assert.Zero(t, m.Total("cam_2"))
}

func TestAdd_ClampsOutOfRange(t *testing.T) {
	m := New()
	m.Add("cam_1", [][]float64{{1.2, 1.2, 1.4, 1.4}, {-0.5, -0.5, -0.1, -0.1}})
	assert.Equal(t, 1.0, m.Count("cam_1", Rows-1, Cols-1))
	assert.Equal(t, 1.0, m.Count("cam_1", 0, 0))
}

func TestAdd_Concurrent(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Add("cam_1", [][]float64{{0.1, 0.1, 0.2, 0.2}})
		}()
	}
	wg.Wait()
	assert.Equal(t, 20.0, m.Total("cam_1"))
}

func TestGrid_FlipsRows(t *testing.T) {
	m := New()
	m.Add("cam_1", [][]float64{{0, 0, 0.01, 0.01}})
	g := grid{m.snapshot("cam_1")}
	c, r := g.Dims()
	assert.Equal(t, Cols, c)
	assert.Equal(t, Rows, r)
	assert.Equal(t, 1.0, g.Z(0, Rows-1))
	assert.Zero(t, g.Z(0, 0))
}

func TestWritePNG(t *testing.T) {
	m := New()
	m.Add("cam_1", [][]float64{{0.4, 0.4, 0.6, 0.6}})

	var buf bytes.Buffer
	require.NoError(t, m.WritePNG("cam_1", &buf))
	cfg, err := png.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Positive(t, cfg.Width)
	assert.Positive(t, cfg.Height)
}

func TestWritePNG_EmptyCamera(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New().WritePNG("nobody", &buf))
	_, err := png.DecodeConfig(&buf)
	require.NoError(t, err)
}
