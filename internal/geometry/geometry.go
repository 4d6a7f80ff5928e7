// Package geometry provides the planar helpers used for zones and camera
// calibration.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Point is an (x, y) pair.
type Point [2]float64

// ErrDegenerate is returned when a point set cannot determine a homography.
var ErrDegenerate = errors.New("degenerate point correspondence")

// PointInPolygon reports whether p lies inside poly using ray casting.
// Polygons with fewer than three vertices contain nothing.
func PointInPolygon(p Point, poly []Point) bool {
	if len(poly) < 3 {
		return false
	}
	x, y := p[0], p[1]
	inside := false
	j := len(poly) - 1
	for i := range poly {
		xi, yi := poly[i][0], poly[i][1]
		xj, yj := poly[j][0], poly[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// CountInside returns how many of pts fall inside poly.
func CountInside(pts []Point, poly []Point) int {
	n := 0
	for _, p := range pts {
		if PointInPolygon(p, poly) {
			n++
		}
	}
	return n
}

// SolveHomography returns the 3x3 matrix H with dst ~ H*src, solved by the
// normalized direct linear transform in the least-squares sense. At least
// four correspondences are required. H is scaled so that H[2][2] == 1.
func SolveHomography(src, dst []Point) ([3][3]float64, error) {
	var h [3][3]float64
	if len(src) != len(dst) {
		return h, fmt.Errorf("src has %d points, dst has %d", len(src), len(dst))
	}
	if len(src) < 4 {
		return h, fmt.Errorf("need at least 4 point pairs, got %d", len(src))
	}

	ns, ts, err := normalize(src)
	if err != nil {
		return h, err
	}
	nd, td, err := normalize(dst)
	if err != nil {
		return h, err
	}

	a := mat.NewDense(2*len(ns), 9, nil)
	for i := range ns {
		x, y := ns[i][0], ns[i][1]
		u, v := nd[i][0], nd[i][1]
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return h, fmt.Errorf("svd factorization failed")
	}
	values := svd.Values(nil)
	// A rank below 8 leaves more than one null vector.
	if len(values) < 8 || values[7] < 1e-9*values[0] {
		return h, ErrDegenerate
	}

	var v mat.Dense
	svd.VTo(&v)
	hn := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			hn.Set(r, c, v.At(3*r+c, 8))
		}
	}

	// H = Td^-1 * Hn * Ts
	var tdInv, tmp, full mat.Dense
	if err := tdInv.Inverse(td); err != nil {
		return h, ErrDegenerate
	}
	tmp.Mul(hn, ts)
	full.Mul(&tdInv, &tmp)

	scale := full.At(2, 2)
	if math.Abs(scale) < 1e-12 {
		return h, ErrDegenerate
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[r][c] = full.At(r, c) / scale
		}
	}
	return h, nil
}

// normalize translates pts to their centroid and scales them to a mean
// distance of sqrt(2), returning the moved points and the transform.
func normalize(pts []Point) ([]Point, *mat.Dense, error) {
	var cx, cy float64
	for _, p := range pts {
		cx += p[0]
		cy += p[1]
	}
	n := float64(len(pts))
	cx /= n
	cy /= n

	var dist float64
	for _, p := range pts {
		dist += math.Hypot(p[0]-cx, p[1]-cy)
	}
	dist /= n
	if dist < 1e-12 {
		return nil, nil, ErrDegenerate
	}
	s := math.Sqrt2 / dist

	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = Point{s * (p[0] - cx), s * (p[1] - cy)}
	}
	t := mat.NewDense(3, 3, []float64{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	})
	return out, t, nil
}

// Project applies h to p. The second return is false when p maps to the
// line at infinity.
func Project(h [3][3]float64, p Point) (Point, bool) {
	x, y := p[0], p[1]
	w := h[2][0]*x + h[2][1]*y + h[2][2]
	if math.Abs(w) < 1e-12 {
		return Point{}, false
	}
	return Point{
		(h[0][0]*x + h[0][1]*y + h[0][2]) / w,
		(h[1][0]*x + h[1][1]*y + h[1][2]) / w,
	}, true
}
