// Package affine provides 4x4 homogeneous coordinate maps between voxel
// grids and world space. Maps are immutable once constructed; composition
// and inversion return new values.
package affine

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Point is a coordinate in voxel or world space.
type Point [3]float64

// Matrix is a 4x4 homogeneous affine map. The zero value is not usable;
// construct via Identity, Scaling, Translation or FromRows.
type Matrix struct {
	m *mat.Dense
}

// Identity returns the identity map.
func Identity() *Matrix {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return &Matrix{m: m}
}

// FromRows builds a map from 16 row-major coefficients. The last row is
// taken as given; callers are expected to pass [0 0 0 1].
func FromRows(vals []float64) (*Matrix, error) {
	if len(vals) != 16 {
		return nil, fmt.Errorf("affine: expected 16 coefficients, got %d", len(vals))
	}
	data := make([]float64, 16)
	copy(data, vals)
	return &Matrix{m: mat.NewDense(4, 4, data)}, nil
}

// Scaling returns a map that scales each axis, e.g. a voxel-to-world map
// for an image with voxel size (sx, sy, sz) millimetres.
func Scaling(sx, sy, sz float64) *Matrix {
	a := Identity()
	a.m.Set(0, 0, sx)
	a.m.Set(1, 1, sy)
	a.m.Set(2, 2, sz)
	return a
}

// Translation returns a pure translation map.
func Translation(tx, ty, tz float64) *Matrix {
	a := Identity()
	a.m.Set(0, 3, tx)
	a.m.Set(1, 3, ty)
	a.m.Set(2, 3, tz)
	return a
}

// Apply maps a single point.
func (a *Matrix) Apply(p Point) Point {
	var out Point
	for i := 0; i < 3; i++ {
		out[i] = a.m.At(i, 0)*p[0] + a.m.At(i, 1)*p[1] + a.m.At(i, 2)*p[2] + a.m.At(i, 3)
	}
	return out
}

// ApplyAll maps every point in pts into dst and returns dst. If dst is nil
// or too short a new slice is allocated. dst and pts may alias.
func (a *Matrix) ApplyAll(dst, pts []Point) []Point {
	if len(dst) < len(pts) {
		dst = make([]Point, len(pts))
	}
	// Pull the coefficients out of the Dense once; this loop runs once per
	// cached voxel per evaluation.
	var c [3][4]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			c[i][j] = a.m.At(i, j)
		}
	}
	for k, p := range pts {
		dst[k] = Point{
			c[0][0]*p[0] + c[0][1]*p[1] + c[0][2]*p[2] + c[0][3],
			c[1][0]*p[0] + c[1][1]*p[1] + c[1][2]*p[2] + c[1][3],
			c[2][0]*p[0] + c[2][1]*p[1] + c[2][2]*p[2] + c[2][3],
		}
	}
	return dst[:len(pts)]
}

// Compose returns the map equivalent to applying b first, then a.
func (a *Matrix) Compose(b *Matrix) *Matrix {
	out := mat.NewDense(4, 4, nil)
	out.Mul(a.m, b.m)
	return &Matrix{m: out}
}

// Inverse returns the inverse map, or an error if the map is singular.
func (a *Matrix) Inverse() (*Matrix, error) {
	out := mat.NewDense(4, 4, nil)
	if err := out.Inverse(a.m); err != nil {
		return nil, fmt.Errorf("affine: singular map: %v", err)
	}
	return &Matrix{m: out}, nil
}

// Subgrid composes a voxel-to-world map with a strided bounding-box
// selection, yielding the voxel-to-world map of the sub-grid whose voxel
// (i,j,k) is the full grid's voxel (corner + spacing*ijk).
func Subgrid(a *Matrix, corner, spacing [3]int) *Matrix {
	sel := Identity()
	for i := 0; i < 3; i++ {
		sel.m.Set(i, i, float64(spacing[i]))
		sel.m.Set(i, 3, float64(corner[i]))
	}
	return a.Compose(sel)
}

// At returns the coefficient at row i, column j.
func (a *Matrix) At(i, j int) float64 {
	return a.m.At(i, j)
}

// String renders the map row by row for diagnostics.
func (a *Matrix) String() string {
	return fmt.Sprintf("%.5v", mat.Formatted(a.m))
}
