// Package transform provides parametric world-to-world spatial transforms
// for registration. A transform owns a flat parameter vector that an
// optimizer perturbs; Apply maps batches of world coordinates.
package transform

import (
	"fmt"
	"math"

	"mriregister/pkg/affine"
)

// Translation is a pure translation with parameters [tx, ty, tz].
type Translation struct {
	t [3]float64
}

// NewTranslation returns the identity translation.
func NewTranslation() *Translation {
	return &Translation{}
}

// Param returns a copy of the parameter vector [tx, ty, tz].
func (tr *Translation) Param() []float64 {
	return []float64{tr.t[0], tr.t[1], tr.t[2]}
}

// SetParam replaces the parameter vector.
func (tr *Translation) SetParam(p []float64) error {
	if len(p) != 3 {
		return fmt.Errorf("translation expects 3 parameters, got %d", len(p))
	}
	copy(tr.t[:], p)
	return nil
}

// Apply maps every point in pts into dst and returns dst. dst and pts may
// alias; a nil or short dst is reallocated.
func (tr *Translation) Apply(dst, pts []affine.Point) []affine.Point {
	if len(dst) < len(pts) {
		dst = make([]affine.Point, len(pts))
	}
	for i, p := range pts {
		dst[i] = affine.Point{p[0] + tr.t[0], p[1] + tr.t[1], p[2] + tr.t[2]}
	}
	return dst[:len(pts)]
}

func (tr *Translation) String() string {
	return fmt.Sprintf("translation: [%.4f %.4f %.4f]", tr.t[0], tr.t[1], tr.t[2])
}

// Rigid is a six-parameter rigid-body transform: a rotation about the world
// origin followed by a translation. Parameters are
// [tx, ty, tz, rx, ry, rz] with rotations in radians applied as
// R = Rz(rz) * Ry(ry) * Rx(rx).
type Rigid struct {
	t [3]float64
	r [3]float64
}

// NewRigid returns the identity rigid transform.
func NewRigid() *Rigid {
	return &Rigid{}
}

// Param returns a copy of the parameter vector [tx, ty, tz, rx, ry, rz].
func (rg *Rigid) Param() []float64 {
	return []float64{rg.t[0], rg.t[1], rg.t[2], rg.r[0], rg.r[1], rg.r[2]}
}

// SetParam replaces the parameter vector.
func (rg *Rigid) SetParam(p []float64) error {
	if len(p) != 6 {
		return fmt.Errorf("rigid transform expects 6 parameters, got %d", len(p))
	}
	copy(rg.t[:], p[:3])
	copy(rg.r[:], p[3:])
	return nil
}

// matrix builds the 3x3 rotation matrix from the Euler angles.
func (rg *Rigid) matrix() [3][3]float64 {
	sx, cx := math.Sincos(rg.r[0])
	sy, cy := math.Sincos(rg.r[1])
	sz, cz := math.Sincos(rg.r[2])
	return [3][3]float64{
		{cz * cy, cz*sy*sx - sz*cx, cz*sy*cx + sz*sx},
		{sz * cy, sz*sy*sx + cz*cx, sz*sy*cx - cz*sx},
		{-sy, cy * sx, cy * cx},
	}
}

// Apply maps every point in pts into dst and returns dst. dst and pts may
// alias; a nil or short dst is reallocated.
func (rg *Rigid) Apply(dst, pts []affine.Point) []affine.Point {
	if len(dst) < len(pts) {
		dst = make([]affine.Point, len(pts))
	}
	m := rg.matrix()
	for i, p := range pts {
		dst[i] = affine.Point{
			m[0][0]*p[0] + m[0][1]*p[1] + m[0][2]*p[2] + rg.t[0],
			m[1][0]*p[0] + m[1][1]*p[1] + m[1][2]*p[2] + rg.t[1],
			m[2][0]*p[0] + m[2][1]*p[1] + m[2][2]*p[2] + rg.t[2],
		}
	}
	return dst[:len(pts)]
}

func (rg *Rigid) String() string {
	return fmt.Sprintf("rigid: translation [%.4f %.4f %.4f] rotation [%.4f %.4f %.4f]",
		rg.t[0], rg.t[1], rg.t[2], rg.r[0], rg.r[1], rg.r[2])
}
