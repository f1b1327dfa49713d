package registration

import (
	"fmt"

	"mriregister/pkg/affine"
)

// Transform is the free parametric spatial transform the optimizer drives.
// Implementations own a flat parameter vector and map batches of world
// coordinates; pkg/transform provides translation and rigid-body
// implementations but any caller-supplied transform works.
type Transform interface {
	// Param returns a copy of the current parameter vector.
	Param() []float64

	// SetParam replaces the parameter vector.
	SetParam(p []float64) error

	// Apply maps every point in pts into dst and returns dst. dst and
	// pts may alias; a nil or short dst must be reallocated.
	Apply(dst, pts []affine.Point) []affine.Point
}

// chainTransform sandwiches a free transform between two fixed coordinate
// conversions so that apply maps moving-image voxel coordinates directly to
// reference-image voxel coordinates: post(T(pre(v))). Only the free
// transform's parameters are exposed; pre and post never change. Chains are
// ephemeral, built per evaluation or optimization call.
type chainTransform struct {
	free Transform
	pre  *affine.Matrix // moving voxel -> moving world
	post *affine.Matrix // reference world -> reference voxel
}

func newChain(free Transform, pre, post *affine.Matrix) *chainTransform {
	return &chainTransform{free: free, pre: pre, post: post}
}

// Param returns the free transform's parameter vector.
func (c *chainTransform) Param() []float64 {
	return c.free.Param()
}

// SetParam updates the free transform's parameter vector.
func (c *chainTransform) SetParam(p []float64) error {
	return c.free.SetParam(p)
}

// apply maps moving-image voxel coordinates to reference-image voxel
// coordinates through dst, which is reallocated when too short.
func (c *chainTransform) apply(dst, pts []affine.Point) []affine.Point {
	dst = c.pre.ApplyAll(dst, pts)
	dst = c.free.Apply(dst, dst)
	return c.post.ApplyAll(dst, dst)
}

// Optimizable renders the free transform's current state for diagnostics.
func (c *chainTransform) Optimizable() string {
	if s, ok := c.free.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("params: %.4f", c.Param())
}
