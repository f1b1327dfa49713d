package models

import (
	"fmt"

	"mriregister/pkg/affine"
)

// Volume represents a 3D scalar-intensity image
type Volume struct {
	// Data is the 3D volume data as a 1D array in row-major order,
	// indexed z*Width*Height + y*Width + x
	Data []float64

	// Width is the width of the volume in voxels (x axis)
	Width int

	// Height is the height of the volume in voxels (y axis)
	Height int

	// Depth is the depth of the volume in voxels (z axis)
	Depth int

	// Affine maps integer voxel indices to world coordinates
	Affine *affine.Matrix
}

// NewVolume allocates a zero-filled volume with the given dimensions and
// voxel-to-world map. A nil affine defaults to the identity.
func NewVolume(width, height, depth int, aff *affine.Matrix) *Volume {
	if aff == nil {
		aff = affine.Identity()
	}
	return &Volume{
		Data:   make([]float64, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
		Affine: aff,
	}
}

// NumVoxels returns the total number of voxels in the volume.
func (v *Volume) NumVoxels() int {
	return v.Width * v.Height * v.Depth
}

// Index returns the flat index of voxel (x, y, z).
func (v *Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the intensity at voxel (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set assigns the intensity at voxel (x, y, z).
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}

// Validate checks that the data length matches the declared dimensions.
func (v *Volume) Validate() error {
	if v.Width <= 0 || v.Height <= 0 || v.Depth <= 0 {
		return fmt.Errorf("volume has non-positive dimensions %dx%dx%d", v.Width, v.Height, v.Depth)
	}
	if len(v.Data) != v.NumVoxels() {
		return fmt.Errorf("volume data length %d does not match dimensions %dx%dx%d",
			len(v.Data), v.Width, v.Height, v.Depth)
	}
	return nil
}

// Mask marks the subset of a volume's voxels that participate in
// registration. Same indexing convention as Volume.Data.
type Mask struct {
	// Inside is true for voxels that participate
	Inside []bool

	// Width, Height, Depth are the mask dimensions and must match the
	// volume the mask is applied to
	Width, Height, Depth int
}

// NewMask allocates an all-false mask with the given dimensions.
func NewMask(width, height, depth int) *Mask {
	return &Mask{
		Inside: make([]bool, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
	}
}

// Matches reports whether the mask dimensions match the volume.
func (m *Mask) Matches(v *Volume) bool {
	return m.Width == v.Width && m.Height == v.Height && m.Depth == v.Depth
}
