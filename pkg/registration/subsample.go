package registration

import (
	"fmt"

	"mriregister/pkg/affine"
)

// SubsampleOptions selects the moving-image sub-volume used for histogram
// accumulation. The zero value of every field selects a default.
type SubsampleOptions struct {
	// Spacing gives explicit per-axis subsampling strides. When any
	// component is set the spacing is used as-is and VoxelBudget is
	// ignored; all components must then be positive.
	Spacing [3]int

	// Corner is the bounding-box origin in voxel coordinates.
	Corner [3]int

	// Size is the bounding-box extent in voxels before striding
	// (default: the full image, clipped to its bounds).
	Size [3]int

	// VoxelBudget is the target non-sentinel voxel count for auto-tuned
	// spacing (default: the session's configured budget).
	VoxelBudget int
}

// Subsample replaces the session's cached sub-volume, its derived affine
// and the voxel-coordinate cache. Without an explicit spacing the stride is
// tuned greedily until the non-sentinel voxel count fits the budget. The
// coordinate cache is recomputed on every call: it is the sole source of
// evaluation-time coordinates and must stay index-aligned with the
// sub-volume data.
func (r *Registration) Subsample(opts *SubsampleOptions) error {
	if opts == nil {
		opts = &SubsampleOptions{}
	}

	corner := opts.Corner
	for i := 0; i < 3; i++ {
		if corner[i] < 0 || corner[i] >= r.fromDims[i] {
			return fmt.Errorf("%w: corner %v outside image dimensions %v", ErrInvalidArgument, corner, r.fromDims)
		}
	}

	size := opts.Size
	for i := 0; i < 3; i++ {
		if size[i] <= 0 || corner[i]+size[i] > r.fromDims[i] {
			size[i] = r.fromDims[i] - corner[i]
		}
	}

	spacing := opts.Spacing
	explicit := spacing != [3]int{}
	if explicit {
		for i := 0; i < 3; i++ {
			if spacing[i] < 1 {
				return fmt.Errorf("%w: spacing %v must be positive on every axis", ErrInvalidArgument, spacing)
			}
		}
	} else {
		budget := opts.VoxelBudget
		if budget <= 0 {
			budget = r.voxelBudget
		}
		spacing = idealSpacing(r.fromData, r.fromDims, corner, size, budget)
	}

	r.subData, r.subDims = extractStrided(r.fromData, r.fromDims, corner, size, spacing)
	r.subPoints = countNonSentinel(r.subData)
	r.subAffine = affine.Subgrid(r.fromAffine, corner, spacing)

	// Rebuild the coordinate cache in the sub-volume's flattened order.
	n := r.subDims[0] * r.subDims[1] * r.subDims[2]
	if cap(r.voxCoords) < n {
		r.voxCoords = make([]affine.Point, n)
	}
	r.voxCoords = r.voxCoords[:n]
	i := 0
	for z := 0; z < r.subDims[2]; z++ {
		for y := 0; y < r.subDims[1]; y++ {
			for x := 0; x < r.subDims[0]; x++ {
				r.voxCoords[i] = affine.Point{float64(x), float64(y), float64(z)}
				i++
			}
		}
	}
	return nil
}

// idealSpacing tunes the per-axis strides so the strided view's
// non-sentinel voxel count fits the target. Each round increments the
// stride of the axis whose current strided extent is largest, lowest axis
// index winning ties, then recounts. Terminates because every increment on
// an axis with extent above one strictly shrinks the view.
func idealSpacing(data []int16, dims [3]int, corner, size [3]int, target int) [3]int {
	if target < 1 {
		target = 1
	}
	spacing := [3]int{1, 1, 1}
	view, _ := extractStrided(data, dims, corner, size, spacing)
	npoints := countNonSentinel(view)

	for npoints > target {
		d0 := size[0] / spacing[0]
		d1 := size[1] / spacing[1]
		d2 := size[2] / spacing[2]
		switch {
		case d0 >= d1 && d0 >= d2:
			spacing[0]++
		case d1 > d0 && d1 >= d2:
			spacing[1]++
		default:
			spacing[2]++
		}
		view, _ = extractStrided(data, dims, corner, size, spacing)
		npoints = countNonSentinel(view)
	}
	return spacing
}

// extractStrided copies the strided bounding-box view out of a flat volume,
// returning the flattened view and its dimensions.
func extractStrided(data []int16, dims [3]int, corner, size, spacing [3]int) ([]int16, [3]int) {
	var sub [3]int
	for i := 0; i < 3; i++ {
		sub[i] = (size[i] + spacing[i] - 1) / spacing[i]
	}
	out := make([]int16, sub[0]*sub[1]*sub[2])
	i := 0
	for z := 0; z < sub[2]; z++ {
		zz := corner[2] + z*spacing[2]
		for y := 0; y < sub[1]; y++ {
			yy := corner[1] + y*spacing[1]
			rowBase := zz*dims[0]*dims[1] + yy*dims[0] + corner[0]
			for x := 0; x < sub[0]; x++ {
				out[i] = data[rowBase+x*spacing[0]]
				i++
			}
		}
	}
	return out, sub
}

// countNonSentinel counts clamped voxels that participate in accumulation.
func countNonSentinel(data []int16) int {
	n := 0
	for _, v := range data {
		if v >= 0 {
			n++
		}
	}
	return n
}
