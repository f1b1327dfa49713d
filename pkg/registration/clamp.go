package registration

import (
	"fmt"
	"math"
)

// Clamped intensities are stored as int16, so a histogram axis can never
// need more bins than the largest representable index.
const maxBins = math.MaxInt16

// Clamp maps raw intensities to integer bin indices in [0, adjustedBins-1],
// assigning the sentinel -1 to voxels excluded by the mask. The mask, when
// non-nil, must have one entry per voxel; masked-out voxels are excluded
// from the min/max computation as well.
//
// If the selected values are all integral and their dynamic range d fits in
// bins-1, the values are shifted losslessly and the bin count shrinks to
// d+1. Otherwise the range is compressed linearly onto [0, bins-1]; a
// constant image maps every selected voxel to bin 0.
//
// Callers must use the returned bin count, not the requested one.
func Clamp(data []float64, bins int, mask []bool) ([]int16, int, error) {
	if bins < 1 || bins > maxBins {
		return nil, 0, fmt.Errorf("%w: bin count %d outside [1, %d]", ErrInvalidArgument, bins, maxBins)
	}
	if mask != nil && len(mask) != len(data) {
		return nil, 0, fmt.Errorf("%w: mask length %d does not match data length %d",
			ErrInvalidArgument, len(mask), len(data))
	}

	clamped := make([]int16, len(data))
	for i := range clamped {
		clamped[i] = -1
	}

	// Min/max over the selected voxels only, noting whether every selected
	// value is integral (which allows the lossless shift below).
	xmin := math.Inf(1)
	xmax := math.Inf(-1)
	integral := true
	selected := 0
	for i, v := range data {
		if mask != nil && !mask[i] {
			continue
		}
		selected++
		if v < xmin {
			xmin = v
		}
		if v > xmax {
			xmax = v
		}
		if v != math.Trunc(v) {
			integral = false
		}
	}
	if selected == 0 {
		// Nothing to bin; every voxel stays at the sentinel.
		return clamped, 1, nil
	}

	d := xmax - xmin
	dmax := float64(bins - 1)

	if integral && d <= dmax {
		// Lossless shift; shrink the bin count to the actual dynamic range.
		for i, v := range data {
			if mask != nil && !mask[i] {
				continue
			}
			clamped[i] = int16(v - xmin)
		}
		return clamped, int(d) + 1, nil
	}

	// Linear compression onto [0, bins-1]. A zero dynamic range would
	// divide by zero; the fallback scale sends every voxel to bin 0.
	a := 0.0
	if d > 0 {
		a = dmax / d
	}
	for i, v := range data {
		if mask != nil && !mask[i] {
			continue
		}
		clamped[i] = int16(math.Round(a * (v - xmin)))
	}
	return clamped, bins, nil
}

// clampedVolume is a clamped image with its own dimensions. The reference
// image is stored padded by one sentinel voxel on every face so that
// interpolation neighbour lookups never read out of bounds.
type clampedVolume struct {
	data                 []int16
	width, height, depth int
}

// padClamped wraps clamped data of the given dimensions in a one-voxel
// border of -1.
func padClamped(data []int16, width, height, depth int) *clampedVolume {
	pw, ph, pd := width+2, height+2, depth+2
	padded := make([]int16, pw*ph*pd)
	for i := range padded {
		padded[i] = -1
	}
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			src := z*width*height + y*width
			dst := (z+1)*pw*ph + (y+1)*pw + 1
			copy(padded[dst:dst+width], data[src:src+width])
		}
	}
	return &clampedVolume{data: padded, width: pw, height: ph, depth: pd}
}
