package registration

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"mriregister/pkg/affine"
)

// identityCoords returns one padded-frame coordinate per voxel of a
// w x h x d grid, i.e. the identity transform already shifted by the
// one-voxel border.
func identityCoords(w, h, d int) []affine.Point {
	coords := make([]affine.Point, 0, w*h*d)
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				coords = append(coords, affine.Point{float64(x) + 1, float64(y) + 1, float64(z) + 1})
			}
		}
	}
	return coords
}

// rampClamped returns a w*h*d clamped volume with bin i%bins at flat
// index i.
func rampClamped(w, h, d, bins int) []int16 {
	data := make([]int16, w*h*d)
	for i := range data {
		data[i] = int16(i % bins)
	}
	return data
}

// TestHistogramMassIdentity verifies that with the identity transform over
// a fully-unmasked reference every source voxel lands on one exact-integer
// neighbour with weight 1, so the total mass equals the voxel count
func TestHistogramMassIdentity(t *testing.T) {
	const w, h, d, bins = 4, 4, 4, 8
	src := rampClamped(w, h, d, bins)
	ref := padClamped(rampClamped(w, h, d, bins), w, h, d)
	coords := identityCoords(w, h, d)

	hist := NewJointHistogram(bins, bins)
	accumulate(hist, src, ref, coords, InterpPartialVolume, nil, 1)

	if total := hist.Total(); math.Abs(total-float64(w*h*d)) > 1e-9 {
		t.Errorf("Expected total mass %d, got %g", w*h*d, total)
	}
	// Identical volumes under identity concentrate all mass on the
	// diagonal
	for i := 0; i < bins; i++ {
		for j := 0; j < bins; j++ {
			if i != j && hist.At(i, j) != 0 {
				t.Errorf("Off-diagonal mass at (%d,%d): %g", i, j, hist.At(i, j))
			}
		}
	}
}

// TestHistogramSentinelSource verifies that sentinel source voxels
// contribute nothing
func TestHistogramSentinelSource(t *testing.T) {
	const w, h, d, bins = 4, 4, 4, 8
	src := rampClamped(w, h, d, bins)
	masked := 0
	for i := range src {
		if i%2 == 0 {
			src[i] = -1
			masked++
		}
	}
	ref := padClamped(rampClamped(w, h, d, bins), w, h, d)

	hist := NewJointHistogram(bins, bins)
	accumulate(hist, src, ref, identityCoords(w, h, d), InterpPartialVolume, nil, 1)

	want := float64(w*h*d - masked)
	if total := hist.Total(); math.Abs(total-want) > 1e-9 {
		t.Errorf("Expected total mass %g, got %g", want, total)
	}
}

// TestHistogramMaskedNeighbourWeightLoss verifies that weight falling on
// masked reference neighbours is dropped, not redistributed: fractional
// coordinates near a masked region accumulate less than unit mass
func TestHistogramMaskedNeighbourWeightLoss(t *testing.T) {
	const w, h, d, bins = 4, 4, 4, 8
	refData := rampClamped(w, h, d, bins)
	for i := range refData {
		refData[i] = -1 // fully masked reference
	}
	refData[0] = 2 // except one voxel
	ref := padClamped(refData, w, h, d)

	src := []int16{3}
	// Halfway between reference voxels (0,0,0) and (1,0,0) in the padded
	// frame: half the mass lands on the masked neighbour and vanishes
	coords := []affine.Point{{1.5, 1, 1}}

	hist := NewJointHistogram(bins, bins)
	accumulate(hist, src, ref, coords, InterpPartialVolume, nil, 1)

	if total := hist.Total(); math.Abs(total-0.5) > 1e-9 {
		t.Errorf("Expected total mass 0.5, got %g", total)
	}
	if got := hist.At(3, 2); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Expected mass 0.5 at (3,2), got %g", got)
	}
}

// TestHistogramFractionalWeights verifies the trilinear weight split for a
// coordinate with one fractional axis
func TestHistogramFractionalWeights(t *testing.T) {
	const w, h, d, bins = 4, 1, 1, 8
	refData := []int16{0, 1, 2, 3}
	ref := padClamped(refData, w, h, d)

	src := []int16{5}
	coords := []affine.Point{{1.25, 1, 1}} // between ref bins 0 and 1

	hist := NewJointHistogram(bins, bins)
	accumulate(hist, src, ref, coords, InterpTrilinear, nil, 1)

	if got := hist.At(5, 0); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("Expected weight 0.75 at (5,0), got %g", got)
	}
	if got := hist.At(5, 1); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("Expected weight 0.25 at (5,1), got %g", got)
	}
}

// TestHistogramOutOfBounds verifies that coordinates thrown outside the
// padded volume contribute nothing rather than reading out of bounds
func TestHistogramOutOfBounds(t *testing.T) {
	const w, h, d, bins = 2, 2, 2, 4
	ref := padClamped(rampClamped(w, h, d, bins), w, h, d)
	src := []int16{1, 1, 1}
	coords := []affine.Point{
		{-7, 1, 1},
		{1, 1, 250},
		{1, -0.5, 1},
	}

	hist := NewJointHistogram(bins, bins)
	accumulate(hist, src, ref, coords, InterpPartialVolume, nil, 1)

	if total := hist.Total(); total != 0 {
		t.Errorf("Expected no accumulated mass, got %g", total)
	}
}

// TestHistogramParallelMatchesSerial verifies that parallel accumulation
// with per-worker partials merged in order reproduces the serial result
// bit for bit
func TestHistogramParallelMatchesSerial(t *testing.T) {
	const w, h, d, bins = 9, 7, 5, 16
	src := rampClamped(w, h, d, bins)
	ref := padClamped(rampClamped(w, h, d, bins), w, h, d)

	// Fractional coordinates exercise all 8 weights
	coords := identityCoords(w, h, d)
	for i := range coords {
		coords[i][0] += 0.3
		coords[i][1] += 0.6
		coords[i][2] += 0.1
	}

	serial := NewJointHistogram(bins, bins)
	accumulate(serial, src, ref, coords, InterpPartialVolume, nil, 1)

	for _, workers := range []int{2, 3, 8} {
		parallel := NewJointHistogram(bins, bins)
		accumulate(parallel, src, ref, coords, InterpPartialVolume, nil, workers)
		for i := range serial.Counts {
			if serial.Counts[i] != parallel.Counts[i] {
				t.Fatalf("Workers=%d: accumulator %d differs: serial %g, parallel %g",
					workers, i, serial.Counts[i], parallel.Counts[i])
			}
		}
	}
}

// TestHistogramRandomMode verifies that random interpolation conserves at
// most unit mass per voxel and at least some mass on an unmasked volume
func TestHistogramRandomMode(t *testing.T) {
	const w, h, d, bins = 6, 6, 6, 8
	src := rampClamped(w, h, d, bins)
	ref := padClamped(rampClamped(w, h, d, bins), w, h, d)
	coords := identityCoords(w, h, d)
	for i := range coords {
		coords[i][0] += 0.5
	}

	rng := rand.New(rand.NewSource(1))
	hist := NewJointHistogram(bins, bins)
	accumulate(hist, src, ref, coords, InterpRandom, rng, 4)

	total := hist.Total()
	if total <= 0 {
		t.Error("Expected some accumulated mass under random interpolation")
	}
	if total > float64(w*h*d) {
		t.Errorf("Total mass %g exceeds the voxel count %d", total, w*h*d)
	}
	// Every contribution is a whole unit
	if total != math.Trunc(total) {
		t.Errorf("Random mode should accumulate unit masses, got total %g", total)
	}
}

// TestHistogramMarginals verifies the row/column reductions
func TestHistogramMarginals(t *testing.T) {
	hist := NewJointHistogram(2, 3)
	hist.Counts = []float64{
		1, 2, 3,
		4, 5, 6,
	}
	from := hist.FromMarginal()
	to := hist.ToMarginal()

	if from[0] != 6 || from[1] != 15 {
		t.Errorf("Expected from-marginal [6 15], got %v", from)
	}
	if to[0] != 5 || to[1] != 7 || to[2] != 9 {
		t.Errorf("Expected to-marginal [5 7 9], got %v", to)
	}
	if hist.Total() != 21 {
		t.Errorf("Expected total 21, got %g", hist.Total())
	}
}
