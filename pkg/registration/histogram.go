package registration

import (
	"math"
	"sync"

	"golang.org/x/exp/rand"

	"mriregister/pkg/affine"
)

// JointHistogram is a 2D table of weighted co-occurrence counts indexed by
// (moving-image bin, reference-image bin). It is a reused buffer owned by
// one registration session: it is reset in place at the start of every
// accumulation pass rather than reallocated.
type JointHistogram struct {
	// Counts holds the accumulators in row-major order, one row per
	// moving-image bin
	Counts []float64

	// FromBins and ToBins are the table dimensions
	FromBins, ToBins int
}

// NewJointHistogram allocates a zeroed histogram.
func NewJointHistogram(fromBins, toBins int) *JointHistogram {
	return &JointHistogram{
		Counts:   make([]float64, fromBins*toBins),
		FromBins: fromBins,
		ToBins:   toBins,
	}
}

// Reset zeroes every accumulator in place.
func (h *JointHistogram) Reset() {
	for i := range h.Counts {
		h.Counts[i] = 0
	}
}

// At returns the accumulated mass for (fromBin, toBin).
func (h *JointHistogram) At(fromBin, toBin int) float64 {
	return h.Counts[fromBin*h.ToBins+toBin]
}

// Total returns the total accumulated mass.
func (h *JointHistogram) Total() float64 {
	total := 0.0
	for _, c := range h.Counts {
		total += c
	}
	return total
}

// FromMarginal returns the row sums (mass per moving-image bin).
func (h *JointHistogram) FromMarginal() []float64 {
	marginal := make([]float64, h.FromBins)
	for i := 0; i < h.FromBins; i++ {
		row := h.Counts[i*h.ToBins : (i+1)*h.ToBins]
		for _, c := range row {
			marginal[i] += c
		}
	}
	return marginal
}

// ToMarginal returns the column sums (mass per reference-image bin).
func (h *JointHistogram) ToMarginal() []float64 {
	marginal := make([]float64, h.ToBins)
	for i := 0; i < h.FromBins; i++ {
		row := h.Counts[i*h.ToBins : (i+1)*h.ToBins]
		for j, c := range row {
			marginal[j] += c
		}
	}
	return marginal
}

// accumulate builds the joint histogram for one transform evaluation. src
// holds the clamped subsampled moving-image values and coords one target
// coordinate per source voxel, already expressed in the padded reference
// frame; the two slices are index-aligned. The histogram is reset first,
// then each non-sentinel source voxel distributes its unit mass over the 8
// reference voxels surrounding its target coordinate by trilinear weight
// (partial-volume and trilinear modes), or gives it whole to one neighbour
// drawn with probability equal to its weight (random mode).
//
// Work is split across workers goroutines, each filling a private partial
// histogram; the partials are summed into h in fixed worker order, so the
// deterministic modes produce bit-identical results regardless of
// scheduling.
func accumulate(h *JointHistogram, src []int16, ref *clampedVolume, coords []affine.Point, mode InterpMode, rng *rand.Rand, workers int) {
	h.Reset()
	if len(src) == 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(src) {
		workers = len(src)
	}

	if workers == 1 {
		accumulateRange(h.Counts, h.ToBins, src, ref, coords, mode, rng)
		return
	}

	// Random mode draws worker seeds up front from the session source so
	// the per-voxel draws stay off the shared rng.
	seeds := make([]uint64, workers)
	if mode == InterpRandom {
		for i := range seeds {
			seeds[i] = rng.Uint64()
		}
	}

	partials := make([][]float64, workers)
	chunk := (len(src) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(src) {
			end = len(src)
		}
		if start >= end {
			continue
		}
		partials[w] = make([]float64, len(h.Counts))

		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			var workerRNG *rand.Rand
			if mode == InterpRandom {
				workerRNG = rand.New(rand.NewSource(seeds[w]))
			}
			accumulateRange(partials[w], h.ToBins, src[start:end], ref, coords[start:end], mode, workerRNG)
		}(w, start, end)
	}
	wg.Wait()

	// Merge in worker order; addition is commutative so the result does
	// not depend on which worker finished first.
	for _, partial := range partials {
		if partial == nil {
			continue
		}
		for i, c := range partial {
			h.Counts[i] += c
		}
	}
}

// accumulateRange accumulates one contiguous run of source voxels into a
// (partial) histogram stored as counts with toBins columns.
func accumulateRange(counts []float64, toBins int, src []int16, ref *clampedVolume, coords []affine.Point, mode InterpMode, rng *rand.Rand) {
	nx, ny := ref.width, ref.height
	sliceStride := nx * ny

	for i, fromBin := range src {
		if fromBin < 0 {
			continue
		}
		p := coords[i]
		fx := math.Floor(p[0])
		fy := math.Floor(p[1])
		fz := math.Floor(p[2])
		ix, iy, iz := int(fx), int(fy), int(fz)

		// The whole 2x2x2 neighbour cell must lie inside the padded
		// volume; coordinates thrown further out contribute nothing,
		// exactly as if they had landed on sentinel voxels.
		if ix < 0 || iy < 0 || iz < 0 || ix+1 >= ref.width || iy+1 >= ref.height || iz+1 >= ref.depth {
			continue
		}

		dx := p[0] - fx
		dy := p[1] - fy
		dz := p[2] - fz
		wx := [2]float64{1 - dx, dx}
		wy := [2]float64{1 - dy, dy}
		wz := [2]float64{1 - dz, dz}

		base := iz*sliceStride + iy*nx + ix
		row := int(fromBin) * toBins

		switch mode {
		case InterpPartialVolume, InterpTrilinear:
			for cz := 0; cz < 2; cz++ {
				for cy := 0; cy < 2; cy++ {
					idx := base + cz*sliceStride + cy*nx
					wzy := wz[cz] * wy[cy]
					for cx := 0; cx < 2; cx++ {
						toBin := ref.data[idx+cx]
						if toBin < 0 {
							// Masked neighbour: its weight is dropped,
							// not redistributed.
							continue
						}
						counts[row+int(toBin)] += wzy * wx[cx]
					}
				}
			}
		case InterpRandom:
			accumulateRandom(counts, row, ref, base, wx, wy, wz, rng.Float64())
		}
	}
}

// accumulateRandom draws one of the 8 neighbours with probability equal to
// its trilinear weight and gives it the source voxel's whole unit mass. A
// masked neighbour swallows the draw; nothing is accumulated.
func accumulateRandom(counts []float64, row int, ref *clampedVolume, base int, wx, wy, wz [2]float64, u float64) {
	sliceStride := ref.width * ref.height
	cum := 0.0
	for cz := 0; cz < 2; cz++ {
		for cy := 0; cy < 2; cy++ {
			idx := base + cz*sliceStride + cy*ref.width
			wzy := wz[cz] * wy[cy]
			for cx := 0; cx < 2; cx++ {
				cum += wzy * wx[cx]
				if u < cum {
					if toBin := ref.data[idx+cx]; toBin >= 0 {
						counts[row+int(toBin)]++
					}
					return
				}
			}
		}
	}
}
