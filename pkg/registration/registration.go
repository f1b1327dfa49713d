// Package registration estimates the rigid or affine transform aligning a
// moving volumetric image to a reference image by maximizing a statistical
// similarity measure computed from their joint intensity histogram.
//
// A Registration session clamps both images to compact integer bins, caches
// a subsampled coordinate-indexed view of the moving image, and re-evaluates
// the joint histogram under candidate transforms inside an optimization
// loop. Sessions are single-writer: the histogram and coordinate caches are
// overwritten in place on every evaluation, so concurrent registrations
// need independent sessions.
package registration

import (
	"fmt"
	"runtime"
	"time"

	"golang.org/x/exp/rand"

	"mriregister/internal/models"
	"mriregister/pkg/affine"
)

const (
	// DefaultBins is the default histogram resolution per axis.
	DefaultBins = 256

	// DefaultVoxelBudget is the default target for auto-tuned subsampling.
	DefaultVoxelBudget = 64 * 64 * 64
)

// InterpMode selects how a transformed voxel's histogram contribution is
// spread over its reference-image neighbours.
type InterpMode int

const (
	// InterpPartialVolume distributes each voxel's unit mass over its 8
	// neighbours by trilinear weight. The default.
	InterpPartialVolume InterpMode = iota

	// InterpTrilinear is accumulated identically to InterpPartialVolume;
	// the two names are kept as aliases.
	InterpTrilinear

	// InterpRandom gives each voxel's mass to a single neighbour drawn
	// with probability equal to its trilinear weight. Deliberately
	// non-deterministic across evaluations.
	InterpRandom
)

var interpNames = map[string]InterpMode{
	"pv":   InterpPartialVolume,
	"tri":  InterpTrilinear,
	"rand": InterpRandom,
}

// String returns the mode's short name.
func (m InterpMode) String() string {
	switch m {
	case InterpPartialVolume:
		return "pv"
	case InterpTrilinear:
		return "tri"
	case InterpRandom:
		return "rand"
	}
	return fmt.Sprintf("InterpMode(%d)", int(m))
}

// Options configures a new registration session. The zero value of every
// field selects a default.
type Options struct {
	// FromBins is the histogram resolution for the moving image
	// (default 256)
	FromBins int

	// ToBins is the histogram resolution for the reference image
	// (default: same as FromBins)
	ToBins int

	// FromMask restricts which moving-image voxels participate
	FromMask *models.Mask

	// ToMask restricts which reference-image voxels participate
	ToMask *models.Mask

	// VoxelBudget is the target voxel count for the initial auto-tuned
	// subsampling (default 64^3)
	VoxelBudget int

	// NumWorkers bounds the goroutines used for histogram accumulation
	// (default: all available cores)
	NumWorkers int

	// EnableProgressReporting installs a printing per-iteration callback
	// in Optimize when the caller supplies none
	EnableProgressReporting bool
}

// Registration is an intensity-based registration session between one
// moving and one reference volume. Construct with New; the session
// references the caller's volumes but owns all derived state.
type Registration struct {
	// clamped moving image, full resolution
	fromData    []int16
	fromDims    [3]int
	fromAffine  *affine.Matrix
	fromBins    int

	// clamped reference image, padded with a one-voxel sentinel border
	toPadded    *clampedVolume
	toInvAffine *affine.Matrix
	toBins      int

	// subsampling state, rebuilt by every Subsample call
	subData     []int16
	subDims     [3]int
	subAffine   *affine.Matrix
	subPoints   int            // non-sentinel voxels in the sub-volume
	voxCoords   []affine.Point // cache, index-aligned with subData

	// evaluation state
	hist        *JointHistogram
	interp      InterpMode
	simName     string
	simFunc     SimilarityFunc
	rng         *rand.Rand
	workers     int
	voxelBudget int
	progress    bool

	// scratch buffer reused across evaluations
	coordBuf []affine.Point
}

// New creates a registration session for aligning from onto to. Both
// volumes are clamped immediately and the moving image is subsampled to the
// configured voxel budget; opts may be nil for all defaults.
func New(from, to *models.Volume, opts *Options) (*Registration, error) {
	if opts == nil {
		opts = &Options{}
	}
	if err := from.Validate(); err != nil {
		return nil, fmt.Errorf("from image: %w", err)
	}
	if err := to.Validate(); err != nil {
		return nil, fmt.Errorf("to image: %w", err)
	}

	fromBins := opts.FromBins
	if fromBins == 0 {
		fromBins = DefaultBins
	}
	toBins := opts.ToBins
	if toBins == 0 {
		toBins = fromBins
	}

	var fromMask, toMask []bool
	if opts.FromMask != nil {
		if !opts.FromMask.Matches(from) {
			return nil, fmt.Errorf("%w: from mask dimensions do not match image", ErrInvalidArgument)
		}
		fromMask = opts.FromMask.Inside
	}
	if opts.ToMask != nil {
		if !opts.ToMask.Matches(to) {
			return nil, fmt.Errorf("%w: to mask dimensions do not match image", ErrInvalidArgument)
		}
		toMask = opts.ToMask.Inside
	}

	fromData, fromBins, err := Clamp(from.Data, fromBins, fromMask)
	if err != nil {
		return nil, fmt.Errorf("clamping from image: %w", err)
	}
	toData, toBins, err := Clamp(to.Data, toBins, toMask)
	if err != nil {
		return nil, fmt.Errorf("clamping to image: %w", err)
	}

	toInv, err := to.Affine.Inverse()
	if err != nil {
		return nil, fmt.Errorf("to image affine: %v", err)
	}

	workers := opts.NumWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	budget := opts.VoxelBudget
	if budget <= 0 {
		budget = DefaultVoxelBudget
	}

	r := &Registration{
		fromData:    fromData,
		fromDims:    [3]int{from.Width, from.Height, from.Depth},
		fromAffine:  from.Affine,
		fromBins:    fromBins,
		toPadded:    padClamped(toData, to.Width, to.Height, to.Depth),
		toInvAffine: toInv,
		toBins:      toBins,
		hist:        NewJointHistogram(fromBins, toBins),
		interp:      InterpPartialVolume,
		simName:     SimilarityCorrelationRatio,
		simFunc:     builtinSimilarities[SimilarityCorrelationRatio],
		rng:         rand.New(rand.NewSource(uint64(time.Now().UnixNano()))),
		workers:     workers,
		voxelBudget: budget,
		progress:    opts.EnableProgressReporting,
	}

	if err := r.Subsample(nil); err != nil {
		return nil, fmt.Errorf("initial subsampling: %v", err)
	}
	return r, nil
}

// SetInterp selects the interpolation mode by name: "pv", "tri" or "rand".
func (r *Registration) SetInterp(name string) error {
	mode, ok := interpNames[name]
	if !ok {
		return fmt.Errorf("%w: unknown interpolation mode %q", ErrInvalidArgument, name)
	}
	r.interp = mode
	return nil
}

// Interp returns the current interpolation mode's name.
func (r *Registration) Interp() string {
	return r.interp.String()
}

// SetSimilarity selects a built-in similarity measure by name: "cr", "cc",
// "mi" or "nmi".
func (r *Registration) SetSimilarity(name string) error {
	fn, ok := builtinSimilarities[name]
	if !ok {
		return fmt.Errorf("%w: unknown similarity measure %q", ErrInvalidArgument, name)
	}
	r.simName = name
	r.simFunc = fn
	return nil
}

// SetSimilarityFunc installs a caller-supplied similarity measure. The
// function receives the session's joint histogram and must not retain it.
func (r *Registration) SetSimilarityFunc(fn SimilarityFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: nil similarity function", ErrInvalidArgument)
	}
	r.simName = "custom"
	r.simFunc = fn
	return nil
}

// Similarity returns the current similarity measure's name, or "custom".
func (r *Registration) Similarity() string {
	return r.simName
}

// Histogram exposes the session's joint histogram for inspection. Its
// contents are those of the most recent evaluation and are overwritten by
// the next one.
func (r *Registration) Histogram() *JointHistogram {
	return r.hist
}

// NumPoints returns the number of non-sentinel voxels in the current
// subsampled moving-image view.
func (r *Registration) NumPoints() int {
	return r.subPoints
}

// FromBins returns the adjusted moving-image bin count.
func (r *Registration) FromBins() int {
	return r.fromBins
}

// ToBins returns the adjusted reference-image bin count.
func (r *Registration) ToBins() int {
	return r.toBins
}

// Eval computes the similarity of the two images under a world-to-world
// transform T.
func (r *Registration) Eval(t Transform) float64 {
	return r.evalChain(newChain(t, r.subAffine, r.toInvAffine))
}

// evalChain rebuilds the joint histogram under a voxel-to-voxel chain and
// reduces it to the similarity score.
func (r *Registration) evalChain(chain *chainTransform) float64 {
	r.coordBuf = chain.apply(r.coordBuf, r.voxCoords)
	// Shift into the padded reference frame.
	for i := range r.coordBuf {
		r.coordBuf[i][0]++
		r.coordBuf[i][1]++
		r.coordBuf[i][2]++
	}
	accumulate(r.hist, r.subData, r.toPadded, r.coordBuf, r.interp, r.rng, r.workers)
	return r.simFunc(r.hist)
}
