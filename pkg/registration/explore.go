package registration

import "fmt"

// AxisOffsets lists the parameter offsets to explore along one axis of the
// transform's parameter vector.
type AxisOffsets struct {
	// Axis indexes into the parameter vector
	Axis int

	// Offsets are added to the axis' baseline value, one evaluation per
	// offset
	Offsets []float64
}

// Explore evaluates the similarity over the Cartesian grid of parameter
// offsets around the transform's current parameters. Axes not listed are
// held at their baseline. Returns the flattened score vector and the
// matching parameter vectors; the transform itself is restored to its
// baseline parameters before returning. Purely diagnostic: the session's
// cached state is untouched apart from the transient histogram buffer.
//
// For instance, Explore(t, AxisOffsets{0, []float64{-1, 0, 1}}) scores
// three translations along the first parameter.
func (r *Registration) Explore(t Transform, axes ...AxisOffsets) (scores []float64, params [][]float64, err error) {
	chain := newChain(t, r.subAffine, r.toInvAffine)
	baseline := chain.Param()
	nparams := len(baseline)

	deltas := make([][]float64, nparams)
	for i := range deltas {
		deltas[i] = []float64{0}
	}
	for _, a := range axes {
		if a.Axis < 0 || a.Axis >= nparams {
			return nil, nil, fmt.Errorf("%w: axis %d outside parameter vector of length %d",
				ErrInvalidArgument, a.Axis, nparams)
		}
		if len(a.Offsets) == 0 {
			continue
		}
		deltas[a.Axis] = a.Offsets
	}

	trials := 1
	for _, d := range deltas {
		trials *= len(d)
	}
	scores = make([]float64, 0, trials)
	params = make([][]float64, 0, trials)

	// Walk the grid as a mixed-radix counter, first axis fastest.
	counter := make([]int, nparams)
	param := make([]float64, nparams)
	for trial := 0; trial < trials; trial++ {
		for i := range param {
			param[i] = baseline[i] + deltas[i][counter[i]]
		}
		if err := chain.SetParam(param); err != nil {
			return nil, nil, err
		}
		scores = append(scores, r.evalChain(chain))
		params = append(params, append([]float64(nil), param...))

		for i := 0; i < nparams; i++ {
			counter[i]++
			if counter[i] < len(deltas[i]) {
				break
			}
			counter[i] = 0
		}
	}

	if err := chain.SetParam(baseline); err != nil {
		return nil, nil, err
	}
	return scores, params, nil
}
