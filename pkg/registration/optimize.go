package registration

import (
	"fmt"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// Optimization method names accepted by Optimize.
const (
	MethodPowell   = "powell"
	MethodSteepest = "steepest"
	MethodCG       = "cg"
	MethodBFGS     = "bfgs"
	MethodSimplex  = "simplex"
)

// Default convergence tolerances, per method family.
const (
	defaultXTol          = 1e-2
	defaultFTol          = 1e-2
	defaultGTol          = 1e-3
	defaultStep          = 1e-1
	defaultMaxIterations = 100
)

// OptimizeOptions tunes the optimization driver. Zero-valued fields take
// the selected method's defaults.
type OptimizeOptions struct {
	// XTol is the parameter-space tolerance (powell)
	XTol float64

	// FTol is the function-value convergence tolerance
	// (powell, steepest, simplex)
	FTol float64

	// GTol is the gradient-norm convergence tolerance (cg, bfgs)
	GTol float64

	// Step is the fixed step size (steepest)
	Step float64

	// MaxIterations caps the number of major iterations
	MaxIterations int

	// Callback, when non-nil, receives the parameter vector after every
	// major iteration. Purely observational.
	Callback func(param []float64)
}

func (o *OptimizeOptions) withDefaults() OptimizeOptions {
	out := OptimizeOptions{}
	if o != nil {
		out = *o
	}
	if out.XTol == 0 {
		out.XTol = defaultXTol
	}
	if out.FTol == 0 {
		out.FTol = defaultFTol
	}
	if out.GTol == 0 {
		out.GTol = defaultGTol
	}
	if out.Step == 0 {
		out.Step = defaultStep
	}
	if out.MaxIterations == 0 {
		out.MaxIterations = defaultMaxIterations
	}
	return out
}

// Optimize adjusts the transform's parameters to maximize the session's
// similarity measure, starting from the transform's current parameters.
// The parameters are updated in place and the same transform is returned.
// method is one of "powell", "steepest", "cg", "bfgs" or "simplex"; an
// unknown name fails with an InvalidArgument error, while failures of the
// underlying minimizer propagate unmodified.
func (r *Registration) Optimize(t Transform, method string, opts *OptimizeOptions) (Transform, error) {
	switch method {
	case MethodPowell, MethodSteepest, MethodCG, MethodBFGS, MethodSimplex:
	default:
		return nil, fmt.Errorf("%w: unknown optimizer method %q", ErrInvalidArgument, method)
	}
	o := opts.withDefaults()

	chain := newChain(t, r.subAffine, r.toInvAffine)
	x0 := chain.Param()

	cost := func(p []float64) float64 {
		if err := chain.SetParam(p); err != nil {
			panic(err) // the driver always feeds vectors of x0's length
		}
		return -r.evalChain(chain)
	}

	callback := o.Callback
	if callback == nil && r.progress {
		callback = func(p []float64) {
			chain.SetParam(p)
			fmt.Println(chain.Optimizable())
			fmt.Printf("%s = %g\n\n", r.simName, r.evalChain(chain))
		}
	}

	if r.progress {
		fmt.Println("Initial guess...")
		fmt.Println(chain.Optimizable())
		fmt.Printf("Optimizing using %s\n", method)
	}

	var solution []float64
	var err error
	if method == MethodPowell {
		solution, _, err = powellMinimize(cost, x0, o.XTol, o.FTol, o.MaxIterations, callback)
	} else {
		solution, err = r.minimizeGonum(cost, x0, method, o, callback)
	}
	if err != nil {
		return nil, err
	}
	if err := chain.SetParam(solution); err != nil {
		return nil, err
	}
	return t, nil
}

// minimizeGonum wraps the gonum minimizers behind the driver's cost
// function, estimating gradients by central finite differences.
func (r *Registration) minimizeGonum(cost func([]float64) float64, x0 []float64, method string, o OptimizeOptions, callback func([]float64)) ([]float64, error) {
	problem := optimize.Problem{
		Func: cost,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, cost, x, nil)
		},
	}

	settings := &optimize.Settings{
		MajorIterations: o.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   o.FTol,
			Iterations: 10,
		},
	}
	if callback != nil {
		settings.Recorder = callbackRecorder{fn: callback}
	}

	var m optimize.Method
	switch method {
	case MethodSteepest:
		settings.GradientThreshold = o.GTol
		m = &optimize.GradientDescent{StepSizer: optimize.ConstantStepSize{Size: o.Step}}
	case MethodCG:
		settings.GradientThreshold = o.GTol
		m = &optimize.CG{}
	case MethodBFGS:
		settings.GradientThreshold = o.GTol
		m = &optimize.BFGS{}
	case MethodSimplex:
		m = &optimize.NelderMead{}
	}

	result, err := optimize.Minimize(problem, x0, settings, m)
	if err != nil {
		return nil, err
	}
	return result.X, nil
}

// callbackRecorder adapts a per-iteration callback to gonum's Recorder.
type callbackRecorder struct {
	fn func([]float64)
}

func (c callbackRecorder) Init() error { return nil }

func (c callbackRecorder) Record(loc *optimize.Location, op optimize.Operation, _ *optimize.Stats) error {
	if op == optimize.MajorIteration {
		c.fn(append([]float64(nil), loc.X...))
	}
	return nil
}
