package opt

import (
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter wraps the external mayfly library behind the Optimizer
// contract. The library searches a scalar [lower, upper] box shared by all
// dimensions, so the adapter runs it on the unit cube and maps candidates
// into the caller's per-parameter intervals before each cost evaluation.
//
// x0 fixes the problem dimension and is validated like any other input,
// but the swarm initializes uniformly inside the bounds; there is no
// warm-start hook to seed a member at x0.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly builds the population-based global adapter. Non-positive
// maxIters or popSize keep the library defaults. Runs with the same seed
// and inputs reproduce the same result.
func NewMayfly(maxIters, popSize int, seed int64) *MayflyAdapter {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the mayfly search. Bounds are mandatory and must be finite
// on both sides: a population cannot be scattered over an unbounded box.
func (m *MayflyAdapter) Run(obj Objective, x0 []float64, bounds *Bounds) (*Result, error) {
	if err := validateRun(x0, bounds); err != nil {
		return nil, err
	}
	if bounds == nil {
		return nil, &InputError{Field: "bounds", Reason: "population search requires finite bounds"}
	}
	if !bounds.Finite() {
		return nil, &InputError{Field: "bounds", Reason: "population search requires finite bounds on every parameter"}
	}

	scratch := make([]float64, len(x0))
	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(unit []float64) float64 {
		denormalize(scratch, unit, bounds)
		return obj.Cost(scratch)
	}
	config.ProblemSize = len(x0)
	config.LowerBound = 0
	config.UpperBound = 1
	if m.maxIters > 0 {
		config.MaxIterations = m.maxIters
	}
	if m.popSize > 0 {
		config.NPop = m.popSize
	}
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, &BackendError{Backend: "mayfly", Err: err}
	}

	x := make([]float64, len(x0))
	denormalize(x, result.GlobalBest.Position, bounds)
	return &Result{X: x, Cost: result.GlobalBest.Cost}, nil
}

// NeedsSensitivities reports false: the swarm never differentiates the
// objective.
func (m *MayflyAdapter) NeedsSensitivities() bool {
	return false
}

func (m *MayflyAdapter) Name() string {
	return "mayfly"
}

// denormalize maps a unit-cube point into the bounded box.
func denormalize(dst, unit []float64, bounds *Bounds) {
	for i, u := range unit {
		dst[i] = bounds.Lower[i] + u*(bounds.Upper[i]-bounds.Lower[i])
	}
}
