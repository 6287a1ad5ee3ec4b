package fit

import (
	"fmt"

	"github.com/cwbudde/cellfit/internal/params"
)

// Simulator produces a model voltage series for a parameter vector over a
// time base and its piecewise-constant current profile. Implementations
// return an error for infeasible parameters; cost objectives turn that
// into an infinite cost rather than aborting a search.
type Simulator interface {
	Simulate(x []float64, time, current []float64) ([]float64, error)
}

// Problem binds a simulator, a measured dataset and the parameter set
// under estimation. The parameter order of the set fixes the meaning of
// every vector passed to Evaluate.
type Problem struct {
	sim  Simulator
	data *Dataset
	set  *params.Set
}

// NewProblem validates the dataset and freezes the binding.
func NewProblem(sim Simulator, data *Dataset, set *params.Set) (*Problem, error) {
	if sim == nil {
		return nil, fmt.Errorf("simulator must not be nil")
	}
	if set == nil {
		return nil, fmt.Errorf("parameter set must not be nil")
	}
	if data == nil {
		return nil, fmt.Errorf("dataset must not be nil")
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset: %w", err)
	}
	return &Problem{sim: sim, data: data, set: set}, nil
}

// Evaluate simulates the model voltage for x over the dataset's time base.
func (p *Problem) Evaluate(x []float64) ([]float64, error) {
	return p.sim.Simulate(x, p.data.Time, p.data.Current)
}

// Dataset returns the bound measurements.
func (p *Problem) Dataset() *Dataset {
	return p.data
}

// Params returns the bound parameter set.
func (p *Problem) Params() *params.Set {
	return p.set
}
