// Package cell bundles the equivalent-circuit battery model used to
// exercise the fitting stack end to end without an external simulator.
package cell

import (
	"errors"
	"fmt"
	"math"
)

// ErrInfeasible marks parameter vectors the model cannot simulate.
// Callers treat it as an infinite-cost point, not a failure.
var ErrInfeasible = errors.New("cell: infeasible parameters")

// Thevenin is a first-order RC equivalent circuit. The terminal voltage
// under a positive discharge current is
//
//	v = ocv - i*r0 - vrc
//
// where vrc follows the RC relaxation dvrc/dt = -vrc/(r1*c1) + i/c1.
// The three fitted parameters are [r0, r1, c1].
type Thevenin struct {
	OCV float64
}

// NewThevenin returns a model with a fixed open-circuit voltage.
func NewThevenin(ocv float64) *Thevenin {
	return &Thevenin{OCV: ocv}
}

// ParamNames returns the fitted parameter names in vector order.
func (m *Thevenin) ParamNames() []string {
	return []string{"r0", "r1", "c1"}
}

// Simulate computes the terminal voltage series for the given parameters
// and a piecewise-constant current held between samples. The RC state uses
// the exact exponential update per step, so accuracy does not depend on
// the sample spacing. The cell starts relaxed (vrc = 0).
func (m *Thevenin) Simulate(x []float64, time, current []float64) ([]float64, error) {
	if len(x) != 3 {
		return nil, fmt.Errorf("thevenin expects 3 parameters [r0 r1 c1], got %d", len(x))
	}
	r0, r1, c1 := x[0], x[1], x[2]
	if r0 <= 0 || r1 <= 0 || c1 <= 0 {
		return nil, fmt.Errorf("%w: [%g %g %g] must all be positive", ErrInfeasible, r0, r1, c1)
	}
	if len(time) == 0 {
		return nil, fmt.Errorf("empty time series")
	}
	if len(time) != len(current) {
		return nil, fmt.Errorf("time length %d does not match current length %d", len(time), len(current))
	}

	tau := r1 * c1
	voltage := make([]float64, len(time))
	var vrc float64
	for k := range time {
		voltage[k] = m.OCV - current[k]*r0 - vrc
		if k+1 == len(time) {
			break
		}
		dt := time[k+1] - time[k]
		if dt <= 0 {
			return nil, fmt.Errorf("time must be strictly increasing at sample %d", k+1)
		}
		steady := current[k] * r1
		vrc = steady + (vrc-steady)*math.Exp(-dt/tau)
	}
	return voltage, nil
}

// Synthetic generates a noiseless reference series: n samples spaced dt
// apart under a single discharge pulse of the given amplitude covering the
// middle half of the window. Returns time, current and voltage.
func (m *Thevenin) Synthetic(x []float64, n int, dt, amps float64) ([]float64, []float64, []float64, error) {
	if n < 4 {
		return nil, nil, nil, fmt.Errorf("need at least 4 samples, got %d", n)
	}
	time := make([]float64, n)
	current := make([]float64, n)
	for k := range time {
		time[k] = float64(k) * dt
		if k >= n/4 && k < 3*n/4 {
			current[k] = amps
		}
	}
	voltage, err := m.Simulate(x, time, current)
	if err != nil {
		return nil, nil, nil, err
	}
	return time, current, voltage, nil
}
