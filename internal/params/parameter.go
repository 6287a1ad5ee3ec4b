// Package params describes the quantities a fit estimates: named
// parameters with box bounds, starting values, and optional priors. A Set
// fixes the parameter order, so every vector exchanged with an optimiser
// reads the same way on both sides.
package params

import (
	"fmt"
	"math"

	"github.com/cwbudde/cellfit/internal/opt"
)

// Parameter describes one physical quantity under estimation. ±Inf marks
// an unbounded side and NaN an unset initial value. The zero value pins
// the parameter at zero; use NewParameter for an unconstrained start.
type Parameter struct {
	Name    string
	Lower   float64
	Upper   float64
	Initial float64
	Prior   Prior
}

// NewParameter returns an unbounded parameter with no initial value and
// no prior.
func NewParameter(name string) Parameter {
	return Parameter{
		Name:    name,
		Lower:   math.Inf(-1),
		Upper:   math.Inf(1),
		Initial: math.NaN(),
	}
}

// initialValue resolves the starting point for one parameter. An explicit
// initial value wins; otherwise a prior draw clipped into the bounds;
// otherwise the bounds midpoint, the finite side of a half-open interval,
// or zero when nothing constrains the parameter.
func (p Parameter) initialValue() float64 {
	if !math.IsNaN(p.Initial) {
		return p.Initial
	}
	if p.Prior != nil {
		return clip(p.Prior.Rand(), p.Lower, p.Upper)
	}
	loFinite := !math.IsInf(p.Lower, -1)
	hiFinite := !math.IsInf(p.Upper, 1)
	switch {
	case loFinite && hiFinite:
		return p.Lower + (p.Upper-p.Lower)/2
	case loFinite:
		return p.Lower
	case hiFinite:
		return p.Upper
	}
	return 0
}

// Set is an ordered parameter collection with unique names.
type Set struct {
	params []Parameter
	index  map[string]int
}

// NewSet validates and freezes the parameter order.
func NewSet(parameters ...Parameter) (*Set, error) {
	if len(parameters) == 0 {
		return nil, fmt.Errorf("parameter set must not be empty")
	}
	index := make(map[string]int, len(parameters))
	for i, p := range parameters {
		if p.Name == "" {
			return nil, fmt.Errorf("parameter %d has no name", i)
		}
		if _, dup := index[p.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter name %q", p.Name)
		}
		if p.Lower > p.Upper {
			return nil, fmt.Errorf("parameter %q: lower bound %g exceeds upper bound %g", p.Name, p.Lower, p.Upper)
		}
		if !math.IsNaN(p.Initial) && (p.Initial < p.Lower || p.Initial > p.Upper) {
			return nil, fmt.Errorf("parameter %q: initial value %g outside [%g, %g]", p.Name, p.Initial, p.Lower, p.Upper)
		}
		index[p.Name] = i
	}
	return &Set{params: parameters, index: index}, nil
}

// Len returns the number of parameters.
func (s *Set) Len() int {
	return len(s.params)
}

// Names returns the parameter names in vector order.
func (s *Set) Names() []string {
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.Name
	}
	return names
}

// At returns the parameter at position i.
func (s *Set) At(i int) Parameter {
	return s.params[i]
}

// Index returns the vector position of the named parameter.
func (s *Set) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// InitialGuess assembles the starting vector x0.
func (s *Set) InitialGuess() []float64 {
	x0 := make([]float64, len(s.params))
	for i, p := range s.params {
		x0[i] = p.initialValue()
	}
	return x0
}

// Sample draws one vector from the priors, falling back to the initial
// value rule for parameters without one. Draws are clipped into bounds.
func (s *Set) Sample() []float64 {
	x := make([]float64, len(s.params))
	for i, p := range s.params {
		if p.Prior != nil {
			x[i] = clip(p.Prior.Rand(), p.Lower, p.Upper)
		} else {
			x[i] = p.initialValue()
		}
	}
	return x
}

// Bounds assembles the optimiser box, or nil when every side of every
// parameter is unbounded.
func (s *Set) Bounds() *opt.Bounds {
	anyFinite := false
	lower := make([]float64, len(s.params))
	upper := make([]float64, len(s.params))
	for i, p := range s.params {
		lower[i] = p.Lower
		upper[i] = p.Upper
		if !math.IsInf(p.Lower, -1) || !math.IsInf(p.Upper, 1) {
			anyFinite = true
		}
	}
	if !anyFinite {
		return nil
	}
	return &opt.Bounds{Lower: lower, Upper: upper}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
