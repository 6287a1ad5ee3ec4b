// Package opt provides a uniform contract over heterogeneous optimisation
// backends. Each adapter translates the common Run entry point into one
// backend's native calling convention and normalizes the backend's result
// into the (x, cost) pair, so callers never see a backend-specific type.
package opt

import (
	"fmt"
	"math"
)

// Bounds holds inclusive per-parameter box constraints. Lower and Upper must
// both match the parameter vector in length, with Lower[i] <= Upper[i].
// ±Inf marks an open side where the adapter supports one. Adapters never
// mutate bounds.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// Len returns the number of constrained parameters.
func (b *Bounds) Len() int {
	return len(b.Lower)
}

// Finite reports whether every interval has two finite sides.
func (b *Bounds) Finite() bool {
	for i := range b.Lower {
		if math.IsInf(b.Lower[i], 0) || math.IsInf(b.Upper[i], 0) {
			return false
		}
	}
	return true
}

// Result is the normalized outcome of a run: the best parameter vector the
// backend reached and its cost. Freshly allocated on every Run call.
type Result struct {
	X    []float64
	Cost float64
}

// Optimizer is the uniform contract implemented by every backend adapter.
//
// Run blocks the caller until the backend terminates, whether by
// convergence, iteration cap, or internal failure. Adapters expose no
// cancellation hook of their own; callers wrap Run with their own timeout
// where needed. Configuration is read-only after construction, so
// concurrent Run calls on distinct adapter instances are safe. A single
// instance is not guaranteed safe for concurrent Run calls when the
// wrapped backend keeps internal state; that remains a caller
// responsibility.
type Optimizer interface {
	// Run minimizes obj starting from x0 under optional bounds. A nil
	// bounds runs unconstrained where the backend allows it. Inputs are
	// validated before any backend work or objective evaluation.
	// Non-convergent termination is not an error: the best point the
	// backend held is returned.
	Run(obj Objective, x0 []float64, bounds *Bounds) (*Result, error)

	// NeedsSensitivities reports whether the adapter requires obj to also
	// implement Differentiable.
	NeedsSensitivities() bool

	// Name identifies the backend for logs and errors.
	Name() string
}

// validateRun enforces the shared input contract: x0 non-empty, bounds
// lengths matching x0, and Lower[i] <= Upper[i] for all i. It runs before
// any backend invocation and never corrects inputs silently.
func validateRun(x0 []float64, bounds *Bounds) error {
	if len(x0) == 0 {
		return &InputError{Field: "x0", Reason: "must not be empty"}
	}
	if bounds == nil {
		return nil
	}
	if len(bounds.Lower) != len(x0) || len(bounds.Upper) != len(x0) {
		return &InputError{
			Field: "bounds",
			Reason: fmt.Sprintf("lower/upper lengths %d/%d do not match x0 length %d",
				len(bounds.Lower), len(bounds.Upper), len(x0)),
		}
	}
	for i := range bounds.Lower {
		if bounds.Lower[i] > bounds.Upper[i] {
			return &InputError{
				Field:  "bounds",
				Reason: fmt.Sprintf("lower[%d]=%g exceeds upper[%d]=%g", i, bounds.Lower[i], i, bounds.Upper[i]),
			}
		}
	}
	return nil
}
