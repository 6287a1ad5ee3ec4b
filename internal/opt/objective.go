package opt

// Objective maps a parameter vector to a scalar cost. Implementations are
// not required to be referentially transparent (a wrapped model may cache
// internally), so adapters never assume idempotence across calls with
// identical inputs beyond what the backend itself requires. Infeasible
// points should report +Inf rather than panic.
type Objective interface {
	Cost(x []float64) float64
}

// Differentiable is implemented by objectives that supply analytic
// gradients. Grad writes the gradient at x into dst; dst and x have the
// same length. Adapters fall back to finite differences when an objective
// does not implement it.
type Differentiable interface {
	Objective
	Grad(dst, x []float64)
}

// ObjectiveFunc adapts a plain function to the Objective interface.
type ObjectiveFunc func(x []float64) float64

// Cost evaluates f at x.
func (f ObjectiveFunc) Cost(x []float64) float64 {
	return f(x)
}
