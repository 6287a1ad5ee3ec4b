package opt

import (
	"log/slog"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// runGonum drives the unbounded local methods. Nelder-Mead runs
// derivative-free; the quasi-Newton and conjugate-gradient methods take
// the objective's own gradient when available and fall back to central
// finite differences.
func (m *Minimizer) runGonum(obj Objective, x0 []float64) (*Result, error) {
	problem := optimize.Problem{Func: obj.Cost}
	if m.method != MethodNelderMead {
		if diff, ok := obj.(Differentiable); ok {
			problem.Grad = diff.Grad
		} else {
			problem.Grad = func(grad, x []float64) {
				fd.Gradient(grad, obj.Cost, x, nil)
			}
		}
	}

	var settings *optimize.Settings
	if m.maxIters > 0 {
		settings = &optimize.Settings{MajorIterations: m.maxIters}
	}

	res, err := optimize.Minimize(problem, x0, settings, gonumMethod(m.method))
	if err != nil && (res == nil || len(res.X) == 0) {
		return nil, &BackendError{Backend: m.method.String(), Err: err}
	}
	if err != nil {
		slog.Warn("optimizer stopped before convergence",
			"backend", m.method.String(), "status", res.Status.String(), "err", err)
	} else if res.Status == optimize.IterationLimit {
		slog.Warn("optimizer hit iteration limit",
			"backend", m.method.String(), "iterations", res.MajorIterations)
	}
	return extractGonum(res), nil
}

func gonumMethod(m Method) optimize.Method {
	switch m {
	case MethodBFGS:
		return &optimize.BFGS{}
	case MethodLBFGS:
		return &optimize.LBFGS{}
	case MethodCG:
		return &optimize.CG{}
	case MethodNelderMead:
		return &optimize.NelderMead{}
	}
	return nil
}

func extractGonum(res *optimize.Result) *Result {
	x := make([]float64, len(res.X))
	copy(x, res.X)
	return &Result{X: x, Cost: res.F}
}
