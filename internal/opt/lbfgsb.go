package opt

import (
	"log/slog"
	"math"

	"github.com/curioloop/optimizer/lbfgsb"
)

const (
	lbfgsbCorrections = 10
	lbfgsbMaxIters    = 15000
	lbfgsbFactr       = 1e7
	lbfgsbPGTol       = 1e-5
)

// runLBFGSB drives the box-constrained quasi-Newton backend. Gradients
// come from the objective itself when it implements Differentiable,
// otherwise from a bounded finite-difference stencil.
func (m *Minimizer) runLBFGSB(obj Objective, x0 []float64, bounds *Bounds) (*Result, error) {
	diff, analytic := obj.(Differentiable)
	eval := func(x, g []float64) float64 {
		if analytic {
			diff.Grad(g, x)
		} else {
			boundedGradient(g, obj, x, bounds)
		}
		return obj.Cost(x)
	}

	maxIters := m.maxIters
	if maxIters <= 0 {
		maxIters = lbfgsbMaxIters
	}
	problem := &lbfgsb.Problem{
		N:    len(x0),
		M:    lbfgsbCorrections,
		Eval: eval,
		Stop: lbfgsb.Termination{
			MaxIterations:     maxIters,
			EpsAccuracyFactor: lbfgsbFactr,
			ProjGradTolerance: lbfgsbPGTol,
		},
		Bounds: lbfgsbBounds(x0, bounds),
	}

	optimizer, err := problem.New(nil)
	if err != nil {
		return nil, &BackendError{Backend: "lbfgsb", Err: err}
	}

	x := make([]float64, len(x0))
	copy(x, x0)
	res := optimizer.Fit(x, optimizer.Init())
	if !res.OK {
		slog.Warn("optimizer stopped before convergence",
			"backend", "lbfgsb", "iterations", res.NumIter, "cost", res.F)
	}
	return extractLBFGSB(res), nil
}

// lbfgsbBounds converts per-dimension bounds into the backend form, where
// NaN marks an open side. A nil bounds means every dimension is free.
func lbfgsbBounds(x0 []float64, bounds *Bounds) []lbfgsb.Bound {
	if bounds == nil {
		return nil
	}
	out := make([]lbfgsb.Bound, len(x0))
	for i := range out {
		lo, hi := bounds.Lower[i], bounds.Upper[i]
		if math.IsInf(lo, -1) {
			lo = math.NaN()
		}
		if math.IsInf(hi, 1) {
			hi = math.NaN()
		}
		out[i] = lbfgsb.Bound{Lower: lo, Upper: hi}
	}
	return out
}

func extractLBFGSB(res *lbfgsb.Result) *Result {
	x := make([]float64, len(res.X))
	copy(x, res.X)
	return &Result{X: x, Cost: res.F}
}
