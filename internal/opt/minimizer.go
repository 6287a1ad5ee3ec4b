package opt

// Minimizer is the gradient-based local search adapter. The method is
// fixed at construction; Run dispatches straight to the matching backend
// without inspecting strings.
type Minimizer struct {
	method   Method
	maxIters int
}

// NewMinimizer builds a local minimizer for the given method. maxIters
// caps the major iteration count; zero keeps the backend default.
func NewMinimizer(method Method, maxIters int) (*Minimizer, error) {
	if _, ok := methodNames[method]; !ok {
		return nil, &InputError{Field: "method", Reason: method.String() + " is not a known method"}
	}
	return &Minimizer{method: method, maxIters: maxIters}, nil
}

// NewDefaultMinimizer returns the bounded quasi-Newton minimizer with
// backend-default iteration limits.
func NewDefaultMinimizer() *Minimizer {
	return &Minimizer{method: MethodLBFGSB}
}

// Run minimizes obj starting at x0. Inputs are validated before the
// objective is evaluated or any backend state is built.
func (m *Minimizer) Run(obj Objective, x0 []float64, bounds *Bounds) (*Result, error) {
	if err := validateRun(x0, bounds); err != nil {
		return nil, err
	}
	if bounds != nil && !m.method.Bounded() {
		return nil, &InputError{Field: "bounds", Reason: "method " + m.method.String() + " cannot handle bounds"}
	}
	if m.method == MethodLBFGSB {
		return m.runLBFGSB(obj, x0, bounds)
	}
	return m.runGonum(obj, x0)
}

// NeedsSensitivities reports false: gradients are produced internally,
// by the objective when it implements Differentiable and by finite
// differences otherwise, so callers never precompute them.
func (m *Minimizer) NeedsSensitivities() bool {
	return false
}

func (m *Minimizer) Name() string {
	return "minimizer/" + m.method.String()
}
