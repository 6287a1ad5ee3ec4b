package opt

import "fmt"

// Method selects the local search algorithm used by a Minimizer. The
// zero value is MethodLBFGSB. Methods are resolved once at construction
// so an unknown name fails fast instead of surfacing mid-run.
type Method int

const (
	// MethodLBFGSB is limited-memory BFGS with box constraints.
	MethodLBFGSB Method = iota
	// MethodBFGS is the dense quasi-Newton update, unbounded.
	MethodBFGS
	// MethodLBFGS is limited-memory BFGS, unbounded.
	MethodLBFGS
	// MethodCG is nonlinear conjugate gradient, unbounded.
	MethodCG
	// MethodNelderMead is the derivative-free simplex search, unbounded.
	MethodNelderMead
)

var methodNames = map[Method]string{
	MethodLBFGSB:     "lbfgsb",
	MethodBFGS:       "bfgs",
	MethodLBFGS:      "lbfgs",
	MethodCG:         "cg",
	MethodNelderMead: "neldermead",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// Bounded reports whether the method honors box constraints. Unbounded
// methods reject non-nil bounds up front rather than silently ignoring
// them.
func (m Method) Bounded() bool {
	return m == MethodLBFGSB
}

// ParseMethod maps a user-facing name to a Method. The empty string
// selects the default MethodLBFGSB.
func ParseMethod(name string) (Method, error) {
	switch name {
	case "", "lbfgsb", "l-bfgs-b":
		return MethodLBFGSB, nil
	case "bfgs":
		return MethodBFGS, nil
	case "lbfgs", "l-bfgs":
		return MethodLBFGS, nil
	case "cg":
		return MethodCG, nil
	case "neldermead", "nelder-mead":
		return MethodNelderMead, nil
	default:
		return 0, &InputError{Field: "method", Reason: fmt.Sprintf("unknown method %q", name)}
	}
}
