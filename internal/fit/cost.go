package fit

import (
	"fmt"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/cellfit/internal/opt"
)

// Metric names a pointwise error aggregation over the voltage series.
type Metric string

const (
	// SumSquaredError is the plain sum of squared residuals.
	SumSquaredError Metric = "sse"
	// RootMeanSquaredError is the L2 residual scaled by sqrt(n).
	RootMeanSquaredError Metric = "rmse"
	// MeanAbsoluteError is the L1 residual scaled by n.
	MeanAbsoluteError Metric = "mae"
)

// ParseMetric maps a user-facing name to a Metric. The empty string
// selects SumSquaredError.
func ParseMetric(name string) (Metric, error) {
	switch Metric(name) {
	case "":
		return SumSquaredError, nil
	case SumSquaredError, RootMeanSquaredError, MeanAbsoluteError:
		return Metric(name), nil
	default:
		return "", fmt.Errorf("unknown metric %q", name)
	}
}

// NewCost builds an objective measuring the distance between simulated and
// observed voltage under the given metric. Simulation failures cost +Inf,
// so an optimiser walks away from infeasible regions instead of crashing.
func NewCost(problem *Problem, metric Metric) (opt.Objective, error) {
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	if metric == "" {
		metric = SumSquaredError
	}
	return &costObjective{problem: problem, metric: metric}, nil
}

type costObjective struct {
	problem *Problem
	metric  Metric
}

func (c *costObjective) Cost(x []float64) float64 {
	simulated, err := c.problem.Evaluate(x)
	if err != nil {
		return math.Inf(1)
	}
	observed := c.problem.data.Voltage
	switch c.metric {
	case RootMeanSquaredError:
		return floats.Distance(simulated, observed, 2) / math.Sqrt(float64(len(observed)))
	case MeanAbsoluteError:
		return floats.Distance(simulated, observed, 1) / float64(len(observed))
	default:
		d := floats.Distance(simulated, observed, 2)
		return d * d
	}
}

// CountingObjective wraps an objective with an atomic evaluation counter,
// so progress reporting can read call rates without locks. Grad is not
// forwarded; counted objectives always evaluate through Cost.
type CountingObjective struct {
	inner opt.Objective
	count atomic.Int64
}

// NewCountingObjective wraps inner.
func NewCountingObjective(inner opt.Objective) *CountingObjective {
	return &CountingObjective{inner: inner}
}

// Cost evaluates the wrapped objective and bumps the counter.
func (c *CountingObjective) Cost(x []float64) float64 {
	c.count.Add(1)
	return c.inner.Cost(x)
}

// Count returns the number of evaluations so far.
func (c *CountingObjective) Count() int64 {
	return c.count.Load()
}
