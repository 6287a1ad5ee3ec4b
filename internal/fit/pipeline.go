package fit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/cwbudde/cellfit/internal/opt"
	"github.com/cwbudde/cellfit/internal/params"
)

// Progress reports the incumbent state after a restart. Best is a copy
// and safe to retain.
type Progress struct {
	Restart     int
	BestCost    float64
	Best        []float64
	Evaluations int64
}

// Options tunes a fit run.
type Options struct {
	// Multistart is the number of optimisation restarts. Values below 1
	// run once from the set's initial guess.
	Multistart int
	// Seed drives the restart-point draws for parameters without priors.
	Seed int64
	// Convergence stops multistart early once restarts stop improving.
	Convergence ConvergenceConfig
	// Start overrides the set's initial guess when non-nil (warm starts
	// from a checkpoint).
	Start []float64
	// OnProgress, when set, is called after every restart.
	OnProgress func(Progress)
}

// DefaultOptions runs a single start with convergence tracking on.
func DefaultOptions() Options {
	return Options{
		Multistart:  1,
		Convergence: DefaultConvergenceConfig(),
	}
}

// Summary is the outcome of a fit run.
type Summary struct {
	BestParams  []float64
	BestCost    float64
	InitialCost float64
	Evaluations int64
	Restarts    int
}

// Run drives optimizer over obj, restarting from fresh points drawn off
// the parameter priors. The incumbent best survives every restart. On
// cancellation between restarts the incumbent summary is returned together
// with ctx.Err(); a running backend is never interrupted.
func Run(ctx context.Context, obj opt.Objective, optimizer opt.Optimizer, set *params.Set, opts Options) (*Summary, error) {
	if obj == nil {
		return nil, fmt.Errorf("objective must not be nil")
	}
	if optimizer == nil {
		return nil, fmt.Errorf("optimizer must not be nil")
	}
	if set == nil {
		return nil, fmt.Errorf("parameter set must not be nil")
	}

	restarts := opts.Multistart
	if restarts < 1 {
		restarts = 1
	}

	counted := NewCountingObjective(obj)
	x0 := set.InitialGuess()
	if opts.Start != nil {
		if len(opts.Start) != set.Len() {
			return nil, fmt.Errorf("start vector length %d does not match %d parameters", len(opts.Start), set.Len())
		}
		x0 = append([]float64{}, opts.Start...)
	}
	bounds := set.Bounds()
	initialCost := counted.Cost(x0)

	slog.Info("Starting fit",
		"optimizer", optimizer.Name(),
		"params", set.Len(),
		"multistart", restarts,
		"initial_cost", initialCost)

	summary := &Summary{
		BestParams:  append([]float64{}, x0...),
		BestCost:    initialCost,
		InitialCost: initialCost,
	}
	tracker := NewConvergenceTracker(opts.Convergence)
	rng := rand.New(rand.NewPCG(uint64(opts.Seed), uint64(opts.Seed)))

	start := x0
	for r := 0; r < restarts; r++ {
		if err := ctx.Err(); err != nil {
			slog.Warn("Fit cancelled between restarts", "restart", r, "best_cost", summary.BestCost)
			summary.Evaluations = counted.Count()
			return summary, err
		}

		res, err := optimizer.Run(counted, start, bounds)
		if err != nil {
			return nil, err
		}

		summary.Restarts = r + 1
		if res.Cost < summary.BestCost {
			summary.BestCost = res.Cost
			copy(summary.BestParams, res.X)
		}
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Restart:     r + 1,
				BestCost:    summary.BestCost,
				Best:        append([]float64{}, summary.BestParams...),
				Evaluations: counted.Count(),
			})
		}
		if tracker.Update(res.Cost) {
			break
		}
		start = restartPoint(set, x0, rng)
	}

	summary.Evaluations = counted.Count()
	slog.Info("Fit complete",
		"best_cost", summary.BestCost,
		"evaluations", summary.Evaluations,
		"restarts", summary.Restarts)
	return summary, nil
}

// restartPoint draws a fresh starting vector. Parameters with priors use
// their prior; bounded ones scatter uniformly inside the box; the rest
// jitter around the original guess, clamped into any half-open interval.
func restartPoint(set *params.Set, x0 []float64, rng *rand.Rand) []float64 {
	x := set.Sample()
	for i := range x {
		p := set.At(i)
		if p.Prior != nil {
			continue
		}
		loFinite := !math.IsInf(p.Lower, -1)
		hiFinite := !math.IsInf(p.Upper, 1)
		if loFinite && hiFinite {
			x[i] = p.Lower + rng.Float64()*(p.Upper-p.Lower)
			continue
		}
		sd := 0.1 * math.Max(math.Abs(x0[i]), 1)
		v := x0[i] + sd*rng.NormFloat64()
		if v < p.Lower {
			v = p.Lower
		}
		if v > p.Upper {
			v = p.Upper
		}
		x[i] = v
	}
	return x
}
