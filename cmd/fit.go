package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/cellfit/internal/config"
	"github.com/cwbudde/cellfit/internal/fit"
	"github.com/cwbudde/cellfit/internal/opt"
	"github.com/cwbudde/cellfit/internal/params"
	"github.com/cwbudde/cellfit/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	fitDataDir    string
	fitCheckpoint bool
	fitTrace      bool
	fitMultistart int
	fitSeed       int64
)

var fitCmd = &cobra.Command{
	Use:   "fit <config.yaml>",
	Short: "Run a parameter fit",
	Long: `Runs battery model parameter estimation from a YAML fit spec and
prints the fitted parameters. With --checkpoint the final state is saved
under a fresh job ID so the fit can be resumed or inspected later.`,
	Args: cobra.ExactArgs(1),
	RunE: runFit,
}

func init() {
	fitCmd.Flags().BoolVar(&fitCheckpoint, "checkpoint", false, "Save a checkpoint of the final state")
	fitCmd.Flags().BoolVar(&fitTrace, "trace", false, "Record per-restart progress to a trace file")
	fitCmd.Flags().StringVar(&fitDataDir, "data-dir", "./data", "Base directory for checkpoint storage")
	fitCmd.Flags().IntVar(&fitMultistart, "multistart", 0, "Override the number of restarts")
	fitCmd.Flags().Int64Var(&fitSeed, "seed", 0, "Override the random seed")
	rootCmd.AddCommand(fitCmd)
}

func runFit(cmd *cobra.Command, args []string) error {
	spec, err := config.Load(args[0])
	if err != nil {
		return err
	}
	if fitMultistart > 0 {
		spec.Multistart = fitMultistart
	}
	if cmd.Flags().Changed("seed") {
		spec.Seed = fitSeed
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	slog.Info("Starting fit",
		"dataset", spec.Dataset,
		"method", spec.Method,
		"metric", spec.Metric,
		"multistart", spec.Multistart)

	set, obj, optimizer, err := assembleFit(spec)
	if err != nil {
		return err
	}

	// Optional persistence under a fresh job ID
	var (
		checkpointStore *store.FSStore
		trace           *store.TraceWriter
		jobID           string
	)
	if fitCheckpoint || fitTrace {
		checkpointStore, err = store.NewFSStore(fitDataDir)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint store: %w", err)
		}
		jobID = uuid.New().String()
	}
	if fitTrace {
		trace, err = checkpointStore.OpenTrace(jobID, false)
		if err != nil {
			return fmt.Errorf("failed to open trace: %w", err)
		}
		defer trace.Close()
	}

	opts := fit.DefaultOptions()
	opts.Multistart = spec.Multistart
	opts.Seed = spec.Seed
	opts.Convergence = spec.Convergence()
	if trace != nil {
		opts.OnProgress = traceProgress(trace)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	summary, err := fit.Run(ctx, obj, optimizer, set, opts)
	elapsed := time.Since(start)

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			return fmt.Errorf("fit failed: %w", err)
		}
		slog.Warn("Fit interrupted, keeping best result so far", "restarts", summary.Restarts)
	}

	printFitResult(os.Stdout, set, summary, elapsed)

	if fitCheckpoint {
		checkpoint := store.NewCheckpoint(jobID, summary.BestParams, summary.BestCost,
			summary.InitialCost, summary.Restarts, summary.Evaluations, spec.JobConfig())
		if err := checkpointStore.SaveCheckpoint(jobID, checkpoint); err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}
		fmt.Printf("Saved checkpoint %s (resume with: cellfit resume %s)\n", jobID, jobID)
	}

	return nil
}

// assembleFit builds the parameter set, objective and optimizer a fit
// spec describes.
func assembleFit(spec *config.FitSpec) (*params.Set, opt.Objective, opt.Optimizer, error) {
	dataset, err := fit.LoadCSV(spec.Dataset)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.Info("Loaded dataset", "path", spec.Dataset, "samples", dataset.Len())

	set, err := spec.BuildParams()
	if err != nil {
		return nil, nil, nil, err
	}
	problem, err := fit.NewProblem(spec.BuildModel(), dataset, set)
	if err != nil {
		return nil, nil, nil, err
	}
	metric, err := fit.ParseMetric(spec.Metric)
	if err != nil {
		return nil, nil, nil, err
	}
	obj, err := fit.NewCost(problem, metric)
	if err != nil {
		return nil, nil, nil, err
	}
	optimizer, err := spec.BuildOptimizer()
	if err != nil {
		return nil, nil, nil, err
	}
	return set, obj, optimizer, nil
}

// traceProgress returns an OnProgress callback that appends trace entries.
func traceProgress(trace *store.TraceWriter) func(fit.Progress) {
	return func(p fit.Progress) {
		entry := store.TraceEntry{
			Restart:     p.Restart,
			Evaluations: p.Evaluations,
			Cost:        p.BestCost,
			Timestamp:   time.Now(),
			Best:        p.Best,
		}
		if err := trace.Write(entry); err != nil {
			slog.Warn("Failed to write trace entry", "error", err)
		}
	}
}

// printFitResult writes the fitted parameters and run statistics.
func printFitResult(w io.Writer, set *params.Set, summary *fit.Summary, elapsed time.Duration) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PARAMETER\tVALUE")
	fmt.Fprintln(tw, "---------\t-----")
	for i, name := range set.Names() {
		fmt.Fprintf(tw, "%s\t%.6g\n", name, summary.BestParams[i])
	}
	tw.Flush()

	eps := float64(0)
	if elapsed.Seconds() > 0 {
		eps = float64(summary.Evaluations) / elapsed.Seconds()
	}
	fmt.Fprintf(w, "\nCost: %.6g -> %.6g (%d restarts, %d evaluations in %s, %.0f evals/sec)\n",
		summary.InitialCost, summary.BestCost, summary.Restarts, summary.Evaluations,
		elapsed.Round(time.Millisecond), eps)
}
