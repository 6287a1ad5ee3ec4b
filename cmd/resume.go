package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/cellfit/internal/config"
	"github.com/cwbudde/cellfit/internal/fit"
	"github.com/cwbudde/cellfit/internal/store"
	"github.com/spf13/cobra"
)

var (
	resumeDataDir    string
	resumeSpecPath   string
	resumeMultistart int
)

var resumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Resume a fit from its checkpoint",
	Long: `Loads the checkpoint saved for a job, verifies the configuration is
compatible and continues fitting from the best parameters found so far.
The updated checkpoint is written back when the run ends.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "./data", "Base directory for checkpoint storage")
	resumeCmd.Flags().StringVar(&resumeSpecPath, "spec", "", "Fit spec to resume with (defaults to the checkpointed config)")
	resumeCmd.Flags().IntVar(&resumeMultistart, "multistart", 0, "Override the number of restarts")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	checkpointStore, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	checkpoint, err := checkpointStore.LoadCheckpoint(jobID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := checkpoint.Validate(); err != nil {
		return fmt.Errorf("checkpoint is not usable: %w", err)
	}

	var spec *config.FitSpec
	if resumeSpecPath != "" {
		spec, err = config.Load(resumeSpecPath)
		if err != nil {
			return err
		}
	} else {
		spec = config.FromJobConfig(checkpoint.Config)
	}
	if resumeMultistart > 0 {
		spec.Multistart = resumeMultistart
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	if err := checkpoint.IsCompatible(spec.JobConfig()); err != nil {
		return fmt.Errorf("cannot resume %s: %w", jobID, err)
	}

	slog.Info("Resuming fit",
		"job_id", jobID,
		"restarts_done", checkpoint.Restart,
		"best_cost", checkpoint.BestCost)

	set, obj, optimizer, err := assembleFit(spec)
	if err != nil {
		return err
	}

	trace, err := checkpointStore.OpenTrace(jobID, true)
	if err != nil {
		slog.Warn("Trace persistence disabled", "job_id", jobID, "error", err)
		trace = nil
	} else {
		defer trace.Close()
	}

	opts := fit.DefaultOptions()
	opts.Multistart = spec.Multistart
	opts.Seed = spec.Seed
	opts.Convergence = spec.Convergence()
	opts.Start = checkpoint.BestParams
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

	// Warm start keeps the incumbent monotone across resumes; the restart
	// and evaluation counters accumulate.
	updated := store.NewCheckpoint(jobID, summary.BestParams, summary.BestCost,
		checkpoint.InitialCost, checkpoint.Restart+summary.Restarts,
		checkpoint.Evaluations+summary.Evaluations, spec.JobConfig())
	if err := checkpointStore.SaveCheckpoint(jobID, updated); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	if summary.BestCost < checkpoint.BestCost {
		fmt.Printf("Improved on checkpoint: %.6g -> %.6g\n", checkpoint.BestCost, summary.BestCost)
	} else {
		fmt.Printf("No improvement over checkpoint (%.6g)\n", checkpoint.BestCost)
	}

	return nil
}
