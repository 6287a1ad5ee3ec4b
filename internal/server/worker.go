package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/cellfit/internal/config"
	"github.com/cwbudde/cellfit/internal/fit"
	"github.com/cwbudde/cellfit/internal/store"
)

// runJob executes a fitting job in the background.
// If checkpointStore is not nil, progress is traced and, with
// checkpointInterval > 0, periodic checkpoints are saved.
func runJob(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string) error {
	defer jm.clearCancel(jobID)

	// Get the job
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	// Update state to running
	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "dataset", job.Config.DataPath, "method", job.Config.Method)

	spec := config.FromJobConfig(job.Config)

	// Load measurement data
	dataset, err := fit.LoadCSV(spec.Dataset)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to load dataset: %w", err))
		return err
	}

	slog.Info("Loaded dataset", "job_id", jobID, "samples", dataset.Len())

	// Assemble the fitting problem
	set, err := spec.BuildParams()
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	problem, err := fit.NewProblem(spec.BuildModel(), dataset, set)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	metric, err := fit.ParseMetric(spec.Metric)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	obj, err := fit.NewCost(problem, metric)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	optimizer, err := spec.BuildOptimizer()
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	// Seed the status endpoint before the first restart completes
	initialCost := obj.Cost(set.InitialGuess())
	jm.UpdateJob(jobID, func(j *Job) {
		j.InitialCost = initialCost
	})

	// Open the progress trace
	var trace *store.TraceWriter
	if checkpointStore != nil {
		trace, err = checkpointStore.OpenTrace(jobID, false)
		if err != nil {
			slog.Warn("Trace persistence disabled", "job_id", jobID, "error", err)
			trace = nil
		} else {
			defer trace.Close()
		}
	}

	start := time.Now()

	// Check for cancellation before starting expensive operation
	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	// Start progress monitoring goroutine
	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, start, progressDone)

	// Start checkpoint monitoring goroutine if enabled
	checkpointDone := make(chan struct{})
	if checkpointStore != nil && job.Config.CheckpointInterval > 0 {
		go monitorCheckpoints(ctx, jm, checkpointStore, jobID, checkpointDone)
	} else {
		close(checkpointDone) // No checkpointing, close immediately
	}

	opts := fit.DefaultOptions()
	opts.Multistart = spec.Multistart
	opts.Seed = spec.Seed
	opts.Convergence = spec.Convergence()
	opts.OnProgress = func(p fit.Progress) {
		jm.UpdateJob(jobID, func(j *Job) {
			j.Restarts = p.Restart
			j.Evaluations = p.Evaluations
			j.BestCost = p.BestCost
			j.BestParams = p.Best
		})
		if trace != nil {
			entry := store.TraceEntry{
				Restart:     p.Restart,
				Evaluations: p.Evaluations,
				Cost:        p.BestCost,
				Timestamp:   time.Now(),
				Best:        p.Best,
			}
			if err := trace.Write(entry); err != nil {
				slog.Warn("Failed to write trace entry", "job_id", jobID, "error", err)
			}
		}
	}

	summary, err := fit.Run(ctx, obj, optimizer, set, opts)

	close(progressDone)
	close(checkpointDone)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Keep the incumbent so partial results stay queryable
			if summary != nil {
				jm.UpdateJob(jobID, func(j *Job) {
					j.BestParams = summary.BestParams
					j.BestCost = summary.BestCost
					j.Evaluations = summary.Evaluations
				})
			}
			markJobCancelled(jm, jobID)
			return err
		}
		markJobFailed(jm, jobID, err)
		return err
	}

	// Update job with results
	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.BestParams = summary.BestParams
		j.BestCost = summary.BestCost
		j.InitialCost = summary.InitialCost
		j.Restarts = summary.Restarts
		j.Evaluations = summary.Evaluations
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	// Compute throughput
	eps := float64(0)
	if elapsed.Seconds() > 0 {
		eps = float64(summary.Evaluations) / elapsed.Seconds()
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"initial_cost", summary.InitialCost,
		"best_cost", summary.BestCost,
		"evals_per_second", eps,
	)

	// Save a final checkpoint so the job can be resumed or inspected later
	if checkpointStore != nil {
		if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
			slog.Warn("Failed to save final checkpoint", "job_id", jobID, "error", err)
		}
	}

	// Broadcast final completion event
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:       jobID,
		State:       StateCompleted,
		Restarts:    summary.Restarts,
		Evaluations: summary.Evaluations,
		BestCost:    summary.BestCost,
		EPS:         eps,
		Timestamp:   time.Now(),
	})

	return nil
}

// monitorProgress periodically broadcasts progress events during a fit
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, startTime time.Time, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond) // Throttle to 2 updates per second
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Get current job state
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}

			elapsed := time.Since(startTime).Seconds()

			var eps float64
			if elapsed > 0 && job.Evaluations > 0 {
				eps = float64(job.Evaluations) / elapsed
			}

			// Broadcast progress event
			jm.broadcaster.Broadcast(ProgressEvent{
				JobID:       jobID,
				State:       job.State,
				Restarts:    job.Restarts,
				Evaluations: job.Evaluations,
				BestCost:    job.BestCost,
				EPS:         eps,
				Timestamp:   time.Now(),
			})
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}

// monitorCheckpoints periodically saves checkpoints during a fit
func monitorCheckpoints(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string, done chan struct{}) {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}

	interval := time.Duration(job.Config.CheckpointInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Save checkpoint
			if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
				slog.Error("Failed to save checkpoint", "job_id", jobID, "error", err)
			}
		}
	}
}

// saveCheckpoint saves a checkpoint for the given job
func saveCheckpoint(jm *JobManager, checkpointStore store.Store, jobID string) error {
	// Get current job state
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	// Skip if no best params yet
	if len(job.BestParams) == 0 {
		slog.Debug("Skipping checkpoint, no best params yet", "job_id", jobID)
		return nil
	}

	// Create checkpoint
	checkpoint := store.NewCheckpoint(
		jobID,
		job.BestParams,
		job.BestCost,
		job.InitialCost,
		job.Restarts,
		job.Evaluations,
		job.Config,
	)

	// Save checkpoint metadata
	if err := checkpointStore.SaveCheckpoint(jobID, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	slog.Info("Checkpoint saved",
		"job_id", jobID,
		"restart", job.Restarts,
		"best_cost", job.BestCost,
	)

	return nil
}
