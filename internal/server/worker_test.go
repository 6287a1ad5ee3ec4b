package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/cellfit/internal/cell"
	"github.com/cwbudde/cellfit/internal/fit"
	"github.com/cwbudde/cellfit/internal/store"
)

func TestRunJob_Success(t *testing.T) {
	// Create temporary test dataset
	tmpDir := t.TempDir()
	dataPath := filepath.Join(tmpDir, "pulse.csv")
	createTestDataset(t, dataPath, 60)

	jm := NewJobManager()
	config := JobConfig{
		DataPath:   dataPath,
		Method:     "lbfgsb",
		Metric:     "sse",
		MaxIters:   50,
		Multistart: 1,
		Seed:       42,
		Params:     testParamSpecs(),
	}

	job := jm.CreateJob(config)

	ctx := context.Background()
	err := runJob(ctx, jm, nil, job.ID)

	if err != nil {
		t.Errorf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Errorf("Job should be completed, got %s", updated.State)
	}

	if len(updated.BestParams) != 3 {
		t.Errorf("Expected 3 params, got %d", len(updated.BestParams))
	}

	if updated.InitialCost == 0 {
		t.Error("InitialCost should be set")
	}

	if updated.BestCost > updated.InitialCost {
		t.Errorf("Fit should not end worse than it started: %f > %f",
			updated.BestCost, updated.InitialCost)
	}

	if updated.Evaluations == 0 {
		t.Error("Evaluations should be counted")
	}

	if updated.EndTime == nil {
		t.Error("EndTime should be set")
	}
}

func TestRunJob_InvalidDataset(t *testing.T) {
	jm := NewJobManager()
	config := JobConfig{
		DataPath:   "/nonexistent/pulse.csv",
		Method:     "lbfgsb",
		MaxIters:   50,
		Multistart: 1,
		Seed:       42,
		Params:     testParamSpecs(),
	}

	job := jm.CreateJob(config)

	ctx := context.Background()
	err := runJob(ctx, jm, nil, job.ID)

	if err == nil {
		t.Error("runJob should fail with invalid dataset path")
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateFailed {
		t.Errorf("Job should be failed, got %s", updated.State)
	}

	if updated.Error == "" {
		t.Error("Error message should be set")
	}
}

func TestRunJob_UnknownJob(t *testing.T) {
	jm := NewJobManager()

	err := runJob(context.Background(), jm, nil, "nonexistent")
	if err == nil {
		t.Error("runJob should fail for an unknown job ID")
	}
}

func TestRunJob_PersistsCheckpointAndTrace(t *testing.T) {
	tmpDir := t.TempDir()
	dataPath := filepath.Join(tmpDir, "pulse.csv")
	createTestDataset(t, dataPath, 60)

	checkpointStore, err := store.NewFSStore(filepath.Join(tmpDir, "data"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	jm := NewJobManager()
	config := JobConfig{
		DataPath:   dataPath,
		Method:     "lbfgsb",
		Metric:     "sse",
		MaxIters:   50,
		Multistart: 2,
		Seed:       42,
		Params:     testParamSpecs(),
	}

	job := jm.CreateJob(config)

	if err := runJob(context.Background(), jm, checkpointStore, job.ID); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	checkpoint, err := checkpointStore.LoadCheckpoint(job.ID)
	if err != nil {
		t.Fatalf("Final checkpoint should exist: %v", err)
	}
	if len(checkpoint.BestParams) != 3 {
		t.Errorf("Checkpoint should carry 3 params, got %d", len(checkpoint.BestParams))
	}
	if checkpoint.Config.DataPath != dataPath {
		t.Error("Checkpoint should carry the job config")
	}

	reader, err := checkpointStore.ReadTrace(job.ID)
	if err != nil {
		t.Fatalf("Trace should exist: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read trace: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("Trace should have at least one entry")
	}
	last := entries[len(entries)-1]
	if last.Restart != 2 {
		t.Errorf("Last trace entry should come from restart 2, got %d", last.Restart)
	}
	if len(last.Best) != 3 {
		t.Errorf("Trace entries should carry the incumbent params, got %d values", len(last.Best))
	}
}

func TestRunJob_Cancellation(t *testing.T) {
	tmpDir := t.TempDir()
	dataPath := filepath.Join(tmpDir, "pulse.csv")
	createTestDataset(t, dataPath, 500)

	jm := NewJobManager()
	config := JobConfig{
		DataPath:   dataPath,
		Method:     "mayfly",
		MaxIters:   500,
		PopSize:    50,
		Multistart: 50, // Long-running job
		Seed:       42,
		Params:     testParamSpecs(),
	}

	job := jm.CreateJob(config)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		done <- runJob(ctx, jm, nil, job.ID)
	}()

	// Give it time to start
	time.Sleep(10 * time.Millisecond)

	// Cancel the job
	cancel()

	// Wait for completion
	err := <-done

	if err == nil {
		t.Error("runJob should return error when cancelled")
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCancelled {
		t.Errorf("Job should be cancelled, got %s", updated.State)
	}
}

// Helper function to synthesize a discharge-pulse dataset on disk
func createTestDataset(t *testing.T, path string, n int) {
	t.Helper()

	model := cell.NewThevenin(4.0)
	ts, amps, volts, err := model.Synthetic([]float64{0.05, 0.03, 2000}, n, 0.1, 1.0)
	if err != nil {
		t.Fatalf("Failed to synthesize dataset: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create dataset file: %v", err)
	}
	defer f.Close()

	ds := &fit.Dataset{Time: ts, Current: amps, Voltage: volts}
	if err := ds.WriteCSV(f); err != nil {
		t.Fatalf("Failed to write dataset: %v", err)
	}
}

func testParamSpecs() []store.ParamSpec {
	return []store.ParamSpec{
		{Name: "r0", Lower: fptr(1e-3), Upper: fptr(0.2), Initial: fptr(0.08)},
		{Name: "r1", Lower: fptr(1e-3), Upper: fptr(0.2), Initial: fptr(0.05)},
		{Name: "c1", Lower: fptr(100), Upper: fptr(10000), Initial: fptr(1500)},
	}
}

func fptr(v float64) *float64 { return &v }
