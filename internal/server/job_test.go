package server

import (
	"context"
	"testing"
	"time"
)

func TestJobManager_CreateJob(t *testing.T) {
	jm := NewJobManager()

	config := JobConfig{
		DataPath:   "test.csv",
		Method:     "lbfgsb",
		Metric:     "sse",
		MaxIters:   100,
		Multistart: 3,
		Seed:       42,
	}

	job := jm.CreateJob(config)

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}

	if job.State != StatePending {
		t.Errorf("Initial state should be pending, got %s", job.State)
	}

	if job.Config.DataPath != "test.csv" {
		t.Errorf("Config not set correctly")
	}
}

func TestJobManager_GetJob(t *testing.T) {
	jm := NewJobManager()

	config := JobConfig{DataPath: "test.csv", Method: "lbfgsb"}
	job := jm.CreateJob(config)

	retrieved, exists := jm.GetJob(job.ID)
	if !exists {
		t.Error("Job should exist")
	}

	if retrieved.ID != job.ID {
		t.Error("Retrieved wrong job")
	}

	_, exists = jm.GetJob("nonexistent")
	if exists {
		t.Error("Should not find nonexistent job")
	}
}

func TestJobManager_ListJobs(t *testing.T) {
	jm := NewJobManager()

	if len(jm.ListJobs()) != 0 {
		t.Error("Should start with no jobs")
	}

	jm.CreateJob(JobConfig{DataPath: "pulse1.csv"})
	jm.CreateJob(JobConfig{DataPath: "pulse2.csv"})

	jobs := jm.ListJobs()
	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}
}

func TestJobManager_UpdateJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(JobConfig{DataPath: "test.csv"})

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Restarts = 4
		j.Evaluations = 2500
		j.BestCost = 123.45
	})

	if err != nil {
		t.Errorf("Update should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateRunning {
		t.Error("State should be updated")
	}
	if updated.Restarts != 4 {
		t.Error("Restarts should be updated")
	}
	if updated.Evaluations != 2500 {
		t.Error("Evaluations should be updated")
	}
	if updated.BestCost != 123.45 {
		t.Error("BestCost should be updated")
	}

	err = jm.UpdateJob("nonexistent", func(j *Job) {})
	if err == nil {
		t.Error("Update of nonexistent job should fail")
	}
}

func TestJobManager_GetJobReturnsSnapshot(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(JobConfig{DataPath: "test.csv"})

	snapshot, _ := jm.GetJob(job.ID)
	snapshot.State = StateFailed
	snapshot.BestCost = 999

	fresh, _ := jm.GetJob(job.ID)
	if fresh.State != StatePending {
		t.Errorf("Mutating a snapshot should not affect the stored job, got state %s", fresh.State)
	}
	if fresh.BestCost != 0 {
		t.Errorf("Mutating a snapshot should not affect the stored job, got cost %f", fresh.BestCost)
	}
}

func TestJobManager_GetRunningJobs(t *testing.T) {
	jm := NewJobManager()

	running := jm.CreateJob(JobConfig{DataPath: "a.csv"})
	jm.CreateJob(JobConfig{DataPath: "b.csv"})
	done := jm.CreateJob(JobConfig{DataPath: "c.csv"})

	jm.UpdateJob(running.ID, func(j *Job) { j.State = StateRunning })
	jm.UpdateJob(done.ID, func(j *Job) { j.State = StateCompleted })

	got := jm.GetRunningJobs()
	if len(got) != 1 {
		t.Fatalf("Expected 1 running job, got %d", len(got))
	}
	if got[0].ID != running.ID {
		t.Error("Wrong job reported as running")
	}
}

func TestJobManager_Cancel(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(JobConfig{DataPath: "test.csv"})

	ctx, cancel := context.WithCancel(context.Background())
	jm.RegisterCancel(job.ID, cancel)

	if !jm.Cancel(job.ID) {
		t.Error("Cancel should report true for a registered job")
	}

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("Cancel should have cancelled the job context")
	}

	if jm.Cancel(job.ID) {
		t.Error("Second cancel should report false")
	}

	if jm.Cancel("nonexistent") {
		t.Error("Cancel of unknown job should report false")
	}
}

func TestJobManager_CancelAll(t *testing.T) {
	jm := NewJobManager()

	var ctxs []context.Context
	for i := 0; i < 3; i++ {
		job := jm.CreateJob(JobConfig{DataPath: "test.csv"})
		ctx, cancel := context.WithCancel(context.Background())
		jm.RegisterCancel(job.ID, cancel)
		ctxs = append(ctxs, ctx)
	}

	jm.CancelAll()

	for i, ctx := range ctxs {
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Errorf("Context %d should be cancelled", i)
		}
	}
}

func TestJobManager_ThreadSafety(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(JobConfig{DataPath: "test.csv"})

	// Simulate concurrent updates
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(restart int) {
			jm.UpdateJob(job.ID, func(j *Job) {
				j.Restarts = restart
				time.Sleep(1 * time.Millisecond)
			})
			done <- true
		}(i)
	}

	// Wait for all updates
	for i := 0; i < 10; i++ {
		<-done
	}

	// Should not crash - actual value depends on race
	_, exists := jm.GetJob(job.ID)
	if !exists {
		t.Error("Job should still exist after concurrent updates")
	}
}
