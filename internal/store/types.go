package store

import (
	"fmt"
	"math"
	"time"
)

// JobConfig holds configuration for a fit job (checkpoint copy).
// This avoids import cycles with server package.
type JobConfig struct {
	DataPath           string      `json:"dataPath"`
	Method             string      `json:"method"` // lbfgsb, bfgs, lbfgs, cg, neldermead, mayfly
	Metric             string      `json:"metric,omitempty"`
	MaxIters           int         `json:"maxIters,omitempty"`
	PopSize            int         `json:"popSize,omitempty"`
	Seed               int64       `json:"seed,omitempty"`
	Multistart         int         `json:"multistart,omitempty"`
	OCV                float64     `json:"ocv,omitempty"`
	Params             []ParamSpec `json:"params"`
	CheckpointInterval int         `json:"checkpointInterval,omitempty"` // Checkpoint every N seconds (0 = disabled)
}

// ParamSpec mirrors one parameter definition for persistence. Bounds and
// initial value are pointers because JSON cannot carry the ±Inf and NaN
// markers the in-memory form uses for "unset".
type ParamSpec struct {
	Name    string   `json:"name"`
	Lower   *float64 `json:"lower,omitempty"`
	Upper   *float64 `json:"upper,omitempty"`
	Initial *float64 `json:"initial,omitempty"`
}

// Checkpoint represents a saved fit state that can be resumed later.
// All fields are serialized to JSON for persistence.
//
// Optimizer State Handling:
//
// The checkpoint saves the BEST PARAMETERS found so far, but does NOT save
// the internal backend state (quasi-Newton memory, swarm positions, etc.).
//
// SAVED STATE:
//   - BestParams: The parameter vector that achieved the lowest cost
//   - BestCost: The cost value achieved by BestParams
//   - InitialCost: Starting cost for improvement tracking
//   - Restart: How many restarts have completed
//   - Evaluations: Total objective evaluations so far
//   - Config: Job configuration (dataset, method, parameter specs)
//
// REINITIALIZED ON RESUME:
//   - Backend internals: curvature pairs, populations, velocities
//   - Random state: a seed can be reused for reproducible draws
//
// RESUME STRATEGY:
// A resumed fit warm-starts from BestParams, so the best cost can only
// improve. It is not a bit-exact continuation of the interrupted run;
// saving backend internals would tie the format to each backend.
type Checkpoint struct {
	// JobID is the unique identifier for this fit job
	JobID string `json:"jobId"`

	// BestParams is the parameter vector, one value per Config.Params
	// entry in order, that produced the best (lowest) cost so far
	BestParams []float64 `json:"bestParams"`

	// BestCost is the cost value achieved by BestParams
	BestCost float64 `json:"bestCost"`

	// InitialCost is the cost at the starting point, for tracking improvement
	InitialCost float64 `json:"initialCost"`

	// Restart is the number of completed restarts when this checkpoint was created
	Restart int `json:"restart"`

	// Evaluations counts objective evaluations up to this checkpoint
	Evaluations int64 `json:"evaluations"`

	// Timestamp records when this checkpoint was created
	Timestamp time.Time `json:"timestamp"`

	// Config holds the job configuration, needed for validation during resume.
	// We ensure that resumed jobs use compatible settings (same dataset,
	// method, parameters).
	Config JobConfig `json:"config"`
}

// CheckpointInfo contains metadata about a checkpoint without the full
// parameter data. Used for listing checkpoints without loading vectors.
type CheckpointInfo struct {
	// JobID is the unique identifier for this checkpoint
	JobID string `json:"jobId"`

	// BestCost is the cost achieved at the time of checkpointing
	BestCost float64 `json:"bestCost"`

	// Restart is the restart count at checkpoint time
	Restart int `json:"restart"`

	// Evaluations counts objective evaluations at checkpoint time
	Evaluations int64 `json:"evaluations"`

	// Timestamp records when this checkpoint was created
	Timestamp time.Time `json:"timestamp"`

	// Method is the optimiser backend
	Method string `json:"method"`

	// Params is the number of fitted parameters
	Params int `json:"params"`

	// DataPath is the dataset path
	DataPath string `json:"dataPath"`
}

// NewCheckpoint creates a checkpoint from job state.
// This is a helper for converting runtime job state to a persistable checkpoint.
func NewCheckpoint(jobID string, bestParams []float64, bestCost, initialCost float64, restart int, evaluations int64, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:       jobID,
		BestParams:  bestParams,
		BestCost:    bestCost,
		InitialCost: initialCost,
		Restart:     restart,
		Evaluations: evaluations,
		Timestamp:   time.Now(),
		Config:      config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo (metadata only).
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:       c.JobID,
		BestCost:    c.BestCost,
		Restart:     c.Restart,
		Evaluations: c.Evaluations,
		Timestamp:   c.Timestamp,
		Method:      c.Config.Method,
		Params:      len(c.Config.Params),
		DataPath:    c.Config.DataPath,
	}
}

// Validate checks if the checkpoint has valid data.
// Returns an error if any required field is missing or invalid.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.BestParams) == 0 {
		return &ValidationError{Field: "BestParams", Reason: "cannot be empty"}
	}
	if math.IsNaN(c.BestCost) || math.IsInf(c.BestCost, 0) {
		return &ValidationError{Field: "BestCost", Reason: "must be finite"}
	}
	if c.BestCost < 0 {
		return &ValidationError{Field: "BestCost", Reason: "cannot be negative"}
	}
	if math.IsNaN(c.InitialCost) || math.IsInf(c.InitialCost, 0) {
		return &ValidationError{Field: "InitialCost", Reason: "must be finite"}
	}
	if c.InitialCost < 0 {
		return &ValidationError{Field: "InitialCost", Reason: "cannot be negative"}
	}
	if c.Restart < 0 {
		return &ValidationError{Field: "Restart", Reason: "cannot be negative"}
	}
	if c.Evaluations < 0 {
		return &ValidationError{Field: "Evaluations", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.DataPath == "" {
		return &ValidationError{Field: "Config.DataPath", Reason: "cannot be empty"}
	}
	if c.Config.Method == "" {
		return &ValidationError{Field: "Config.Method", Reason: "cannot be empty"}
	}
	if len(c.Config.Params) == 0 {
		return &ValidationError{Field: "Config.Params", Reason: "cannot be empty"}
	}
	// Verify BestParams length matches the parameter specs
	if len(c.BestParams) != len(c.Config.Params) {
		return &ValidationError{
			Field:  "BestParams",
			Reason: fmt.Sprintf("length mismatch: %d values for %d parameters", len(c.BestParams), len(c.Config.Params)),
		}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if this checkpoint can be resumed with the given config.
// Returns an error if the configs are incompatible.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.DataPath != config.DataPath {
		return &CompatibilityError{
			Field:    "DataPath",
			Expected: c.Config.DataPath,
			Actual:   config.DataPath,
		}
	}
	if c.Config.Method != config.Method {
		return &CompatibilityError{
			Field:    "Method",
			Expected: c.Config.Method,
			Actual:   config.Method,
		}
	}
	if len(c.Config.Params) != len(config.Params) {
		return &CompatibilityError{
			Field:    "Params",
			Expected: fmt.Sprintf("%d parameters", len(c.Config.Params)),
			Actual:   fmt.Sprintf("%d parameters", len(config.Params)),
		}
	}
	for i, p := range c.Config.Params {
		if p.Name != config.Params[i].Name {
			return &CompatibilityError{
				Field:    fmt.Sprintf("Params[%d]", i),
				Expected: p.Name,
				Actual:   config.Params[i].Name,
			}
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
