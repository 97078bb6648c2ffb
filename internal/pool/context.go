// Package pool fits and applies the consensus models of one run.
package pool

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunContext carries the state shared by the stages of one run.
type RunContext struct {
	// RunID namespaces everything the run publishes
	RunID string

	// RunDir is the working directory of the run (data/, estimators/, pool/, report/)
	RunDir string

	// TrainedDir holds the fitted pool of a previous run (predict mode)
	TrainedDir string

	Logger *zap.Logger

	started time.Time
	elapsed time.Duration
}

// NewRunContext creates a context with a fresh run id.
func NewRunContext(runDir, trainedDir string, logger *zap.Logger) *RunContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &RunContext{
		RunID:      id,
		RunDir:     runDir,
		TrainedDir: trainedDir,
		Logger:     logger.With(zap.String("run_id", id)),
	}
}

// StartTimer starts (or restarts) the run timer.
func (rc *RunContext) StartTimer() {
	rc.started = time.Now()
	rc.elapsed = 0
}

// StopTimer stops the timer and returns the elapsed time.
func (rc *RunContext) StopTimer() time.Duration {
	if !rc.started.IsZero() {
		rc.elapsed = time.Since(rc.started)
		rc.started = time.Time{}
	}
	return rc.elapsed
}

// Elapsed returns the time measured so far.
func (rc *RunContext) Elapsed() time.Duration {
	if !rc.started.IsZero() {
		return time.Since(rc.started)
	}
	return rc.elapsed
}
