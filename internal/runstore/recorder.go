package runstore

import (
	"errors"
	"fmt"
	"time"

	"upon/internal/engine"
	"upon/internal/trace"
)

// Recorder drives the lifecycle of a persisted run: start, then exactly one
// of Complete or Fail.
type Recorder struct {
	Store *Store
	// Now defaults to time.Now; tests pin it.
	Now func() time.Time
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// Start assigns a run ID and start time when missing and saves the run as running.
func (r *Recorder) Start(run Run) (Run, error) {
	if r == nil || r.Store == nil {
		return Run{}, errors.New("Store is required")
	}
	if run.RunID == "" {
		run.RunID = NewRunID()
	}
	if run.StartTime.IsZero() {
		run.StartTime = r.now()
	}
	run.Status = StatusRunning
	run.EndTime = nil
	if err := r.Store.SaveRun(run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// Complete records a successful run with its final snapshot and trace.
func (r *Recorder) Complete(run Run, res *engine.Result, snap engine.Snapshot, tr trace.ExecutionTrace) (Run, error) {
	if r == nil || r.Store == nil {
		return Run{}, errors.New("Store is required")
	}
	if res == nil {
		return Run{}, errors.New("result is required")
	}
	run.Cycles = res.Cycles
	run.Instances = res.Instances
	run.Outputs = res.Outputs
	return r.finish(run, StatusSucceeded, snap, tr)
}

// Fail records a failed run. res carries the orchestrator state at the point
// of failure and may be nil when the run never started. A zero trace is not
// persisted.
func (r *Recorder) Fail(run Run, res *engine.Result, snap engine.Snapshot, tr trace.ExecutionTrace, cause error) (Run, error) {
	if r == nil || r.Store == nil {
		return Run{}, errors.New("Store is required")
	}
	if res != nil {
		run.Cycles = res.Cycles
		run.Instances = res.Instances
		run.Outputs = res.Outputs
	}
	if err := r.Store.SaveFailure(run.RunID, Classify(cause)); err != nil {
		return Run{}, err
	}
	return r.finish(run, StatusFailed, snap, tr)
}

func (r *Recorder) finish(run Run, status RunStatus, snap engine.Snapshot, tr trace.ExecutionTrace) (Run, error) {
	if err := r.Store.SaveSnapshot(run.RunID, snap); err != nil {
		return Run{}, err
	}
	if !emptyTrace(tr) {
		h, err := tr.Hash()
		if err != nil {
			return Run{}, fmt.Errorf("hash trace: %w", err)
		}
		if err := r.Store.SaveTrace(run.RunID, tr); err != nil {
			return Run{}, err
		}
		run.TraceHash = h
	}
	end := r.now()
	if end.Before(run.StartTime) {
		end = run.StartTime
	}
	run.EndTime = &end
	run.Status = status
	if err := r.Store.SaveRun(run); err != nil {
		return Run{}, fmt.Errorf("finish run: %w", err)
	}
	return run, nil
}

func emptyTrace(tr trace.ExecutionTrace) bool {
	return tr.LibraryHash == "" && tr.Root == "" && len(tr.Events) == 0
}
