package runstore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"upon/internal/engine"
)

type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// Run is the persistent record of one orchestrator run.
//
// outputs is always an array and end_time is null until the run finishes.
type Run struct {
	RunID       string          `json:"run_id"`
	Definition  string          `json:"definition"`
	LibraryHash string          `json:"library_hash"`
	Root        string          `json:"root"`
	Signals     []string        `json:"signals"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     *time.Time      `json:"end_time"`
	Status      RunStatus       `json:"status"`
	Cycles      int             `json:"cycles"`
	Instances   int             `json:"instances"`
	Outputs     []engine.Output `json:"outputs"`
	TraceHash   string          `json:"trace_hash,omitempty"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if strings.TrimSpace(r.LibraryHash) == "" {
		errs = append(errs, errors.New("library_hash is required"))
	}
	if strings.TrimSpace(r.Root) == "" {
		errs = append(errs, errors.New("root is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	switch r.Status {
	case StatusRunning:
		if r.EndTime != nil {
			errs = append(errs, errors.New("end_time must be null while running"))
		}
	case StatusSucceeded, StatusFailed:
		if r.EndTime == nil {
			errs = append(errs, fmt.Errorf("end_time is required for status %q", r.Status))
		} else if r.EndTime.Before(r.StartTime) {
			errs = append(errs, errors.New("end_time must not precede start_time"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if r.Cycles < 0 {
		errs = append(errs, errors.New("cycles must be >= 0"))
	}
	if r.Instances < 0 {
		errs = append(errs, errors.New("instances must be >= 0"))
	}
	if r.Outputs == nil {
		errs = append(errs, errors.New("outputs must be an array (not null)"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

type FailureClass string

const (
	FailureClassDefinition FailureClass = "definition"
	FailureClassLimit      FailureClass = "limit"
	FailureClassOperation  FailureClass = "operation"
	FailureClassCancelled  FailureClass = "cancelled"
	FailureClassSystem     FailureClass = "system"
)

// Failure is a recorded run termination reason.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	Instance     *string      `json:"instance,omitempty"`
	Node         *string      `json:"node,omitempty"`
	ErrorCode    string       `json:"error_code"`
	ErrorMessage string       `json:"error_message"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassDefinition, FailureClassLimit, FailureClassOperation, FailureClassCancelled, FailureClassSystem:
		// ok
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if f.Instance != nil && strings.TrimSpace(*f.Instance) == "" {
		errs = append(errs, errors.New("instance must not be empty when provided"))
	}
	if f.Node != nil && strings.TrimSpace(*f.Node) == "" {
		errs = append(errs, errors.New("node must not be empty when provided"))
	}
	if strings.TrimSpace(f.ErrorCode) == "" {
		errs = append(errs, errors.New("error_code is required"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
