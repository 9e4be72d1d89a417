package engine

import (
	"errors"
	"fmt"

	"upon/internal/value"
)

var (
	ErrUnknownComponent = errors.New("unknown component")
	ErrUnknownInstance  = errors.New("unknown instance")
	ErrUnknownConnector = errors.New("unknown connector")
	ErrCycleLimit       = errors.New("cycle limit exceeded")
	ErrInstanceLimit    = errors.New("instance limit exceeded")
)

// OperationError reports an operation cell that could not apply its operation.
type OperationError struct {
	Instance string
	Node     string
	Op       value.Operation
	Err      error
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("instance %q cell %q: %s: %v", e.Instance, e.Node, e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
