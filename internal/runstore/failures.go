package runstore

import (
	"context"
	"errors"

	"upon/internal/component"
	"upon/internal/engine"
	"upon/internal/loader"
	"upon/internal/value"
)

// Classify maps a run error onto the failure taxonomy.
//
// Unknown errors are classified as system failures.
func Classify(err error) Failure {
	if err == nil {
		return Failure{FailureClass: FailureClassSystem, ErrorCode: "NilError", ErrorMessage: "nil error"}
	}
	f := Failure{ErrorMessage: err.Error()}

	var opErr *engine.OperationError
	switch {
	case errors.As(err, &opErr):
		f.FailureClass = FailureClassOperation
		f.Instance = ptr(opErr.Instance)
		f.Node = ptr(opErr.Node)
		f.ErrorCode = operationCode(opErr.Err)
	case errors.Is(err, engine.ErrCycleLimit):
		f.FailureClass = FailureClassLimit
		f.ErrorCode = "CycleLimit"
	case errors.Is(err, engine.ErrInstanceLimit):
		f.FailureClass = FailureClassLimit
		f.ErrorCode = "InstanceLimit"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		f.FailureClass = FailureClassCancelled
		f.ErrorCode = "Cancelled"
	case errors.Is(err, loader.ErrInvalidDefinition),
		errors.Is(err, component.ErrInvalidComponent),
		errors.Is(err, component.ErrInvalidLibrary),
		errors.Is(err, engine.ErrUnknownComponent),
		errors.Is(err, engine.ErrUnknownConnector):
		f.FailureClass = FailureClassDefinition
		f.ErrorCode = "InvalidDefinition"
	default:
		f.FailureClass = FailureClassSystem
		f.ErrorCode = "UnknownError"
	}
	return f
}

func operationCode(err error) string {
	switch {
	case errors.Is(err, value.ErrDivideByZero):
		return "DivideByZero"
	case errors.Is(err, value.ErrMissingOperand):
		return "MissingOperand"
	default:
		return "OperationFailed"
	}
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
