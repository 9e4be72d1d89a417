package value

import "errors"

var (
	ErrUnknownType    = errors.New("unknown value type")
	ErrUnknownOp      = errors.New("unknown operation")
	ErrUnsupported    = errors.New("operation not supported for type")
	ErrDivideByZero   = errors.New("integer divide by zero")
	ErrMissingOperand = errors.New("missing operand")
)
