package component

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidComponent = errors.New("invalid component")
	ErrInvalidLibrary   = errors.New("invalid component library")
)

// GraphError wraps deterministic validation failures.
type GraphError struct {
	Kind      error
	Component string
	Msg       string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	prefix := e.Kind.Error()
	if e.Component != "" {
		prefix = fmt.Sprintf("%s %q", prefix, e.Component)
	}
	if e.Msg == "" {
		return prefix
	}
	return prefix + ": " + e.Msg
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(component, format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidComponent, Component: component, Msg: fmt.Sprintf(format, args...)}
}

func libraryf(component, format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidLibrary, Component: component, Msg: fmt.Sprintf(format, args...)}
}
