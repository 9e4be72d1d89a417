package engine

import (
	"runtime"

	"go.uber.org/zap"

	"upon/internal/trace"
)

const (
	DefaultMaxCycles    = 100_000
	DefaultMaxInstances = 10_000
)

// Output is an emission from a root connector_out that no connection routes.
type Output struct {
	Cycle     int    `json:"cycle"`
	Connector string `json:"connector"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithSink(s trace.Sink) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sink = s
		}
	}
}

// WithMaxCycles bounds the global clock. Zero or less disables the limit.
func WithMaxCycles(n int) Option {
	return func(o *Orchestrator) { o.maxCycles = n }
}

// WithMaxInstances bounds the number of live instances, the root included.
// Zero or less disables the limit.
func WithMaxInstances(n int) Option {
	return func(o *Orchestrator) { o.maxInstances = n }
}

// WithWorkers sets how many instances may step concurrently.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithOutputHandler registers fn to receive every Output as it is produced.
// fn runs on the goroutine calling Step or Run.
func WithOutputHandler(fn func(Output)) Option {
	return func(o *Orchestrator) { o.onOutput = fn }
}

func defaultWorkers() int { return runtime.GOMAXPROCS(0) }
