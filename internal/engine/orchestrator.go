package engine

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"upon/internal/component"
	"upon/internal/trace"
)

// Result summarizes a completed run.
type Result struct {
	LibraryHash component.Hash `json:"libraryHash"`
	Root        string         `json:"root"`
	Cycles      int            `json:"cycles"`
	Outputs     []Output       `json:"outputs"`
	Instances   int            `json:"instances"`
}

// Orchestrator drives a root instance and its lazily created children in
// global clock cycles.
//
// Determinism:
//   - Instances step independently and may run on any worker.
//   - Every cross-instance effect (child creation, connector routing,
//     outputs) and every trace event is applied after the step barrier, in
//     instance path order and then in the order each instance reported it.
//     The sink is only called from the goroutine running Step.
//
// An Orchestrator is not safe for concurrent use.
type Orchestrator struct {
	lib    *component.Library
	root   *Instance
	byPath map[string]*Instance
	order  []*Instance // creation order

	clock   int
	outputs []Output

	logger       *zap.Logger
	sink         trace.Sink
	maxCycles    int
	maxInstances int
	workers      int
	onOutput     func(Output)
}

// New creates an orchestrator whose root instance runs the named component.
func New(lib *component.Library, root string, opts ...Option) (*Orchestrator, error) {
	if lib == nil {
		return nil, fmt.Errorf("nil library")
	}
	c, ok := lib.Component(root)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, root)
	}

	o := &Orchestrator{
		lib:          lib,
		byPath:       make(map[string]*Instance),
		logger:       zap.NewNop(),
		sink:         trace.NopSink{},
		maxCycles:    DefaultMaxCycles,
		maxInstances: DefaultMaxInstances,
		workers:      defaultWorkers(),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.root = newInstance(c, RootPath, nil, -1)
	o.register(o.root, c.Name())
	return o, nil
}

// Library returns the component library.
func (o *Orchestrator) Library() *component.Library { return o.lib }

// Root returns the root instance.
func (o *Orchestrator) Root() *Instance { return o.root }

// Clock returns the number of global cycles executed so far.
func (o *Orchestrator) Clock() int { return o.clock }

// Outputs returns the outputs produced so far.
func (o *Orchestrator) Outputs() []Output {
	out := make([]Output, len(o.outputs))
	copy(out, o.outputs)
	return out
}

// Instance looks up an instance by path ("root", "root/child", ...).
func (o *Orchestrator) Instance(path string) (*Instance, bool) {
	in, ok := o.byPath[path]
	return in, ok
}

// Instances returns every live instance in path order.
func (o *Orchestrator) Instances() []*Instance {
	out := make([]*Instance, len(o.order))
	copy(out, o.order)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Signal stages a connector_in of the root instance.
func (o *Orchestrator) Signal(connector string) error {
	return o.SignalInstance(RootPath, connector)
}

// SignalInstance stages a connector_in of an existing instance.
func (o *Orchestrator) SignalInstance(path, connector string) error {
	in, ok := o.byPath[path]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownInstance, path)
	}
	if err := in.SignalConnector(connector); err != nil {
		return err
	}
	trace.SafeRecord(o.sink, trace.Event{
		Kind:     trace.EventConnectorSignaled,
		Cycle:    o.clock,
		Instance: path,
		Node:     connector,
		Cause:    "external",
	})
	return nil
}

// Active reports whether any instance has staged work.
func (o *Orchestrator) Active() bool {
	for _, in := range o.order {
		if in.Active() {
			return true
		}
	}
	return false
}

// Step advances the global clock by one cycle.
//
// It returns whether any instance is still active afterwards. Step on a
// quiescent orchestrator is a no-op that returns false.
func (o *Orchestrator) Step(ctx context.Context) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	active := o.activeInstances()
	if len(active) == 0 {
		return false, nil
	}
	if o.maxCycles > 0 && o.clock >= o.maxCycles {
		o.logger.Warn("cycle limit reached", zap.Int("max_cycles", o.maxCycles))
		return false, fmt.Errorf("%w: %d", ErrCycleLimit, o.maxCycles)
	}

	o.clock++
	cycle := o.clock
	results := make([]StepResult, len(active))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, in := range active {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := in.Step()
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		o.logger.Debug("cycle failed", zap.Int("cycle", cycle), zap.Error(err))
		return false, err
	}

	for i, in := range active {
		for _, f := range results[i].Fired {
			trace.SafeRecord(o.sink, trace.Event{
				Kind:     trace.EventNodeFired,
				Cycle:    cycle,
				Instance: in.Path,
				Node:     in.comp.NodeAt(f.Node).Name,
				Signals:  f.Signals,
			})
		}
	}
	for i, in := range active {
		for _, out := range results[i].Emitted {
			if err := o.route(in, out); err != nil {
				return false, err
			}
		}
	}

	o.logger.Debug("cycle complete",
		zap.Int("cycle", cycle),
		zap.Int("stepped", len(active)),
		zap.Int("instances", len(o.order)),
	)
	return o.Active(), nil
}

// Run steps until no instance is active.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := o.clock
	for {
		more, err := o.Step(ctx)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	o.logger.Info("run complete",
		zap.String("root", o.root.comp.Name()),
		zap.Int("cycles", o.clock-start),
		zap.Int("clock", o.clock),
		zap.Int("outputs", len(o.outputs)),
	)
	return o.Result(), nil
}

// Result summarizes the orchestrator state. Cycles is the global clock.
func (o *Orchestrator) Result() *Result {
	return &Result{
		LibraryHash: o.lib.Hash(),
		Root:        o.root.comp.Name(),
		Cycles:      o.clock,
		Outputs:     o.Outputs(),
		Instances:   len(o.order),
	}
}

func (o *Orchestrator) activeInstances() []*Instance {
	var active []*Instance
	for _, in := range o.order {
		if in.Active() {
			active = append(active, in)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Path < active[j].Path })
	return active
}

// route delivers one connector_out emission of in.
func (o *Orchestrator) route(in *Instance, out int) error {
	name := in.comp.NodeAt(out).Name
	trace.SafeRecord(o.sink, trace.Event{
		Kind:     trace.EventConnectorEmitted,
		Cycle:    o.clock,
		Instance: in.Path,
		Node:     name,
	})
	cause := in.Path + ":" + name
	routed := false

	// Down: connector_out -> instance node, naming the child's connector_in.
	for _, e := range in.comp.Outgoing(out) {
		if e.Kind != component.EdgeConnection {
			continue
		}
		child, err := o.child(in, e.ToIndex())
		if err != nil {
			return err
		}
		o.deliver(child, e.Connector, cause)
		routed = true
	}

	// Up: the parent's instance node -> connector_in edges naming this connector_out.
	if p := in.parent; p != nil {
		for _, e := range p.comp.Outgoing(in.parentNode) {
			if e.Kind != component.EdgeConnection || e.Connector != name {
				continue
			}
			o.deliver(p, p.comp.NodeAt(e.ToIndex()).Name, cause)
			routed = true
		}
	}

	if routed {
		return nil
	}
	if in.parent != nil {
		o.logger.Debug("unrouted emission dropped", zap.String("instance", in.Path), zap.String("connector", name))
		return nil
	}

	output := Output{Cycle: o.clock, Connector: name}
	o.outputs = append(o.outputs, output)
	trace.SafeRecord(o.sink, trace.Event{
		Kind:     trace.EventOutputEmitted,
		Cycle:    o.clock,
		Instance: in.Path,
		Node:     name,
	})
	if o.onOutput != nil {
		o.onOutput(output)
	}
	return nil
}

// deliver stages a connector_in the library has already validated.
func (o *Orchestrator) deliver(in *Instance, connector, cause string) {
	i, _ := in.comp.ConnectorIn(connector)
	in.stage(i)
	trace.SafeRecord(o.sink, trace.Event{
		Kind:     trace.EventConnectorSignaled,
		Cycle:    o.clock,
		Instance: in.Path,
		Node:     connector,
		Cause:    cause,
	})
}

// child returns the instance behind node index i of parent, creating it on
// first use.
func (o *Orchestrator) child(parent *Instance, i int) (*Instance, error) {
	if c, ok := parent.children[i]; ok {
		return c, nil
	}
	if o.maxInstances > 0 && len(o.order) >= o.maxInstances {
		o.logger.Warn("instance limit reached", zap.Int("max_instances", o.maxInstances))
		return nil, fmt.Errorf("%w: %d", ErrInstanceLimit, o.maxInstances)
	}
	n := parent.comp.NodeAt(i)
	c, ok := o.lib.Component(n.Component)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, n.Component)
	}
	in := newInstance(c, parent.Path+"/"+n.Name, parent, i)
	parent.children[i] = in
	o.register(in, c.Name())
	return in, nil
}

func (o *Orchestrator) register(in *Instance, componentName string) {
	o.byPath[in.Path] = in
	o.order = append(o.order, in)
	trace.SafeRecord(o.sink, trace.Event{
		Kind:     trace.EventInstanceCreated,
		Cycle:    o.clock,
		Instance: in.Path,
		Cause:    componentName,
	})
	o.logger.Debug("instance created",
		zap.String("path", in.Path),
		zap.String("component", componentName),
		zap.String("id", in.ID.String()),
	)
}
