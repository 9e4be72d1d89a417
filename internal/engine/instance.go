package engine

import (
	"fmt"

	"github.com/google/uuid"

	"upon/internal/component"
	"upon/internal/value"
)

// RootPath is the path of the root instance.
const RootPath = "root"

// Firing records one node that fired during a step and the signal mask it saw.
type Firing struct {
	Node    int
	Signals uint32
}

// StepResult is what an instance reports back after one cycle.
//
// Fired is in processing order. Emitted holds connector_out node indices in
// the order they were reached during propagation; each connector appears at
// most once per step.
type StepResult struct {
	Fired   []Firing
	Emitted []int
}

type nodeState struct {
	flags   NodeFlags
	signals uint32
}

// Instance is the runtime state of one component.
//
// An Instance is not safe for concurrent use. The orchestrator guarantees a
// single worker touches it during a step.
type Instance struct {
	ID   uuid.UUID
	Path string

	comp *component.Component

	parent     *Instance
	parentNode int // instance node index inside parent's component; -1 for root
	children   map[int]*Instance

	nodes []nodeState
	vars  []value.Value // indexed by node index; only variable slots are used

	staged []int
	active []int
	fired  []int

	cycle int
}

func newInstance(c *component.Component, path string, parent *Instance, parentNode int) *Instance {
	in := &Instance{
		ID:         newID(),
		Path:       path,
		comp:       c,
		parent:     parent,
		parentNode: parentNode,
		children:   make(map[int]*Instance),
		nodes:      make([]nodeState, c.Len()),
		vars:       make([]value.Value, c.Len()),
	}
	for i, n := range c.Nodes() {
		if n.Kind == component.KindVariable {
			in.vars[i] = n.Init
		}
	}
	return in
}

// NewInstance creates a standalone instance of c.
//
// Standalone instances emit nothing outside themselves; emitted connectors
// are only visible through StepResult.
func NewInstance(c *component.Component) *Instance {
	return newInstance(c, RootPath, nil, -1)
}

func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// Component returns the component this instance runs.
func (in *Instance) Component() *component.Component { return in.comp }

// Cycle returns the number of steps this instance has taken.
func (in *Instance) Cycle() int { return in.cycle }

// Active reports whether anything is staged for the next step.
func (in *Instance) Active() bool { return len(in.staged) > 0 }

// Flags returns the runtime flags of the named node.
func (in *Instance) Flags(name string) (NodeFlags, bool) {
	_, i, ok := in.comp.Node(name)
	if !ok {
		return 0, false
	}
	return in.nodes[i].flags, true
}

// Value returns the current value of the named variable.
func (in *Instance) Value(name string) (value.Value, bool) {
	n, i, ok := in.comp.Node(name)
	if !ok || n.Kind != component.KindVariable {
		return value.Value{}, false
	}
	return in.vars[i], true
}

// SignalConnector stages the named connector_in for the next step.
func (in *Instance) SignalConnector(name string) error {
	i, ok := in.comp.ConnectorIn(name)
	if !ok {
		return fmt.Errorf("%w: component %q has no connector_in %q", ErrUnknownConnector, in.comp.Name(), name)
	}
	in.stage(i)
	return nil
}

func (in *Instance) stage(i int) {
	st := &in.nodes[i]
	if st.flags.Has(FlagStaged) {
		return
	}
	st.flags |= FlagStaged
	in.staged = append(in.staged, i)
}

// Step advances the instance by one cycle.
//
// Staged nodes become active and are processed; fired nodes then propagate
// along their signal edges (staging targets and emitting connector_out
// nodes), after which association targets are staged. An operation error
// aborts the step and leaves the instance mid-cycle.
func (in *Instance) Step() (StepResult, error) {
	var res StepResult

	in.active, in.staged = in.staged, in.active[:0]
	for _, i := range in.active {
		in.nodes[i].flags &^= FlagStaged
	}

	for _, i := range in.active {
		fired, err := in.process(i)
		if err != nil {
			return res, err
		}
		st := &in.nodes[i]
		if fired {
			res.Fired = append(res.Fired, Firing{Node: i, Signals: st.signals})
			in.fired = append(in.fired, i)
		}
		st.signals = 0
	}

	var associated []int
	for _, i := range in.fired {
		for _, e := range in.comp.Outgoing(i) {
			switch e.Kind {
			case component.EdgeSignal:
				t := e.ToIndex()
				if in.comp.NodeAt(t).Kind == component.KindConnectorOut {
					if !in.nodes[t].flags.Has(FlagFired) {
						in.nodes[t].flags |= FlagFired
						in.fired = append(in.fired, t)
						res.Emitted = append(res.Emitted, t)
					}
					continue
				}
				in.nodes[t].signals |= 1 << e.Bit
				in.stage(t)
			case component.EdgeAssociation:
				associated = append(associated, e.ToIndex())
			}
		}
	}
	for _, t := range associated {
		in.stage(t)
	}

	for _, i := range in.fired {
		in.nodes[i].flags &^= FlagFired
	}
	in.fired = in.fired[:0]
	in.active = in.active[:0]
	in.cycle++
	return res, nil
}

func (in *Instance) process(i int) (bool, error) {
	n := in.comp.NodeAt(i)
	st := &in.nodes[i]
	switch n.Kind {
	case component.KindConnectorIn:
		st.flags |= FlagFired
		return true, nil
	case component.KindCell:
		if n.Cell == component.OneShot {
			if st.flags.Has(FlagSpent) {
				return false, nil
			}
			st.flags |= FlagSpent
		}
		if n.Op != nil {
			if err := in.apply(i, *n.Op); err != nil {
				return false, &OperationError{Instance: in.Path, Node: n.Name, Op: *n.Op, Err: err}
			}
		}
		st.flags |= FlagFired
		return true, nil
	default:
		return false, nil
	}
}

func (in *Instance) apply(i int, op value.Operation) error {
	slots := in.comp.Operands(i)
	var operands [3]*value.Value
	for s, v := range slots {
		if v != component.NoOperand {
			operands[s] = &in.vars[v]
		}
	}
	return op.Apply(operands[0], operands[1], operands[2])
}
