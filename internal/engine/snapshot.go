package engine

import (
	"sort"

	"upon/internal/component"
)

// NodeSnapshot is the observable state of one node.
type NodeSnapshot struct {
	Name    string             `json:"name"`
	Kind    component.NodeKind `json:"kind"`
	Flags   string             `json:"flags,omitempty"`
	Signals uint32             `json:"signals,omitempty"`
	Type    string             `json:"type,omitempty"`
	Value   string             `json:"value,omitempty"`
}

// InstanceSnapshot is the observable state of one instance.
type InstanceSnapshot struct {
	Path      string         `json:"path"`
	Component string         `json:"component"`
	Cycle     int            `json:"cycle"`
	Staged    []string       `json:"staged,omitempty"`
	Nodes     []NodeSnapshot `json:"nodes"`
}

// Snapshot is a point-in-time view of every instance.
//
// It carries no instance IDs so equal runs produce equal snapshots.
type Snapshot struct {
	Clock     int                `json:"clock"`
	Instances []InstanceSnapshot `json:"instances"`
}

// Snapshot captures the instance state. Nodes are listed by name; staged
// nodes are listed in the order they will be processed.
func (in *Instance) Snapshot() InstanceSnapshot {
	s := InstanceSnapshot{
		Path:      in.Path,
		Component: in.comp.Name(),
		Cycle:     in.cycle,
	}
	for _, i := range in.staged {
		s.Staged = append(s.Staged, in.comp.NodeAt(i).Name)
	}
	for i, n := range in.comp.Nodes() {
		ns := NodeSnapshot{
			Name:    n.Name,
			Kind:    n.Kind,
			Flags:   in.nodes[i].flags.String(),
			Signals: in.nodes[i].signals,
		}
		if n.Kind == component.KindVariable {
			ns.Type = n.Type.String()
			ns.Value = in.vars[i].Format(n.Type)
		}
		s.Nodes = append(s.Nodes, ns)
	}
	sort.Slice(s.Nodes, func(i, j int) bool { return s.Nodes[i].Name < s.Nodes[j].Name })
	return s
}

// Snapshot captures every instance in path order.
func (o *Orchestrator) Snapshot() Snapshot {
	s := Snapshot{Clock: o.clock}
	for _, in := range o.Instances() {
		s.Instances = append(s.Instances, in.Snapshot())
	}
	return s
}
