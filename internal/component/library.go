package component

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Library is an immutable registry of components addressed by name.
//
// Construction validates every cross-component reference, so an orchestrator
// can instantiate any instance node lazily without further checks.
type Library struct {
	byName map[string]*Component
	names  []string // sorted
	hash   Hash
}

// NewLibrary builds and validates a Library.
//
// It rejects nil or duplicate components, instance nodes that reference an
// unknown component, and connection edges that name a connector which does not
// exist on the referenced component with the required direction:
//
//	connector_out -> instance  names a connector_in of the child
//	instance -> connector_in   names a connector_out of the child
func NewLibrary(components ...*Component) (*Library, error) {
	if len(components) == 0 {
		return nil, libraryf("", "no components")
	}
	l := &Library{byName: make(map[string]*Component, len(components))}
	for _, c := range components {
		if c == nil {
			return nil, libraryf("", "nil component")
		}
		if _, exists := l.byName[c.name]; exists {
			return nil, libraryf(c.name, "duplicate component name")
		}
		l.byName[c.name] = c
		l.names = append(l.names, c.name)
	}
	sort.Strings(l.names)

	for _, name := range l.names {
		if err := l.validateReferences(l.byName[name]); err != nil {
			return nil, err
		}
	}

	l.hash = l.computeHash()
	return l, nil
}

func (l *Library) validateReferences(c *Component) error {
	for _, n := range c.nodes {
		if n.Kind != KindInstance {
			continue
		}
		if _, ok := l.byName[n.Component]; !ok {
			return libraryf(c.name, "instance %q references unknown component %q", n.Name, n.Component)
		}
	}
	for _, e := range c.edges {
		if e.Kind != EdgeConnection {
			continue
		}
		if c.nodes[e.to].Kind == KindInstance {
			child := l.byName[c.nodes[e.to].Component]
			if _, ok := child.ConnectorIn(e.Connector); !ok {
				return libraryf(c.name, "connection %q -> %q: component %q has no connector_in %q", e.From, e.To, child.name, e.Connector)
			}
			continue
		}
		child := l.byName[c.nodes[e.from].Component]
		if _, ok := child.ConnectorOut(e.Connector); !ok {
			return libraryf(c.name, "connection %q -> %q: component %q has no connector_out %q", e.From, e.To, child.name, e.Connector)
		}
	}
	return nil
}

// Component returns a component by name.
func (l *Library) Component(name string) (*Component, bool) {
	c, ok := l.byName[name]
	return c, ok
}

// Names returns the component names, sorted.
func (l *Library) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// Hash returns an identity derived from the member component hashes.
func (l *Library) Hash() Hash { return l.hash }

func (l *Library) computeHash() Hash {
	w := fieldWriter{h: sha256.New()}
	for _, name := range l.names {
		w.field(string(l.byName[name].hash))
	}
	return Hash(hex.EncodeToString(w.h.Sum(nil)))
}
