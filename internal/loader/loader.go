// Package loader reads component library definitions.
//
// A definition is a YAML document (JSON is accepted as a YAML subset):
//
//	root: Counter
//	components:
//	  - name: Counter
//	    nodes:
//	      - {name: start, kind: connector_in}
//	      - {name: inc, kind: cell, op: "add_assign:u32"}
//	      - {name: x, kind: variable, type: u32, value: "0"}
//	      - {name: one, kind: variable, type: u32, value: "1"}
//	    edges:
//	      - {from: start, to: inc}
//	      - {from: inc, to: x, kind: operand, slot: 0}
//	      - {from: inc, to: one, kind: operand, slot: 1}
//
// The loader is deterministic:
//   - Unknown fields are rejected (to avoid silent divergence).
//   - Only a single document per file is accepted.
//   - Does not consult environment variables.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"upon/internal/component"
	"upon/internal/value"
)

// ErrInvalidDefinition reports a definition that is well-formed YAML but
// does not describe a usable library.
var ErrInvalidDefinition = errors.New("invalid definition")

// Definition is a validated library plus the component the root instance runs.
type Definition struct {
	Root    string
	Library *component.Library
}

type fileDoc struct {
	Root       string         `yaml:"root"`
	Components []componentDoc `yaml:"components"`
}

type componentDoc struct {
	Name  string    `yaml:"name"`
	Nodes []nodeDoc `yaml:"nodes"`
	Edges []edgeDoc `yaml:"edges"`
}

type nodeDoc struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	Cell      string `yaml:"cell"`
	Op        string `yaml:"op"`
	Component string `yaml:"component"`
	Type      string `yaml:"type"`
	Value     string `yaml:"value"`
}

type edgeDoc struct {
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Kind      string `yaml:"kind"`
	Bit       uint8  `yaml:"bit"`
	Connector string `yaml:"connector"`
	Slot      uint8  `yaml:"slot"`
}

// Load reads and validates the definition at path.
func Load(path string) (*Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	def, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Parse reads a definition from r.
func Parse(r io.Reader) (*Definition, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	return Decode(b)
}

// Decode validates a definition held in memory.
func Decode(data []byte) (*Definition, error) {
	var doc fileDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDefinition)
		}
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return nil, fmt.Errorf("parse definition: multiple documents are not supported")
	} else if !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	return doc.build()
}

func (d fileDoc) build() (*Definition, error) {
	if len(d.Components) == 0 {
		return nil, fmt.Errorf("%w: no components", ErrInvalidDefinition)
	}
	components := make([]*component.Component, 0, len(d.Components))
	for i, cd := range d.Components {
		c, err := cd.build()
		if err != nil {
			return nil, fmt.Errorf("components[%d]: %w", i, err)
		}
		components = append(components, c)
	}
	lib, err := component.NewLibrary(components...)
	if err != nil {
		return nil, err
	}

	root := d.Root
	if root == "" {
		if len(components) != 1 {
			return nil, fmt.Errorf("%w: root is required when more than one component is defined", ErrInvalidDefinition)
		}
		root = components[0].Name()
	}
	if _, ok := lib.Component(root); !ok {
		return nil, fmt.Errorf("%w: root component %q is not defined", ErrInvalidDefinition, root)
	}
	return &Definition{Root: root, Library: lib}, nil
}

func (cd componentDoc) build() (*component.Component, error) {
	nodes := make([]component.Node, 0, len(cd.Nodes))
	for i, nd := range cd.Nodes {
		n, err := nd.node()
		if err != nil {
			return nil, fmt.Errorf("component %q: nodes[%d]: %w", cd.Name, i, err)
		}
		nodes = append(nodes, n)
	}
	edges := make([]component.Edge, 0, len(cd.Edges))
	for _, ed := range cd.Edges {
		kind := component.EdgeKind(ed.Kind)
		if kind == "" {
			kind = component.EdgeSignal
		}
		edges = append(edges, component.Edge{
			From:      ed.From,
			To:        ed.To,
			Kind:      kind,
			Bit:       ed.Bit,
			Connector: ed.Connector,
			Slot:      ed.Slot,
		})
	}
	return component.New(cd.Name, nodes, edges)
}

func (nd nodeDoc) node() (component.Node, error) {
	n := component.Node{
		Name:      nd.Name,
		Kind:      component.NodeKind(nd.Kind),
		Component: nd.Component,
	}
	if n.Kind == "" {
		n.Kind = component.KindCell
	}

	switch n.Kind {
	case component.KindCell:
		n.Cell = component.CellType(nd.Cell)
		if n.Cell == "" {
			n.Cell = component.Relay
		}
		if nd.Op != "" {
			op, err := value.ParseOperation(nd.Op)
			if err != nil {
				return n, fmt.Errorf("%w: cell %q: %w", ErrInvalidDefinition, nd.Name, err)
			}
			n.Op = &op
		}
	case component.KindVariable:
		t, err := value.ParseType(nd.Type)
		if err != nil {
			return n, fmt.Errorf("%w: variable %q: %w", ErrInvalidDefinition, nd.Name, err)
		}
		v, err := value.Parse(t, nd.Value)
		if err != nil {
			return n, fmt.Errorf("%w: variable %q: %w", ErrInvalidDefinition, nd.Name, err)
		}
		n.Type = t
		n.Init = v
	}

	if n.Kind != component.KindCell && (nd.Cell != "" || nd.Op != "") {
		return n, fmt.Errorf("%w: %s %q: cell and op apply to cells only", ErrInvalidDefinition, n.Kind, nd.Name)
	}
	if n.Kind != component.KindVariable && (nd.Type != "" || nd.Value != "") {
		return n, fmt.Errorf("%w: %s %q: type and value apply to variables only", ErrInvalidDefinition, n.Kind, nd.Name)
	}
	return n, nil
}
