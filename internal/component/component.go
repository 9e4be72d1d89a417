package component

import (
	"sort"
)

// NoOperand marks an unused operand slot in Component.Operands.
const NoOperand = -1

// Component is an immutable, validated component graph.
//
// Nodes are indexed in name order, so declaration order never reaches
// execution or the hash. It is safe for concurrent read access.
type Component struct {
	name   string
	nodes  []Node
	byName map[string]int
	edges  []Edge // canonical order

	outgoing [][]Edge // by node index, canonical order
	operands [][3]int // by node index; NoOperand where unbound

	hash Hash
}

// New builds and validates a Component.
//
// Validation runs immediately and rejects:
//   - empty component name, empty or duplicate node names
//   - unknown node kinds or cell types, instance nodes without a component
//   - edges referencing unknown nodes, self-loops, duplicate edges
//   - edges whose kind does not fit their endpoints
//   - operation cells whose operand slots are not all bound to variables
//
// Cycles between cells are legal; the runtime bounds execution instead.
func New(name string, nodes []Node, edges []Edge) (*Component, error) {
	if name == "" {
		return nil, invalidf("", "component name is required")
	}
	if len(nodes) == 0 {
		return nil, invalidf(name, "no nodes")
	}

	c := &Component{
		name:     name,
		nodes:    make([]Node, len(nodes)),
		byName:   make(map[string]int, len(nodes)),
		outgoing: make([][]Edge, len(nodes)),
		operands: make([][3]int, len(nodes)),
	}
	copy(c.nodes, nodes)
	sort.SliceStable(c.nodes, func(i, j int) bool { return c.nodes[i].Name < c.nodes[j].Name })

	for i := range c.nodes {
		n := &c.nodes[i]
		if err := c.validateNode(n); err != nil {
			return nil, err
		}
		if _, exists := c.byName[n.Name]; exists {
			return nil, invalidf(name, "duplicate node name: %q", n.Name)
		}
		c.byName[n.Name] = i
		c.operands[i] = [3]int{NoOperand, NoOperand, NoOperand}
		if n.Op != nil {
			op := *n.Op
			n.Op = &op
		}
	}

	type edgeKey struct {
		from, to int
		kind     EdgeKind
	}
	seen := make(map[edgeKey]struct{}, len(edges))
	mapped := make([]Edge, 0, len(edges))
	for _, e := range edges {
		from, okFrom := c.byName[e.From]
		to, okTo := c.byName[e.To]
		if !okFrom {
			return nil, invalidf(name, "edge references unknown node (from): %q", e.From)
		}
		if !okTo {
			return nil, invalidf(name, "edge references unknown node (to): %q", e.To)
		}
		if from == to {
			return nil, invalidf(name, "self-loop: %q -> %q", e.From, e.To)
		}
		key := edgeKey{from: from, to: to, kind: e.Kind}
		if _, exists := seen[key]; exists {
			return nil, invalidf(name, "duplicate %s edge: %q -> %q", e.Kind, e.From, e.To)
		}
		seen[key] = struct{}{}

		e.from, e.to = from, to
		if err := c.validateEdge(e); err != nil {
			return nil, err
		}
		mapped = append(mapped, e)
	}

	sort.SliceStable(mapped, func(i, j int) bool {
		a, b := mapped[i], mapped[j]
		if a.from != b.from {
			return a.from < b.from
		}
		if a.Kind.order() != b.Kind.order() {
			return a.Kind.order() < b.Kind.order()
		}
		return a.to < b.to
	})
	c.edges = mapped

	for _, e := range mapped {
		c.outgoing[e.from] = append(c.outgoing[e.from], e)
		if e.Kind == EdgeOperand {
			if c.operands[e.from][e.Slot] != NoOperand {
				return nil, invalidf(name, "cell %q binds operand slot %d twice", e.From, e.Slot)
			}
			c.operands[e.from][e.Slot] = e.to
		}
	}
	if err := c.validateOperands(); err != nil {
		return nil, err
	}

	c.hash = c.computeHash()
	return c, nil
}

// Name returns the component name.
func (c *Component) Name() string { return c.name }

// Hash returns the stable identity for this component.
func (c *Component) Hash() Hash { return c.hash }

// Len returns the number of nodes.
func (c *Component) Len() int { return len(c.nodes) }

// Node returns a node and its index by name.
func (c *Component) Node(name string) (Node, int, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Node{}, 0, false
	}
	return c.nodes[i], i, true
}

// NodeAt returns the node at index i.
func (c *Component) NodeAt(i int) Node { return c.nodes[i] }

// Nodes returns the nodes in index (name) order.
func (c *Component) Nodes() []Node {
	out := make([]Node, len(c.nodes))
	copy(out, c.nodes)
	return out
}

// Edges returns all edges in canonical order.
func (c *Component) Edges() []Edge {
	out := make([]Edge, len(c.edges))
	copy(out, c.edges)
	return out
}

// Outgoing returns the edges leaving node i in canonical order: signal edges
// first, then association, connection and operand edges, each by target index.
//
// The returned slice is shared and must not be modified.
func (c *Component) Outgoing(i int) []Edge { return c.outgoing[i] }

// Operands returns the variable indices bound to the operand slots of cell i.
func (c *Component) Operands(i int) [3]int { return c.operands[i] }

// ConnectorIn returns the index of the named connector_in node.
func (c *Component) ConnectorIn(name string) (int, bool) {
	return c.nodeOfKind(name, KindConnectorIn)
}

// ConnectorOut returns the index of the named connector_out node.
func (c *Component) ConnectorOut(name string) (int, bool) {
	return c.nodeOfKind(name, KindConnectorOut)
}

func (c *Component) nodeOfKind(name string, kind NodeKind) (int, bool) {
	i, ok := c.byName[name]
	if !ok || c.nodes[i].Kind != kind {
		return 0, false
	}
	return i, true
}

// Connectors returns the names of all connectors of the given kind, sorted.
func (c *Component) Connectors(kind NodeKind) []string {
	var out []string
	for _, n := range c.nodes {
		if n.Kind == kind {
			out = append(out, n.Name)
		}
	}
	sort.Strings(out)
	return out
}
