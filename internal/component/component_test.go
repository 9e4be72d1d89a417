package component

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"upon/internal/value"
)

func relay(name string) Node { return Node{Name: name, Kind: KindCell, Cell: Relay} }

func signal(from, to string, bit uint8) Edge {
	return Edge{From: from, To: to, Kind: EdgeSignal, Bit: bit}
}

func TestComponentConstruction_ChainWithAssociation(t *testing.T) {
	c, err := New("Chain",
		[]Node{
			{Name: "in", Kind: KindConnectorIn},
			relay("b"),
			relay("c"),
			relay("d"),
		},
		[]Edge{
			signal("in", "b", 0),
			{From: "b", To: "c", Kind: EdgeAssociation},
			signal("b", "d", 0),
		},
	)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if c.Hash() == "" {
		t.Fatalf("expected non-empty component hash")
	}

	_, b, ok := c.Node("b")
	if !ok {
		t.Fatalf("expected node b")
	}
	out := c.Outgoing(b)
	if len(out) != 2 {
		t.Fatalf("expected 2 outgoing edges from b, got %d", len(out))
	}
	// Signal edges come before association edges regardless of declaration order.
	if out[0].Kind != EdgeSignal || out[0].To != "d" {
		t.Fatalf("expected signal edge to d first, got %+v", out[0])
	}
	if out[1].Kind != EdgeAssociation || out[1].To != "c" {
		t.Fatalf("expected association edge to c second, got %+v", out[1])
	}
	// Indices follow name order: b, c, d, in.
	if idx, ok := c.ConnectorIn("in"); !ok || idx != 3 {
		t.Fatalf("expected connector_in at index 3, got %d %v", idx, ok)
	}
	if _, ok := c.ConnectorIn("b"); ok {
		t.Fatalf("cell must not resolve as connector_in")
	}
}

func TestComponentConstruction_FeedbackLoopAllowed(t *testing.T) {
	_, err := New("Loop",
		[]Node{relay("a"), relay("b")},
		[]Edge{signal("a", "b", 0), signal("b", "a", 1)},
	)
	if err != nil {
		t.Fatalf("expected feedback loop to be accepted, got %v", err)
	}
}

func TestComponentHash_InvariantToDeclarationOrder(t *testing.T) {
	c1, err := New("X",
		[]Node{relay("a"), relay("b"), relay("c")},
		[]Edge{signal("a", "b", 0), signal("b", "c", 2)},
	)
	if err != nil {
		t.Fatalf("c1: %v", err)
	}
	c2, err := New("X",
		[]Node{relay("c"), relay("a"), relay("b")},
		[]Edge{signal("b", "c", 2), signal("a", "b", 0)},
	)
	if err != nil {
		t.Fatalf("c2: %v", err)
	}
	if c1.Hash() != c2.Hash() {
		t.Fatalf("expected equal hashes, got %s vs %s", c1.Hash(), c2.Hash())
	}
	// Equal hashes must mean equal indexing, since execution follows indices.
	for i := 0; i < c1.Len(); i++ {
		if c1.NodeAt(i).Name != c2.NodeAt(i).Name {
			t.Fatalf("node %d: %q vs %q", i, c1.NodeAt(i).Name, c2.NodeAt(i).Name)
		}
		if !reflect.DeepEqual(c1.Outgoing(i), c2.Outgoing(i)) {
			t.Fatalf("node %d outgoing differs: %+v vs %+v", i, c1.Outgoing(i), c2.Outgoing(i))
		}
	}

	c3, err := New("X",
		[]Node{relay("a"), relay("b"), relay("c")},
		[]Edge{signal("a", "b", 0), signal("b", "c", 3)},
	)
	if err != nil {
		t.Fatalf("c3: %v", err)
	}
	if c1.Hash() == c3.Hash() {
		t.Fatalf("expected signal bit to change the hash")
	}
}

func TestComponentConstruction_OperationCell(t *testing.T) {
	op, err := value.ParseOperation("add:u32")
	if err != nil {
		t.Fatalf("parse op: %v", err)
	}
	one, _ := value.Parse(value.U32, "1")
	c, err := New("Adder",
		[]Node{
			{Name: "sum", Kind: KindCell, Cell: Relay, Op: &op},
			{Name: "a", Kind: KindVariable, Type: value.U32, Init: one},
			{Name: "b", Kind: KindVariable, Type: value.U32, Init: one},
			{Name: "out", Kind: KindVariable, Type: value.U32},
		},
		[]Edge{
			{From: "sum", To: "a", Kind: EdgeOperand, Slot: 0},
			{From: "sum", To: "b", Kind: EdgeOperand, Slot: 1},
			{From: "sum", To: "out", Kind: EdgeOperand, Slot: 2},
		},
	)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	_, sum, _ := c.Node("sum")
	if got := c.Operands(sum); got != [3]int{0, 1, 2} {
		t.Fatalf("unexpected operand binding: %v", got)
	}
}

func TestComponentConstruction_RejectsInvalid(t *testing.T) {
	addAssign := value.Operation{Kind: value.Add, Type: value.U8, Form: value.Assign}

	tests := []struct {
		name  string
		nodes []Node
		edges []Edge
		want  string
	}{
		{
			name:  "duplicate node",
			nodes: []Node{relay("a"), relay("a")},
			want:  "duplicate node name",
		},
		{
			name:  "unknown cell type",
			nodes: []Node{{Name: "a", Kind: KindCell, Cell: "latch"}},
			want:  "unknown cell type",
		},
		{
			name:  "unknown edge target",
			nodes: []Node{relay("a")},
			edges: []Edge{signal("a", "zzz", 0)},
			want:  "unknown node (to)",
		},
		{
			name:  "self loop",
			nodes: []Node{relay("a")},
			edges: []Edge{signal("a", "a", 0)},
			want:  "self-loop",
		},
		{
			name:  "duplicate edge",
			nodes: []Node{relay("a"), relay("b")},
			edges: []Edge{signal("a", "b", 0), signal("a", "b", 1)},
			want:  "duplicate signal edge",
		},
		{
			name:  "signal bit out of range",
			nodes: []Node{relay("a"), relay("b")},
			edges: []Edge{signal("a", "b", 32)},
			want:  "out of range",
		},
		{
			name:  "signal into connector_in",
			nodes: []Node{relay("a"), {Name: "in", Kind: KindConnectorIn}},
			edges: []Edge{signal("a", "in", 0)},
			want:  "target must be a cell or connector_out",
		},
		{
			name:  "association from connector",
			nodes: []Node{{Name: "in", Kind: KindConnectorIn}, relay("b")},
			edges: []Edge{{From: "in", To: "b", Kind: EdgeAssociation}},
			want:  "both ends must be cells",
		},
		{
			name:  "connection without connector",
			nodes: []Node{{Name: "out", Kind: KindConnectorOut}, {Name: "child", Kind: KindInstance, Component: "C"}},
			edges: []Edge{{From: "out", To: "child", Kind: EdgeConnection}},
			want:  "connector name is required",
		},
		{
			name:  "instance without component",
			nodes: []Node{{Name: "child", Kind: KindInstance}},
			want:  "component reference is required",
		},
		{
			name:  "unbound operand",
			nodes: []Node{{Name: "inc", Kind: KindCell, Cell: Relay, Op: &addAssign}, {Name: "x", Kind: KindVariable, Type: value.U8}},
			edges: []Edge{{From: "inc", To: "x", Kind: EdgeOperand, Slot: 0}},
			want:  "operand slot 1",
		},
		{
			name:  "operand slot beyond assign form",
			nodes: []Node{{Name: "inc", Kind: KindCell, Cell: Relay, Op: &addAssign}, {Name: "x", Kind: KindVariable, Type: value.U8}},
			edges: []Edge{{From: "inc", To: "x", Kind: EdgeOperand, Slot: 2}},
			want:  "slot 2 out of range",
		},
		{
			name:  "operand on plain cell",
			nodes: []Node{relay("a"), {Name: "x", Kind: KindVariable, Type: value.U8}},
			edges: []Edge{{From: "a", To: "x", Kind: EdgeOperand}},
			want:  "source must be an operation cell",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("Bad", tt.nodes, tt.edges)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, ErrInvalidComponent) {
				t.Fatalf("expected ErrInvalidComponent, got %v", err)
			}
			var ge *GraphError
			if !errors.As(err, &ge) || ge.Component != "Bad" {
				t.Fatalf("expected GraphError naming the component, got %#v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %q", tt.want, err.Error())
			}
		})
	}
}

func TestComponentConstruction_RequiresName(t *testing.T) {
	_, err := New("", []Node{relay("a")}, nil)
	if !errors.Is(err, ErrInvalidComponent) {
		t.Fatalf("expected ErrInvalidComponent, got %v", err)
	}
}
