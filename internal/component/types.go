package component

import "upon/internal/value"

// Hash is the deterministic identity of a Component or Library.
type Hash string

func (h Hash) String() string { return string(h) }

// NodeKind discriminates the role of a node inside a component graph.
type NodeKind string

const (
	KindCell         NodeKind = "cell"
	KindConnectorIn  NodeKind = "connector_in"
	KindConnectorOut NodeKind = "connector_out"
	KindInstance     NodeKind = "instance"
	KindVariable     NodeKind = "variable"
)

func (k NodeKind) valid() bool {
	switch k {
	case KindCell, KindConnectorIn, KindConnectorOut, KindInstance, KindVariable:
		return true
	default:
		return false
	}
}

// CellType selects how a cell reacts when it is processed.
type CellType string

const (
	// Relay fires every time it is processed.
	Relay CellType = "relay"
	// OneShot fires the first time it is processed and is spent afterwards.
	OneShot CellType = "one_shot"
)

func (c CellType) valid() bool { return c == Relay || c == OneShot }

// EdgeKind discriminates the meaning of an edge.
type EdgeKind string

const (
	// EdgeSignal carries a signal bit from a firing node to a cell or an
	// outgoing connector.
	EdgeSignal EdgeKind = "signal"
	// EdgeAssociation stages a sensing cell after the signalled cells of the
	// same cycle.
	EdgeAssociation EdgeKind = "association"
	// EdgeConnection binds a connector to a connector of a child instance.
	EdgeConnection EdgeKind = "connection"
	// EdgeOperand binds an operation cell to a variable in a given slot.
	EdgeOperand EdgeKind = "operand"
)

func (k EdgeKind) order() int {
	switch k {
	case EdgeSignal:
		return 10
	case EdgeAssociation:
		return 20
	case EdgeConnection:
		return 30
	case EdgeOperand:
		return 40
	default:
		return 1000
	}
}

// MaxSignalBit bounds Edge.Bit; a cell tracks 32 signal lines.
const MaxSignalBit = 31

// Node is a single vertex of a component graph.
//
// Only the fields relevant to Kind are consulted:
//   - cell: Cell, and optionally Op
//   - instance: Component (the referenced component name)
//   - variable: Type and Init
type Node struct {
	Name      string
	Kind      NodeKind
	Cell      CellType
	Op        *value.Operation
	Component string
	Type      value.Type
	Init      value.Value
}

// Edge is a directed relation between two nodes of the same component.
//
// Bit is used by signal edges, Connector by connection edges and Slot by
// operand edges.
type Edge struct {
	From      string
	To        string
	Kind      EdgeKind
	Bit       uint8
	Connector string
	Slot      uint8

	from int
	to   int
}

// FromIndex returns the node index of the edge's source.
func (e Edge) FromIndex() int { return e.from }

// ToIndex returns the node index of the edge's target.
func (e Edge) ToIndex() int { return e.to }
