package component

func (c *Component) validateNode(n *Node) error {
	if n.Name == "" {
		return invalidf(c.name, "node name is required")
	}
	if !n.Kind.valid() {
		return invalidf(c.name, "node %q: unknown kind %q", n.Name, n.Kind)
	}
	if n.Op != nil && n.Kind != KindCell {
		return invalidf(c.name, "node %q: only cells carry operations", n.Name)
	}

	switch n.Kind {
	case KindCell:
		if !n.Cell.valid() {
			return invalidf(c.name, "cell %q: unknown cell type %q", n.Name, n.Cell)
		}
		if n.Op != nil {
			if err := n.Op.Validate(); err != nil {
				return invalidf(c.name, "cell %q: %v", n.Name, err)
			}
		}
	case KindInstance:
		if n.Component == "" {
			return invalidf(c.name, "instance %q: component reference is required", n.Name)
		}
	case KindVariable:
		if !n.Type.Valid() {
			return invalidf(c.name, "variable %q: type is required", n.Name)
		}
	}
	return nil
}

// validateEdge enforces the endpoint table:
//
//	signal:      cell | connector_in -> cell | connector_out
//	association: cell -> cell
//	connection:  connector_out -> instance, instance -> connector_in
//	operand:     operation cell -> variable
func (c *Component) validateEdge(e Edge) error {
	from := c.nodes[e.from].Kind
	to := c.nodes[e.to].Kind

	switch e.Kind {
	case EdgeSignal:
		if from != KindCell && from != KindConnectorIn {
			return invalidf(c.name, "signal edge %q -> %q: source must be a cell or connector_in, got %s", e.From, e.To, from)
		}
		if to != KindCell && to != KindConnectorOut {
			return invalidf(c.name, "signal edge %q -> %q: target must be a cell or connector_out, got %s", e.From, e.To, to)
		}
		if e.Bit > MaxSignalBit {
			return invalidf(c.name, "signal edge %q -> %q: bit %d out of range 0..%d", e.From, e.To, e.Bit, MaxSignalBit)
		}
	case EdgeAssociation:
		if from != KindCell || to != KindCell {
			return invalidf(c.name, "association edge %q -> %q: both ends must be cells", e.From, e.To)
		}
	case EdgeConnection:
		if e.Connector == "" {
			return invalidf(c.name, "connection edge %q -> %q: connector name is required", e.From, e.To)
		}
		outward := from == KindConnectorOut && to == KindInstance
		inward := from == KindInstance && to == KindConnectorIn
		if !outward && !inward {
			return invalidf(c.name, "connection edge %q -> %q: must join connector_out -> instance or instance -> connector_in", e.From, e.To)
		}
	case EdgeOperand:
		if from != KindCell || c.nodes[e.from].Op == nil {
			return invalidf(c.name, "operand edge %q -> %q: source must be an operation cell", e.From, e.To)
		}
		if to != KindVariable {
			return invalidf(c.name, "operand edge %q -> %q: target must be a variable", e.From, e.To)
		}
		if int(e.Slot) >= c.nodes[e.from].Op.Operands() {
			return invalidf(c.name, "operand edge %q -> %q: slot %d out of range for %s", e.From, e.To, e.Slot, c.nodes[e.from].Op)
		}
	default:
		return invalidf(c.name, "edge %q -> %q: unknown kind %q", e.From, e.To, e.Kind)
	}
	return nil
}

func (c *Component) validateOperands() error {
	for i, n := range c.nodes {
		if n.Op == nil {
			continue
		}
		for slot := 0; slot < n.Op.Operands(); slot++ {
			if c.operands[i][slot] == NoOperand {
				return invalidf(c.name, "cell %q: operand slot %d of %s is unbound", n.Name, slot, n.Op)
			}
		}
	}
	return nil
}
