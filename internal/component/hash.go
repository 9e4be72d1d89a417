package component

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sort"
	"strconv"
)

type fieldWriter struct {
	h hash.Hash
}

// field writes a length-prefixed field so that adjacent fields cannot alias.
func (w fieldWriter) field(data string) {
	length := uint64(len(data))
	w.h.Write([]byte{
		byte(length >> 56),
		byte(length >> 48),
		byte(length >> 40),
		byte(length >> 32),
		byte(length >> 24),
		byte(length >> 16),
		byte(length >> 8),
		byte(length),
	})
	w.h.Write([]byte(data))
}

// computeHash hashes node and edge content.
//
// Determinism rules:
//   - Nodes are sorted by name, edges by (from, to, kind) names.
//   - Indices never enter the hash. New assigns them in name order, so
//     equal hashes imply equal execution order.
func (c *Component) computeHash() Hash {
	w := fieldWriter{h: sha256.New()}
	w.field(c.name)

	nodes := make([]Node, len(c.nodes))
	copy(nodes, c.nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })

	w.field(strconv.Itoa(len(nodes)))
	for _, n := range nodes {
		w.field(n.Name)
		w.field(string(n.Kind))
		switch n.Kind {
		case KindCell:
			w.field(string(n.Cell))
			if n.Op != nil {
				w.field(n.Op.String())
			} else {
				w.field("")
			}
		case KindInstance:
			w.field(n.Component)
		case KindVariable:
			w.field(n.Type.String())
			w.field(string(n.Init.Bytes[:]))
		}
	}

	edges := make([]Edge, len(c.edges))
	copy(edges, c.edges)
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Kind < b.Kind
	})

	w.field(strconv.Itoa(len(edges)))
	for _, e := range edges {
		w.field(e.From)
		w.field(e.To)
		w.field(string(e.Kind))
		switch e.Kind {
		case EdgeSignal:
			w.field(strconv.Itoa(int(e.Bit)))
		case EdgeConnection:
			w.field(e.Connector)
		case EdgeOperand:
			w.field(strconv.Itoa(int(e.Slot)))
		}
	}

	return Hash(hex.EncodeToString(w.h.Sum(nil)))
}
