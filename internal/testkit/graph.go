// Package testkit holds invariant checks shared by tests of the graph
// layers.
package testkit

import (
	"fmt"

	"scc/internal/ir"
)

// CheckGraph verifies that every edge of every live node points at a live
// node and that no node holds fewer references than it has incoming edges.
// Operand and previous edges each own one reference.
func CheckGraph(g *ir.Graph) error {
	in := make(map[ir.NodeID]int)
	var err error
	g.Each(func(id ir.NodeID, n *ir.Node) {
		if err != nil {
			return
		}
		if !n.Kind.Valid() {
			err = fmt.Errorf("node %d: invalid kind %d", id, n.Kind)
			return
		}
		for _, op := range n.Operands() {
			if op == ir.NoNode {
				err = fmt.Errorf("node %d (%s): missing operand", id, n.Kind)
				return
			}
		}
		for _, e := range append(n.Operands(), n.Prev) {
			if e == ir.NoNode {
				continue
			}
			if g.Node(e) == nil {
				err = fmt.Errorf("node %d (%s): edge to dead node %d", id, n.Kind, e)
				return
			}
			in[e]++
		}
	})
	if err != nil {
		return err
	}
	g.Each(func(id ir.NodeID, n *ir.Node) {
		if err == nil && int(n.Refs) < in[id] {
			err = fmt.Errorf("node %d (%s): %d refs for %d incoming edges", id, n.Kind, n.Refs, in[id])
		}
	})
	return err
}

// CheckOrder verifies that order lists each node once and after all of its
// operands and its previous node.
func CheckOrder(g *ir.Graph, order []ir.NodeID) error {
	pos := make(map[ir.NodeID]int, len(order))
	for i, id := range order {
		if _, dup := pos[id]; dup {
			return fmt.Errorf("node %d appears twice", id)
		}
		pos[id] = i
	}
	for _, id := range order {
		n := g.Node(id)
		if n == nil {
			return fmt.Errorf("node %d is not live", id)
		}
		for _, e := range append(n.Operands(), n.Prev) {
			if e == ir.NoNode {
				continue
			}
			ep, ok := pos[e]
			if !ok {
				return fmt.Errorf("predecessor %d of %d missing", e, id)
			}
			if ep > pos[id] {
				return fmt.Errorf("%d must precede %d", e, id)
			}
		}
	}
	return nil
}
