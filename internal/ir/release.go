package ir

import "fmt"

// Release drops one reference to id. When the last reference goes, the node
// is freed together with every edge it holds.
//
// The right operand of a binary node is released recursively; the left
// operand (or the sole operand) is followed by the loop. The previous edge
// joins the loop when no operand is pending and recurses otherwise, so the
// stack depth follows the branching of the graph, not chain length.
func (g *Graph) Release(id NodeID) {
	for id != NoNode {
		n := g.MustNode(id)
		if n.Refs > 1 {
			n.Refs--
			return
		}
		if n.Refs < 1 {
			panic(fmt.Sprintf("ir: reference underflow on %d", id))
		}
		next := NoNode
		switch Arity(n.Kind) {
		case 2:
			g.Release(n.Right)
			next = n.Left
		case 1:
			next = n.Left
		}
		if n.Prev != NoNode {
			if next == NoNode {
				next = n.Prev
			} else {
				g.Release(n.Prev)
			}
		}
		if n.Kind == KindCall {
			n.Callee = ""
		}
		g.Types.Release(n.Type)
		g.nodes.Free(uint32(id))
		id = next
	}
}
