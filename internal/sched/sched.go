// Package sched linearizes a node graph into a single SortedNext chain.
//
// The order is a topological order over operand and previous edges. Among
// the predecessors of a node, the one heading the longest dependency path
// is placed first, so long chains start early and independent work is
// exposed to the instruction scheduler that runs later.
//
// The graph must be acyclic; shared sub-nodes are fine. Cycles are a
// front-end bug and are not detected.
package sched

import (
	"math"

	"scc/internal/ir"
)

// Result is the outcome of Schedule.
type Result struct {
	Head  ir.NodeID // first node of the order
	Tail  ir.NodeID // last node, normally the root
	Len   int       // nodes in the order
	Depth uint32    // longest path ending at the root
}

// fragment is a partial order produced by visiting one predecessor.
type fragment struct {
	head, tail ir.NodeID
	length     uint32
}

type scheduler struct {
	g     *ir.Graph
	count int
}

// Schedule orders every node reachable from root. Nodes already marked
// scheduled by an earlier run are treated as emitted; call Reset first to
// schedule the same graph again.
func Schedule(g *ir.Graph, root ir.NodeID) Result {
	if root == ir.NoNode {
		return Result{}
	}
	s := &scheduler{g: g}
	s.measure(root)
	f := s.visit(root, false)
	return Result{Head: f.head, Tail: f.tail, Len: s.count, Depth: f.length}
}

// measure fills PathLen: one more than the longest predecessor path.
func (s *scheduler) measure(id ir.NodeID) uint32 {
	if id == ir.NoNode {
		return 0
	}
	n := s.g.MustNode(id)
	if n.PathLen != 0 {
		return n.PathLen
	}
	longest := s.measure(n.Prev)
	switch ir.Arity(n.Kind) {
	case 2:
		longest = max(longest, s.measure(n.Left), s.measure(n.Right))
	case 1:
		longest = max(longest, s.measure(n.Left))
	}
	n.PathLen = longest + 1
	return n.PathLen
}

// visit emits the not yet scheduled part of id's cone. counted marks an
// arrival through an operand edge from a parent that has not reached id
// before; only those count as sharing.
func (s *scheduler) visit(id ir.NodeID, counted bool) fragment {
	n := s.g.MustNode(id)
	if n.Flags&ir.FlagScheduled != 0 {
		if counted && n.Visits < math.MaxUint16 {
			n.Visits++
		}
		return fragment{}
	}

	var preds [3]ir.NodeID
	preds[0] = n.Prev
	switch ir.Arity(n.Kind) {
	case 2:
		preds[1], preds[2] = n.Left, n.Right
	case 1:
		preds[1] = n.Left
	}

	var out fragment
	order := rank(s.length(preds[0]), s.length(preds[1]), s.length(preds[2]))
	for i, slot := range order {
		p := preds[slot]
		if p == ir.NoNode {
			continue
		}
		// a parent reaching p through several edges counts once
		again := false
		for _, earlier := range order[:i] {
			again = again || preds[earlier] == p
		}
		out = s.concat(out, s.visit(p, slot != 0 && !again))
	}

	n.SortedNext = ir.NoNode
	n.Flags |= ir.FlagScheduled
	s.count++
	out = s.concat(out, fragment{head: id, tail: id})
	out.length = n.PathLen
	return out
}

func (s *scheduler) length(id ir.NodeID) uint32 {
	if id == ir.NoNode {
		return 0
	}
	return s.g.MustNode(id).PathLen
}

// concat appends b after a.
func (s *scheduler) concat(a, b fragment) fragment {
	if b.head == ir.NoNode {
		return a
	}
	if a.head == ir.NoNode {
		return b
	}
	s.g.MustNode(a.tail).SortedNext = b.head
	return fragment{head: a.head, tail: b.tail, length: max(a.length, b.length)}
}

// rank orders the previous (0), left (1) and right (2) predecessors by
// descending path length. Ties keep the order previous, left, right.
// Absent predecessors have length 0 and sort last.
func rank(p, l, r uint32) [3]int {
	switch {
	case p >= l && l >= r:
		return [3]int{0, 1, 2}
	case p >= r && r > l:
		return [3]int{0, 2, 1}
	case l > p && p >= r:
		return [3]int{1, 0, 2}
	case l >= r && r > p:
		return [3]int{1, 2, 0}
	case r > p && p >= l:
		return [3]int{2, 0, 1}
	default: // r > l > p
		return [3]int{2, 1, 0}
	}
}

// Order collects the chain that starts at head.
func Order(g *ir.Graph, head ir.NodeID) []ir.NodeID {
	var out []ir.NodeID
	for id := head; id != ir.NoNode; id = g.MustNode(id).SortedNext {
		out = append(out, id)
	}
	return out
}

// Reset clears the scheduling state of every node reachable from root.
func Reset(g *ir.Graph, root ir.NodeID) {
	if root == ir.NoNode {
		return
	}
	seen := map[ir.NodeID]struct{}{root: {}}
	stack := []ir.NodeID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := g.MustNode(id)
		n.Flags &^= ir.FlagScheduled
		n.SortedNext = ir.NoNode
		n.Visits = 0
		n.PathLen = 0
		edges := append(n.Operands(), n.Prev)
		for _, e := range edges {
			if e == ir.NoNode {
				continue
			}
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			stack = append(stack, e)
		}
	}
}
