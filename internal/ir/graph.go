package ir

import (
	"fmt"
	"math"

	"scc/internal/arena"
	"scc/internal/types"
)

// Graph owns the nodes of one compilation unit. It is not safe for
// concurrent use.
type Graph struct {
	Types *types.Table
	nodes *arena.Arena[Node]
}

// NewGraph creates an empty graph whose node types live in tt. limit caps the
// number of live nodes (0 means unbounded).
func NewGraph(tt *types.Table, limit int) *Graph {
	return &Graph{
		Types: tt,
		nodes: arena.New[Node](128, limit),
	}
}

// Node returns the live node behind id, or nil.
func (g *Graph) Node(id NodeID) *Node {
	return g.nodes.Get(uint32(id))
}

// MustNode panics when id is not live.
func (g *Graph) MustNode(id NodeID) *Node {
	n := g.Node(id)
	if n == nil {
		panic(fmt.Sprintf("ir: dead or invalid NodeID %d", id))
	}
	return n
}

// Live reports the number of allocated nodes.
func (g *Graph) Live() int {
	return g.nodes.Live()
}

// Each visits every live node in id order.
func (g *Graph) Each(fn func(id NodeID, n *Node)) {
	g.nodes.Each(func(index uint32, n *Node) {
		fn(NodeID(index), n)
	})
}

// Retain adds a reference for an additional holder of id.
func (g *Graph) Retain(id NodeID) NodeID {
	if id == NoNode {
		return id
	}
	n := g.MustNode(id)
	if n.Refs == math.MaxInt16 {
		panic(fmt.Sprintf("ir: reference overflow on %d", id))
	}
	n.Refs++
	return id
}

// Builders consume the operand and type handles they are given, also on
// failure: the new node becomes their holder. The prev handle is borrowed
// and retained. A new node starts with one reference owned by the caller.

// Literal builds a constant.
func (g *Graph) Literal(ty types.TypeID, value int64) (NodeID, error) {
	return g.add(Node{Kind: KindLiteral, Type: ty, Value: value}, nil)
}

// Call builds a call of callee sequenced after prev.
func (g *Graph) Call(ty types.TypeID, callee string, prev NodeID) (NodeID, error) {
	return g.add(Node{Kind: KindCall, Type: ty, Callee: callee, Prev: prev}, nil)
}

// Unary builds a one-operand node.
func (g *Graph) Unary(kind Kind, operand NodeID, ty types.TypeID) (NodeID, error) {
	if !kind.Valid() || Arity(kind) != 1 {
		g.Release(operand)
		g.Types.Release(ty)
		return NoNode, fmt.Errorf("%w: %s is not unary", ErrArity, kind)
	}
	return g.add(Node{Kind: kind, Left: operand, Type: ty}, []NodeID{operand})
}

// Binary builds a two-operand node.
func (g *Graph) Binary(kind Kind, left, right NodeID, ty types.TypeID) (NodeID, error) {
	if !kind.Valid() || Arity(kind) != 2 {
		g.Release(left)
		g.Release(right)
		g.Types.Release(ty)
		return NoNode, fmt.Errorf("%w: %s is not binary", ErrArity, kind)
	}
	return g.add(Node{Kind: kind, Left: left, Right: right, Type: ty}, []NodeID{left, right})
}

// Return builds the terminal node of a function body.
func (g *Graph) Return(value NodeID, ty types.TypeID, prev NodeID) (NodeID, error) {
	return g.add(Node{Kind: KindReturn, Left: value, Type: ty, Prev: prev}, []NodeID{value})
}

func (g *Graph) add(n Node, operands []NodeID) (NodeID, error) {
	fail := func(err error) (NodeID, error) {
		for _, op := range operands {
			if g.Node(op) != nil {
				g.Release(op)
			}
		}
		g.Types.Release(n.Type)
		return NoNode, err
	}
	for _, op := range operands {
		if g.Node(op) == nil {
			return fail(fmt.Errorf("%w: operand %d of %s", ErrDeadNode, op, n.Kind))
		}
	}
	if n.Prev != NoNode && g.Node(n.Prev) == nil {
		return fail(fmt.Errorf("%w: previous %d of %s", ErrDeadNode, n.Prev, n.Kind))
	}
	if g.Types.IsArithmetic(n.Type) {
		n.Flags |= FlagArith
	}
	n.Refs = 1
	idx, err := g.nodes.Alloc(n)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrGraphFull, err))
	}
	g.Retain(n.Prev)
	return NodeID(idx), nil
}

// SetPrev sequences id after prev, replacing any earlier side-effect edge.
func (g *Graph) SetPrev(id, prev NodeID) {
	n := g.MustNode(id)
	if n.Prev == prev {
		return
	}
	g.Retain(prev)
	old := n.Prev
	n.Prev = prev
	g.Release(old)
}

// BindVar marks id as the load of variable v. An existing binding wins.
func (g *Graph) BindVar(id NodeID, v VarID) {
	n := g.MustNode(id)
	if n.Var != NoVar {
		return
	}
	n.Var = v
	n.Flags |= FlagLvalue
}
