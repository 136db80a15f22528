// Package ir implements the node graph: a DAG of typed value and effect
// nodes addressed by NodeID, with explicit reference counting.
package ir

import (
	"errors"
	"fmt"
	"strings"

	"scc/internal/types"
)

// NodeID addresses a node slot inside a Graph.
type NodeID uint32

// NoNode marks an absent edge.
const NoNode NodeID = 0

// VarID addresses a variable slot; the scope package owns the table.
type VarID uint32

// NoVar marks a node that is not a variable load.
const NoVar VarID = 0

// Flags is the per-node flag byte.
type Flags uint8

const (
	FlagDumped    Flags = 1 << iota // visited by the graph dump
	FlagArith                       // result has arithmetic type
	FlagLvalue                      // load of a variable's current value
	FlagLeftSeen                    // left edge printed by the dump
	FlagRightSeen                   // right edge printed by the dump
	FlagPrevSeen                    // previous edge printed by the dump
	FlagScheduled                   // placed in the order by the scheduler
)

// DumpFlags are the bits owned by debug tooling.
const DumpFlags = FlagDumped | FlagLeftSeen | FlagRightSeen | FlagPrevSeen

func (f Flags) String() string {
	if f == 0 {
		return "-"
	}
	names := []string{"dumped", "arith", "lvalue", "left", "right", "prev", "sched"}
	var parts []string
	for i, n := range names {
		if f&(1<<i) != 0 {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "|")
}

// Node is one IR value or effect.
type Node struct {
	Kind       Kind
	Left       NodeID // sole operand for one-operand kinds
	Right      NodeID
	Prev       NodeID // side effect that must execute first
	SortedNext NodeID // written by the scheduler
	Type       types.TypeID
	Refs       int16
	Visits     uint16
	PathLen    uint32
	RegNum     uint8 // reserved for the code generator
	Flags      Flags
	Value      int64  // literal value
	Callee     string // call target
	Var        VarID  // set for lvalue loads
}

var (
	// ErrGraphFull reports that no node slot could be allocated.
	ErrGraphFull = errors.New("ir: graph full")
	// ErrArity reports a builder used with a kind of another operand class.
	ErrArity = errors.New("ir: operand count does not match kind")
	// ErrDeadNode reports an operand handle that is not live.
	ErrDeadNode = errors.New("ir: dead node")
)

// Operands returns the operand edges the kind defines, in left-right order.
func (n *Node) Operands() []NodeID {
	switch Arity(n.Kind) {
	case 1:
		return []NodeID{n.Left}
	case 2:
		return []NodeID{n.Left, n.Right}
	default:
		return nil
	}
}

func (n *Node) String() string {
	var sb strings.Builder
	sb.WriteString(n.Kind.String())
	switch n.Kind {
	case KindLiteral:
		fmt.Fprintf(&sb, " %d", n.Value)
	case KindCall:
		fmt.Fprintf(&sb, " %s", n.Callee)
	}
	return sb.String()
}
