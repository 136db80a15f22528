// Package irdot renders node graphs as Graphviz DOT for debugging.
package irdot

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"scc/internal/ir"
)

// Options configures the dump.
type Options struct {
	Name    string                // graph name, "ir" when empty
	Types   bool                  // append the node type to labels
	VarName func(ir.VarID) string // resolves lvalue back-links; optional
}

func (o Options) graphName(def string) string {
	if o.Name != "" {
		return o.Name
	}
	return def
}

// WriteGraph writes the DAG reachable from root. Data edges are solid and
// point from a node to its operands; previous-effect edges are dotted and
// do not constrain the layout. Dump flags are cleared before returning.
func WriteGraph(w io.Writer, g *ir.Graph, root ir.NodeID, opts Options) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %s {\n", strconv.Quote(opts.graphName("ir")))
	buf.WriteString("  node [shape=box fontname=monospace];\n")

	var dumped []ir.NodeID
	stack := []ir.NodeID{}
	if root != ir.NoNode {
		stack = append(stack, root)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := g.MustNode(id)
		if n.Flags&ir.FlagDumped != 0 {
			continue
		}
		n.Flags |= ir.FlagDumped
		dumped = append(dumped, id)
		fmt.Fprintf(&buf, "  n%d [label=%s];\n", id, strconv.Quote(label(g, id, n, opts)))

		edge := func(to ir.NodeID, seen ir.Flags, attrs string) {
			if to == ir.NoNode || n.Flags&seen != 0 {
				return
			}
			n.Flags |= seen
			fmt.Fprintf(&buf, "  n%d -> n%d [%s];\n", id, to, attrs)
		}
		switch ir.Arity(n.Kind) {
		case 2:
			edge(n.Left, ir.FlagLeftSeen, `label="l"`)
			edge(n.Right, ir.FlagRightSeen, `label="r"`)
		case 1:
			edge(n.Left, ir.FlagLeftSeen, "")
		}
		edge(n.Prev, ir.FlagPrevSeen, "style=dotted constraint=false")

		// Pushed in reverse so operands are listed left to right.
		for _, next := range []ir.NodeID{n.Prev, n.Right, n.Left} {
			if next != ir.NoNode && g.MustNode(next).Flags&ir.FlagDumped == 0 {
				stack = append(stack, next)
			}
		}
	}
	buf.WriteString("}\n")

	for _, id := range dumped {
		g.MustNode(id).Flags &^= ir.DumpFlags
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteOrder writes the scheduled chain starting at head as a left to
// right sequence.
func WriteOrder(w io.Writer, g *ir.Graph, head ir.NodeID, opts Options) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %s {\n", strconv.Quote(opts.graphName("order")))
	buf.WriteString("  rankdir=LR;\n  node [shape=box fontname=monospace];\n")
	step := 0
	for id := head; id != ir.NoNode; {
		n := g.MustNode(id)
		step++
		fmt.Fprintf(&buf, "  n%d [label=%s];\n", id, strconv.Quote(fmt.Sprintf("%d: %s", step, label(g, id, n, opts))))
		if n.SortedNext != ir.NoNode {
			fmt.Fprintf(&buf, "  n%d -> n%d;\n", id, n.SortedNext)
		}
		id = n.SortedNext
	}
	buf.WriteString("}\n")
	_, err := w.Write(buf.Bytes())
	return err
}

func label(g *ir.Graph, id ir.NodeID, n *ir.Node, opts Options) string {
	s := fmt.Sprintf("#%d %s", id, n.String())
	if n.Var != ir.NoVar && opts.VarName != nil {
		s += " (" + opts.VarName(n.Var) + ")"
	}
	if opts.Types && n.Type != 0 {
		s += "\n" + g.Types.String(n.Type)
	}
	s += fmt.Sprintf("\nrefs=%d", n.Refs)
	if n.Flags&ir.FlagScheduled != 0 {
		s += fmt.Sprintf(" len=%d visits=%d", n.PathLen, n.Visits)
	}
	return s
}
