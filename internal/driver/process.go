// Package driver runs the passes over one graph description: build,
// schedule, spill and dump.
package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"scc/internal/config"
	"scc/internal/ir"
	"scc/internal/irdot"
	"scc/internal/irfile"
	"scc/internal/irstore"
	"scc/internal/observ"
	"scc/internal/sched"
	"scc/internal/trace"
)

// DotMode selects the graph dump.
type DotMode uint8

const (
	DotNone  DotMode = iota
	DotGraph         // the DAG as built
	DotOrder         // the scheduled chain
)

// Options configures Process.
type Options struct {
	Config   config.Config
	Spill    bool
	Snapshot string // written when Spill is set and the path is not empty
	Dot      DotMode
	Types    bool
	Timer    *observ.Timer
	Observer PhaseObserver
}

// Step is one scheduled node.
type Step struct {
	Index   int
	Node    ir.NodeID
	Kind    ir.Kind
	Label   string
	Type    string
	Refs    int16
	Visits  uint16
	PathLen uint32
	Flags   ir.Flags
	Loc     irstore.Offset // set when spilled
}

// TypeLine is one rendered declared type.
type TypeLine struct {
	Name string
	Text string
}

// SpillSummary describes the store written by the spill pass.
type SpillSummary struct {
	Bytes    int
	Head     irstore.Offset
	Nodes    int
	Snapshot string
}

// Stats counts live table entries of the built unit.
type Stats struct {
	Nodes int
	Types int
	Vars  int
}

// Result is what Process reports for one unit.
type Result struct {
	Path  string
	Unit  string
	Steps []Step
	Depth uint32
	Spill *SpillSummary
	Dot   string
	Types []TypeLine
	Stats Stats
}

// ErrLeak reports handles still live after the unit was closed.
var ErrLeak = errors.New("driver: unit leaked handles")

// Process reads the description at path and runs the passes on it.
func Process(ctx context.Context, path string, opts Options) (*Result, error) {
	r := &runner{ctx: ctx, path: path, opts: opts}
	var doc *irfile.Document
	err := r.phase(PhaseParse, func() (string, error) {
		var err error
		doc, err = irfile.ParseFile(path)
		return "", err
	})
	if err != nil {
		return nil, err
	}
	return r.run(doc)
}

// ProcessDocument runs the passes on an already parsed description.
func ProcessDocument(ctx context.Context, doc *irfile.Document, opts Options) (*Result, error) {
	r := &runner{ctx: ctx, path: doc.Path, opts: opts}
	return r.run(doc)
}

type runner struct {
	ctx  context.Context
	path string
	unit string
	opts Options
}

func (r *runner) run(doc *irfile.Document) (res *Result, err error) {
	r.unit = doc.Unit
	ctx, span := trace.BeginCtx(r.ctx, trace.ScopeUnit, "unit:"+doc.Unit)
	r.ctx = ctx
	defer func() {
		detail := "ok"
		if err != nil {
			detail = err.Error()
		}
		span.End(detail)
	}()

	cfg := r.opts.Config
	var u *irfile.Unit
	err = r.phase(PhaseBuild, func() (string, error) {
		var err error
		u, err = irfile.Build(doc, irfile.Options{
			Target:   cfg.TypesTarget(),
			Limits:   cfg.TypeLimits(),
			MaxNodes: cfg.Limits.Nodes,
			MaxVars:  cfg.Limits.Vars,
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d nodes", u.Graph.Live()), nil
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		u.Close()
		if n := u.Graph.Live(); n != 0 {
			err = errors.Join(err, fmt.Errorf("%w: %s: %d nodes", ErrLeak, r.path, n))
		}
		if st := u.Types.Live(); st.Types != 0 {
			err = errors.Join(err, fmt.Errorf("%w: %s: %d types", ErrLeak, r.path, st.Types))
		}
	}()

	res = &Result{
		Path:  r.path,
		Unit:  doc.Unit,
		Stats: Stats{Nodes: u.Graph.Live(), Types: u.Types.Live().Types, Vars: u.Env.Live()},
	}

	var order sched.Result
	err = r.phase(PhaseSchedule, func() (string, error) {
		order = sched.Schedule(u.Graph, u.Root)
		res.Depth = order.Depth
		parent := trace.CurrentSpan(r.ctx).SpanID
		tr := trace.FromContext(r.ctx)
		for i, id := range sched.Order(u.Graph, order.Head) {
			n := u.Graph.MustNode(id)
			label := n.String()
			if n.Var != ir.NoVar {
				label += " (" + u.VarName(n.Var) + ")"
			}
			res.Steps = append(res.Steps, Step{
				Index:   i + 1,
				Node:    id,
				Kind:    n.Kind,
				Label:   label,
				Type:    u.Types.String(n.Type),
				Refs:    n.Refs,
				Visits:  n.Visits,
				PathLen: n.PathLen,
				Flags:   n.Flags,
			})
			trace.Point(tr, trace.ScopeNode, "node", parent, strconv.Itoa(i+1)+": "+label)
		}
		return fmt.Sprintf("%d steps, depth %d", order.Len, order.Depth), nil
	})
	if err != nil {
		return nil, err
	}

	if r.opts.Spill {
		err = r.phase(PhaseSpill, func() (string, error) {
			return r.spill(u, order, res)
		})
		if err != nil {
			return nil, err
		}
	}

	if r.opts.Dot != DotNone || r.opts.Types {
		err = r.phase(PhaseDump, func() (string, error) {
			if r.opts.Types {
				for _, name := range u.TypeNames() {
					id, _ := u.Type(name)
					res.Types = append(res.Types, TypeLine{Name: name, Text: u.Types.String(id)})
				}
			}
			var buf bytes.Buffer
			dotOpts := irdot.Options{Name: doc.Unit, Types: true, VarName: u.VarName}
			switch r.opts.Dot {
			case DotGraph:
				if err := irdot.WriteGraph(&buf, u.Graph, u.Root, dotOpts); err != nil {
					return "", err
				}
			case DotOrder:
				if err := irdot.WriteOrder(&buf, u.Graph, order.Head, dotOpts); err != nil {
					return "", err
				}
			}
			res.Dot = buf.String()
			return "", nil
		})
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *runner) spill(u *irfile.Unit, order sched.Result, res *Result) (string, error) {
	mem := irstore.NewMem()
	sp := irstore.NewSpiller(u.Graph, mem)
	out, err := sp.Spill(order.Head)
	if err != nil {
		return "", err
	}
	for i := range res.Steps {
		res.Steps[i].Loc, _ = sp.Loc(res.Steps[i].Node)
	}
	sum := &SpillSummary{Bytes: mem.Size(), Head: out.Head, Nodes: len(out.Nodes)}
	if r.opts.Snapshot != "" {
		snap := irstore.NewSnapshot(r.unit, u.Types.Target().PtrSize, mem, out)
		if err := irstore.SaveSnapshot(r.opts.Snapshot, snap); err != nil {
			return "", fmt.Errorf("save snapshot: %w", err)
		}
		sum.Snapshot = r.opts.Snapshot
	}
	res.Spill = sum
	return fmt.Sprintf("%d bytes", sum.Bytes), nil
}

// phase runs fn inside a pass span, a timer phase and observer events.
func (r *runner) phase(name string, fn func() (string, error)) error {
	ctx, span := trace.BeginCtx(r.ctx, trace.ScopePass, name)
	prev := r.ctx
	r.ctx = ctx
	defer func() { r.ctx = prev }()

	label := r.unit
	if label == "" {
		label = r.path
	}
	idx := r.opts.Timer.Begin(name, label)
	r.notify(PhaseEvent{Path: r.path, Name: name, Status: PhaseStart})
	start := time.Now()

	note, err := fn()

	elapsed := time.Since(start)
	if err != nil {
		r.opts.Timer.End(idx, "failed")
		span.End(err.Error())
		r.notify(PhaseEvent{Path: r.path, Name: name, Status: PhaseFailed, Elapsed: elapsed, Err: err})
		return err
	}
	r.opts.Timer.End(idx, note)
	span.WithExtra("unit", label).End(note)
	r.notify(PhaseEvent{Path: r.path, Name: name, Status: PhaseEnd, Elapsed: elapsed})
	return nil
}

func (r *runner) notify(ev PhaseEvent) {
	if r.opts.Observer != nil {
		r.opts.Observer(ev)
	}
}
