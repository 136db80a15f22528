package driver

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scc/internal/config"
	"scc/internal/ir"
	"scc/internal/irfile"
	"scc/internal/irstore"
	"scc/internal/observ"
	"scc/internal/trace"
)

const body = `
unit = "sum"

[[type]]
name = "int"
kind = "int"

[[stmt]]
op = "declare"
var = "x"
type = "int"

[[stmt]]
op = "node"
name = "a"
kind = "lit"
type = "int"
value = 2

[[stmt]]
op = "node"
name = "b"
kind = "lit"
type = "int"
value = 3

[[stmt]]
op = "node"
name = "s"
kind = "add"
type = "int"
left = "a"
right = "b"

[[stmt]]
op = "assign"
var = "x"
node = "s"

[[stmt]]
op = "load"
name = "xs"
var = "x"

[[stmt]]
op = "node"
name = "r"
kind = "return"
type = "int"
left = "xs"
`

func writeBody(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sum.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestProcessSchedules(t *testing.T) {
	res, err := Process(context.Background(), writeBody(t), Options{Config: config.Default()})
	require.NoError(t, err)
	assert.Equal(t, "sum", res.Unit)
	require.Len(t, res.Steps, 4)
	kinds := []ir.Kind{res.Steps[0].Kind, res.Steps[1].Kind, res.Steps[2].Kind, res.Steps[3].Kind}
	assert.Equal(t, []ir.Kind{ir.KindLiteral, ir.KindLiteral, ir.KindAdd, ir.KindReturn}, kinds)
	assert.Equal(t, "add (x)", res.Steps[2].Label)
	assert.Equal(t, "int", res.Steps[2].Type)
	assert.Equal(t, uint32(3), res.Depth)
	assert.Nil(t, res.Spill)
	assert.Equal(t, Stats{Nodes: 4, Types: 1, Vars: 1}, res.Stats)
}

func TestProcessSpillWritesSnapshot(t *testing.T) {
	snapPath := filepath.Join(t.TempDir(), "sum.sccs")
	res, err := Process(context.Background(), writeBody(t), Options{
		Config:   config.Default(),
		Spill:    true,
		Snapshot: snapPath,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Spill)
	assert.Equal(t, 4, res.Spill.Nodes)
	for _, st := range res.Steps {
		assert.NotEqual(t, irstore.NoOffset, st.Loc)
	}

	snap, err := irstore.LoadSnapshot(snapPath)
	require.NoError(t, err)
	order, err := snap.Reader().Order(snap.Head)
	require.NoError(t, err)
	require.Len(t, order, 4)
	assert.Equal(t, ir.VarID(1), order[2].Var)
}

func TestProcessDumps(t *testing.T) {
	doc, err := irfile.Parse("sum.toml", []byte(body))
	require.NoError(t, err)

	res, err := ProcessDocument(context.Background(), doc, Options{Config: config.Default(), Dot: DotGraph, Types: true})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Dot, `digraph "sum"`))
	assert.Contains(t, res.Dot, "(x)")
	assert.Equal(t, []TypeLine{{Name: "int", Text: "int"}}, res.Types)

	res, err = ProcessDocument(context.Background(), doc, Options{Config: config.Default(), Dot: DotOrder})
	require.NoError(t, err)
	assert.Contains(t, res.Dot, "rankdir=LR")
}

func TestProcessReportsPhases(t *testing.T) {
	var (
		mu     sync.Mutex
		events []PhaseEvent
	)
	timer := observ.NewTimer()
	var traced bytes.Buffer
	ctx := trace.WithTracer(context.Background(), trace.NewStreamTracer(&traced, trace.LevelDebug, trace.FormatText))

	_, err := Process(ctx, writeBody(t), Options{
		Config: config.Default(),
		Spill:  true,
		Timer:  timer,
		Observer: func(ev PhaseEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	var names []string
	for _, ev := range events {
		if ev.Status == PhaseEnd {
			names = append(names, ev.Name)
		}
	}
	assert.Equal(t, []string{PhaseParse, PhaseBuild, PhaseSchedule, PhaseSpill}, names)
	assert.Len(t, timer.Report().Phases, 4)
	out := traced.String()
	assert.Contains(t, out, "→ unit:sum")
	assert.Contains(t, out, "• node (3: add (x))")
}

func TestProcessBuildErrorNamesStatement(t *testing.T) {
	doc, err := irfile.Parse("bad.toml", []byte("[[stmt]]\nop = \"assign\"\nvar = \"y\"\nnode = \"n\"\n"))
	require.NoError(t, err)
	var failed []PhaseEvent
	_, err = ProcessDocument(context.Background(), doc, Options{
		Config:   config.Default(),
		Observer: func(ev PhaseEvent) { failed = append(failed, ev) },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.toml: stmt[0]")
	require.NotEmpty(t, failed)
	assert.Equal(t, PhaseFailed, failed[len(failed)-1].Status)
}

func TestProcessHonorsNodeLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.Nodes = 2
	_, err := Process(context.Background(), writeBody(t), Options{Config: cfg})
	require.ErrorIs(t, err, ir.ErrGraphFull)
}

func TestInspectSnapshot(t *testing.T) {
	snapPath := filepath.Join(t.TempDir(), "sum.sccs")
	_, err := Process(context.Background(), writeBody(t), Options{
		Config:   config.Default(),
		Spill:    true,
		Snapshot: snapPath,
	})
	require.NoError(t, err)

	ins, err := Inspect(context.Background(), snapPath)
	require.NoError(t, err)
	assert.Equal(t, "sum", ins.Unit)
	assert.Equal(t, uint32(8), ins.PtrSize)
	require.Len(t, ins.Nodes, 4)

	kinds := make([]ir.Kind, 0, len(ins.Nodes))
	for _, n := range ins.Nodes {
		kinds = append(kinds, n.Kind)
		assert.Equal(t, "int", n.Type)
	}
	assert.Equal(t, []ir.Kind{ir.KindLiteral, ir.KindLiteral, ir.KindAdd, ir.KindReturn}, kinds)
	add := ins.Nodes[2]
	assert.Equal(t, ins.Nodes[0].Loc, add.Left)
	assert.Equal(t, ins.Nodes[1].Loc, add.Right)
	assert.Equal(t, ir.VarID(1), add.Var)
	assert.NotZero(t, add.Flags&ir.FlagLvalue)
}

func TestInspectMissingSnapshot(t *testing.T) {
	_, err := Inspect(context.Background(), filepath.Join(t.TempDir(), "none.sccs"))
	assert.Error(t, err)
}
