package sched

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scc/internal/ir"
	"scc/internal/testkit"
	"scc/internal/types"
)

type builder struct {
	t   *testing.T
	tt  *types.Table
	g   *ir.Graph
	int types.TypeID
}

func newBuilder(t *testing.T) *builder {
	t.Helper()
	tt := types.NewTable(types.LP64(), types.Limits{})
	intT, err := tt.NewBasic(types.Basic{Spec: types.SpecInt})
	require.NoError(t, err)
	return &builder{t: t, tt: tt, g: ir.NewGraph(tt, 0), int: intT}
}

func (b *builder) lit(v int64) ir.NodeID {
	id, err := b.g.Literal(b.tt.Retain(b.int), v)
	require.NoError(b.t, err)
	return id
}

func (b *builder) un(k ir.Kind, x ir.NodeID) ir.NodeID {
	id, err := b.g.Unary(k, x, b.tt.Retain(b.int))
	require.NoError(b.t, err)
	return id
}

func (b *builder) bin(k ir.Kind, l, r ir.NodeID) ir.NodeID {
	id, err := b.g.Binary(k, l, r, b.tt.Retain(b.int))
	require.NoError(b.t, err)
	return id
}

func (b *builder) ret(x, prev ir.NodeID) ir.NodeID {
	id, err := b.g.Return(x, b.tt.Retain(b.int), prev)
	require.NoError(b.t, err)
	return id
}

func (b *builder) share(id ir.NodeID) ir.NodeID {
	return b.g.Retain(id)
}

func TestScheduleNilRoot(t *testing.T) {
	b := newBuilder(t)
	assert.Equal(t, Result{}, Schedule(b.g, ir.NoNode))
	assert.Nil(t, Order(b.g, ir.NoNode))
}

func TestScheduleSingleLiteral(t *testing.T) {
	b := newBuilder(t)
	five := b.lit(5)
	res := Schedule(b.g, five)
	assert.Equal(t, []ir.NodeID{five}, Order(b.g, res.Head))
	assert.Equal(t, uint32(1), b.g.MustNode(five).PathLen)
}

func TestScheduleReturnOfLiteral(t *testing.T) {
	b := newBuilder(t)
	five := b.lit(5)
	root := b.ret(five, ir.NoNode)

	res := Schedule(b.g, root)
	assert.Equal(t, []ir.NodeID{five, root}, Order(b.g, res.Head))
	assert.Equal(t, root, res.Tail)
	assert.Equal(t, 2, res.Len)
	assert.Equal(t, uint32(2), res.Depth)
	assert.Equal(t, uint32(2), b.g.MustNode(root).PathLen)
	assert.Equal(t, uint32(1), b.g.MustNode(five).PathLen)
	assert.Zero(t, b.g.MustNode(root).Visits)
}

func TestScheduleTieGoesLeftFirst(t *testing.T) {
	b := newBuilder(t)
	a := b.lit(1)
	c := b.lit(2)
	sum := b.bin(ir.KindAdd, a, c)
	root := b.ret(sum, ir.NoNode)

	res := Schedule(b.g, root)
	assert.Equal(t, []ir.NodeID{a, c, sum, root}, Order(b.g, res.Head))
	assert.Equal(t, uint32(3), b.g.MustNode(root).PathLen)
}

func TestScheduleLongerSubtreeFirst(t *testing.T) {
	b := newBuilder(t)
	short := b.lit(1)
	deep := b.lit(2)
	n1 := b.un(ir.KindNeg, deep)
	n2 := b.un(ir.KindBitNot, n1)
	sum := b.bin(ir.KindSub, short, n2)
	root := b.ret(sum, ir.NoNode)

	res := Schedule(b.g, root)
	assert.Equal(t, []ir.NodeID{deep, n1, n2, short, sum, root}, Order(b.g, res.Head))
}

func TestSharedNodeScheduledOnce(t *testing.T) {
	b := newBuilder(t)
	x := b.lit(3)
	b.share(x)
	b.share(x)
	p1 := b.un(ir.KindNeg, x)
	p2 := b.un(ir.KindBitNot, x)
	p3 := b.bin(ir.KindMul, p1, p2)
	root := b.ret(b.bin(ir.KindAdd, p3, x), ir.NoNode)

	res := Schedule(b.g, root)
	order := Order(b.g, res.Head)
	count := 0
	for _, id := range order {
		if id == x {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, uint16(2), b.g.MustNode(x).Visits, "three parents reach x")
	assert.Equal(t, b.g.Live(), len(order))
	assertTopological(t, b.g, order)
}

func TestPreviousEdgeOrdersEffects(t *testing.T) {
	b := newBuilder(t)
	call, err := b.g.Call(b.tt.Retain(b.int), "init", ir.NoNode)
	require.NoError(t, err)
	ptr := b.lit(64)
	store := b.bin(ir.KindStore, ptr, b.lit(1))
	b.g.SetPrev(store, call)
	b.g.Release(call)
	load := b.un(ir.KindDeref, b.lit(64))
	b.g.SetPrev(load, store)
	b.g.Release(store)
	root := b.ret(load, ir.NoNode)

	res := Schedule(b.g, root)
	order := Order(b.g, res.Head)
	assertTopological(t, b.g, order)
	assert.Less(t, slices.Index(order, call), slices.Index(order, store))
	assert.Less(t, slices.Index(order, store), slices.Index(order, load))
	assert.Zero(t, b.g.MustNode(call).Visits)
	assert.Zero(t, b.g.MustNode(store).Visits)
}

func TestPreviousDoesNotCountAsVisit(t *testing.T) {
	b := newBuilder(t)
	call, err := b.g.Call(b.tt.Retain(b.int), "f", ir.NoNode)
	require.NoError(t, err)
	// call is both the previous effect and a data operand of the return
	root := b.ret(call, call)

	Schedule(b.g, root)
	assert.Zero(t, b.g.MustNode(call).Visits)
}

func TestSameOperandTwiceIsOneParent(t *testing.T) {
	b := newBuilder(t)
	x := b.lit(7)
	b.share(x)
	sum := b.bin(ir.KindAdd, x, x)
	root := b.ret(sum, ir.NoNode)

	res := Schedule(b.g, root)
	assert.Equal(t, []ir.NodeID{x, sum, root}, Order(b.g, res.Head))
	assert.Zero(t, b.g.MustNode(x).Visits)
}

func TestRandomDAGsScheduleTopologically(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	binKinds := []ir.Kind{ir.KindAdd, ir.KindSub, ir.KindMul, ir.KindLt, ir.KindBitXor}
	for round := range 50 {
		b := newBuilder(t)
		var pool []ir.NodeID
		var effects []ir.NodeID
		for i := range 40 {
			var id ir.NodeID
			switch {
			case len(pool) < 2 || rng.IntN(4) == 0:
				id = b.lit(int64(i))
			case rng.IntN(3) == 0:
				id = b.un(ir.KindNeg, b.share(pool[rng.IntN(len(pool))]))
			default:
				l := b.share(pool[rng.IntN(len(pool))])
				r := b.share(pool[rng.IntN(len(pool))])
				id = b.bin(binKinds[rng.IntN(len(binKinds))], l, r)
			}
			if len(effects) > 0 && rng.IntN(5) == 0 {
				b.g.SetPrev(id, effects[rng.IntN(len(effects))])
				effects = append(effects, id)
			} else if rng.IntN(6) == 0 {
				effects = append(effects, id)
			}
			pool = append(pool, id)
		}
		root := b.ret(b.share(pool[len(pool)-1]), ir.NoNode)

		res := Schedule(b.g, root)
		order := Order(b.g, res.Head)
		require.Equal(t, res.Len, len(order), "round %d", round)
		assertTopological(t, b.g, order)
		assertLongestFirst(t, b.g, order)
	}
}

func TestResetAllowsRescheduling(t *testing.T) {
	b := newBuilder(t)
	x := b.lit(1)
	b.share(x)
	root := b.ret(b.bin(ir.KindAdd, x, b.un(ir.KindNeg, x)), ir.NoNode)

	first := Order(b.g, Schedule(b.g, root).Head)
	assert.Equal(t, uint16(1), b.g.MustNode(x).Visits)

	Reset(b.g, root)
	assert.Zero(t, b.g.MustNode(x).Visits)
	assert.Zero(t, b.g.MustNode(root).PathLen)
	second := Order(b.g, Schedule(b.g, root).Head)
	assert.Equal(t, first, second)
}

func TestScheduledNodesAreSkipped(t *testing.T) {
	b := newBuilder(t)
	root := b.ret(b.lit(1), ir.NoNode)
	Schedule(b.g, root)
	again := Schedule(b.g, root)
	assert.Equal(t, ir.NoNode, again.Head)
	assert.Zero(t, again.Len)
}

func TestRankIsStableDescending(t *testing.T) {
	for p := range uint32(4) {
		for l := range uint32(4) {
			for r := range uint32(4) {
				lengths := [3]uint32{p, l, r}
				want := []int{0, 1, 2}
				slices.SortStableFunc(want, func(a, b int) int {
					switch {
					case lengths[a] > lengths[b]:
						return -1
					case lengths[a] < lengths[b]:
						return 1
					}
					return 0
				})
				got := rank(p, l, r)
				assert.Equal(t, want, got[:], "p=%d l=%d r=%d", p, l, r)
			}
		}
	}
}

func assertTopological(t *testing.T, g *ir.Graph, order []ir.NodeID) {
	t.Helper()
	require.NoError(t, testkit.CheckGraph(g))
	require.NoError(t, testkit.CheckOrder(g, order))
}

// assertLongestFirst checks that for every node whose predecessors were
// both first emitted under it, the longer one was emitted first.
func assertLongestFirst(t *testing.T, g *ir.Graph, order []ir.NodeID) {
	t.Helper()
	pos := make(map[ir.NodeID]int, len(order))
	effects := make(map[ir.NodeID]bool)
	for i, id := range order {
		pos[id] = i
		if prev := g.MustNode(id).Prev; prev != ir.NoNode {
			effects[prev] = true
		}
	}
	for _, id := range order {
		n := g.MustNode(id)
		if ir.Arity(n.Kind) != 2 || n.Left == n.Right || n.Prev != ir.NoNode {
			continue
		}
		if effects[n.Left] || effects[n.Right] {
			continue
		}
		l, r := g.MustNode(n.Left), g.MustNode(n.Right)
		if l.PathLen > r.PathLen && l.Visits == 0 && r.Visits == 0 {
			assert.Less(t, pos[n.Left], pos[n.Right])
		}
	}
}
