package irstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scc/internal/ir"
	"scc/internal/sched"
	"scc/internal/scope"
	"scc/internal/types"
)

type fixture struct {
	t   *testing.T
	tt  *types.Table
	g   *ir.Graph
	int types.TypeID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tt := types.NewTable(types.LP64(), types.Limits{})
	intT, err := tt.NewBasic(types.Basic{Spec: types.SpecInt, Sign: types.SignSigned})
	require.NoError(t, err)
	return &fixture{t: t, tt: tt, g: ir.NewGraph(tt, 0), int: intT}
}

func (f *fixture) lit(v int64) ir.NodeID {
	id, err := f.g.Literal(f.tt.Retain(f.int), v)
	require.NoError(f.t, err)
	return id
}

func (f *fixture) bin(k ir.Kind, l, r ir.NodeID) ir.NodeID {
	id, err := f.g.Binary(k, l, r, f.tt.Retain(f.int))
	require.NoError(f.t, err)
	return id
}

func (f *fixture) ret(x ir.NodeID) ir.NodeID {
	id, err := f.g.Return(x, f.tt.Retain(f.int), ir.NoNode)
	require.NoError(f.t, err)
	return id
}

func TestRecordLayout(t *testing.T) {
	rec := NodeRecord{
		Kind:   ir.KindAdd,
		Left:   0x01020304,
		Right:  5,
		Next:   6,
		Type:   7,
		Refs:   -2,
		Visits: 0x0102,
		RegNum: 9,
		Flags:  ir.FlagArith,
	}
	want := []byte{
		byte(ir.KindAdd),
		0x04, 0x03, 0x02, 0x01,
		0x05, 0, 0, 0,
		0, 0, 0, 0,
		0x06, 0, 0, 0,
		0x07, 0, 0, 0,
		0xfe, 0xff,
		0x02, 0x01,
		0x09,
		byte(ir.FlagArith),
	}
	got := rec.Encode(nil)
	require.Len(t, got, RecordSize)
	assert.Equal(t, want, got)

	back, err := DecodeRecord(got)
	require.NoError(t, err)
	assert.Equal(t, rec, back)
}

func TestDecodeRecordRejects(t *testing.T) {
	_, err := DecodeRecord(make([]byte, RecordSize-1))
	require.ErrorIs(t, err, ErrShortRecord)

	_, err = DecodeRecord(make([]byte, RecordSize))
	require.Error(t, err)
}

func TestMemOffsets(t *testing.T) {
	m := NewMem()
	a, err := m.Put([]byte("abc"))
	require.NoError(t, err)
	b, err := m.Put([]byte("de"))
	require.NoError(t, err)
	assert.Equal(t, Offset(1), a)
	assert.Greater(t, b, a)

	got, err := m.Get(b)
	require.NoError(t, err)
	assert.Equal(t, []byte("de"), got)

	require.NoError(t, m.Set(a, []byte("xyz")))
	got, err = m.Get(a)
	require.NoError(t, err)
	assert.Equal(t, []byte("xyz"), got)

	require.ErrorIs(t, m.Set(a, []byte("toolong")), ErrShortRecord)
	_, err = m.Get(NoOffset)
	require.ErrorIs(t, err, ErrBadOffset)
	_, err = m.Get(Offset(m.Size()))
	require.ErrorIs(t, err, ErrBadOffset)
}

func TestSpillRoundTripKeepsVariableLink(t *testing.T) {
	f := newFixture(t)
	env := scope.NewEnv(f.g, 0)
	x, err := env.Declare("x", f.tt.Retain(f.int))
	require.NoError(t, err)
	five := f.lit(5)
	env.Assign(x, five)
	f.g.Release(five)

	load := env.Load(x)
	require.Equal(t, five, load)
	neg, err := f.g.Unary(ir.KindNeg, load, f.tt.Retain(f.int))
	require.NoError(t, err)
	root := f.ret(neg)

	res := sched.Schedule(f.g, root)
	sp := NewSpiller(f.g, NewMem())
	out, err := sp.Spill(res.Head)
	require.NoError(t, err)
	require.Len(t, out.Nodes, 3)

	r := sp.Reader()
	for _, id := range sched.Order(f.g, res.Head) {
		n := f.g.MustNode(id)
		loc, ok := sp.Loc(id)
		require.True(t, ok)
		typeLoc, ok := sp.TypeLoc(n.Type)
		require.True(t, ok)

		got, err := r.Reread(loc)
		require.NoError(t, err)
		assert.Equal(t, n.Kind, got.Record.Kind)
		assert.Equal(t, n.Flags, got.Record.Flags)
		assert.Equal(t, typeLoc, got.Record.Type)
		if id == five {
			assert.Equal(t, x, got.Var)
			assert.NotZero(t, got.Record.Flags&ir.FlagLvalue)
		} else {
			assert.Equal(t, ir.NoVar, got.Var)
		}
	}
	env.Close()
}

func TestSpillPatchesNext(t *testing.T) {
	f := newFixture(t)
	a := f.lit(1)
	b := f.lit(2)
	root := f.ret(f.bin(ir.KindAdd, a, b))
	res := sched.Schedule(f.g, root)

	sp := NewSpiller(f.g, NewMem())
	out, err := sp.Spill(res.Head)
	require.NoError(t, err)
	rootLoc, _ := sp.Loc(root)
	assert.Equal(t, rootLoc, out.Tail)

	order, err := sp.Reader().Order(out.Head)
	require.NoError(t, err)
	ids := sched.Order(f.g, res.Head)
	require.Len(t, order, len(ids))
	for i, id := range ids {
		loc, _ := sp.Loc(id)
		assert.Equal(t, loc, order[i].Loc)
		assert.Equal(t, f.g.MustNode(id).Kind, order[i].Record.Kind)
	}
	assert.Equal(t, NoOffset, order[len(order)-1].Record.Next)

	add := order[2].Record
	aLoc, _ := sp.Loc(a)
	bLoc, _ := sp.Loc(b)
	assert.Equal(t, aLoc, add.Left)
	assert.Equal(t, bLoc, add.Right)
	assert.Equal(t, order[2].Loc, order[3].Record.Left)
}

func TestSpillWritesSharedTypeOnce(t *testing.T) {
	f := newFixture(t)
	root := f.ret(f.bin(ir.KindMul, f.lit(3), f.lit(4)))
	res := sched.Schedule(f.g, root)

	mem := NewMem()
	sp := NewSpiller(f.g, mem)
	out, err := sp.Spill(res.Head)
	require.NoError(t, err)
	for _, w := range out.Nodes {
		assert.Equal(t, out.Nodes[0].TypeLoc, w.TypeLoc)
	}
	before := mem.Size()
	loc, err := sp.spillType(f.int)
	require.NoError(t, err)
	assert.Equal(t, out.Nodes[0].TypeLoc, loc)
	assert.Equal(t, before, mem.Size())
}

func TestSpillRejectsUnwrittenOperand(t *testing.T) {
	f := newFixture(t)
	root := f.ret(f.bin(ir.KindAdd, f.lit(1), f.lit(2)))
	res := sched.Schedule(f.g, root)

	_, err := NewSpiller(f.g, NewMem()).Spill(res.Tail)
	require.ErrorIs(t, err, ErrUnwritten)
}

func TestRereadDetectsStaleRecord(t *testing.T) {
	f := newFixture(t)
	root := f.ret(f.lit(1))
	res := sched.Schedule(f.g, root)
	mem := NewMem()
	sp := NewSpiller(f.g, mem)
	out, err := sp.Spill(res.Head)
	require.NoError(t, err)

	loc := out.Nodes[0].Loc
	b, err := mem.Get(loc)
	require.NoError(t, err)
	rec, err := DecodeRecord(b)
	require.NoError(t, err)

	rec.RegNum = 3
	require.NoError(t, mem.Set(loc, rec.Encode(nil)))
	got, err := sp.Reader().Reread(loc)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), got.Record.RegNum)

	rec.Kind = ir.KindCall
	require.NoError(t, mem.Set(loc, rec.Encode(nil)))
	_, err = sp.Reader().Reread(loc)
	require.ErrorIs(t, err, ErrStale)

	_, err = sp.Reader().Reread(loc + 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRebuildType(t *testing.T) {
	f := newFixture(t)
	tt := f.tt
	charT, err := tt.NewBasic(types.Basic{Spec: types.SpecChar})
	require.NoError(t, err)
	str, err := tt.NewPointer(charT, types.QualConst)
	require.NoError(t, err)
	node, err := tt.NewOpaque(types.Basic{Spec: types.SpecStruct}, "node")
	require.NoError(t, err)
	link, err := tt.NewPointer(node, 0)
	require.NoError(t, err)
	arr, err := tt.NewArray(tt.Retain(f.int), 4)
	require.NoError(t, err)
	rec, err := tt.NewStruct(types.Basic{Spec: types.SpecStruct, Storage: types.StorageStatic}, "entry", []types.FieldSpec{
		{Name: "name", Type: tt.Retain(str)},
		{Name: "next", Type: link},
		{Name: "vals", Type: arr},
	})
	require.NoError(t, err)
	fn, err := tt.NewFunction(tt.Retain(f.int), []types.ParamSpec{
		{Name: "e", Type: rec},
		{Name: "s", Type: str},
	})
	require.NoError(t, err)

	call, err := f.g.Call(fn, "visit", ir.NoNode)
	require.NoError(t, err)
	res := sched.Schedule(f.g, call)
	sp := NewSpiller(f.g, NewMem())
	out, err := sp.Spill(res.Head)
	require.NoError(t, err)

	tt2 := types.NewTable(types.LP64(), types.Limits{})
	id, err := sp.Reader().RebuildType(tt2, out.Nodes[0].TypeLoc)
	require.NoError(t, err)
	assert.Equal(t, tt.String(fn), tt2.String(id))
	assert.Equal(t, tt.MustLookup(rec).Size, tt2.MustLookup(tt2.ParamList(id)[0].Type).Size)

	tt2.Release(id)
	assert.Equal(t, types.Stats{}, tt2.Live())
}

func TestSnapshotSaveLoad(t *testing.T) {
	f := newFixture(t)
	env := scope.NewEnv(f.g, 0)
	x, err := env.Declare("x", f.tt.Retain(f.int))
	require.NoError(t, err)
	seven := f.lit(7)
	env.Assign(x, seven)
	f.g.Release(seven)
	root := f.ret(env.Load(x))
	res := sched.Schedule(f.g, root)

	mem := NewMem()
	sp := NewSpiller(f.g, mem)
	out, err := sp.Spill(res.Head)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "unit.scc")
	require.NoError(t, SaveSnapshot(path, NewSnapshot("unit", 8, mem, out)))

	snap, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, "unit", snap.Unit)
	assert.Equal(t, uint32(8), snap.PtrSize)

	order, err := snap.Reader().Order(snap.Head)
	require.NoError(t, err)
	require.Len(t, order, 2)
	assert.Equal(t, ir.KindLiteral, order[0].Record.Kind)
	assert.Equal(t, x, order[0].Var)
	assert.Equal(t, ir.KindReturn, order[1].Record.Kind)
	env.Close()
}

func TestLoadSnapshotSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.scc")
	snap := NewSnapshot("old", 8, NewMem(), Spilled{})
	snap.Schema = snapshotSchema + 1
	require.NoError(t, SaveSnapshot(path, snap))

	_, err := LoadSnapshot(path)
	require.ErrorIs(t, err, ErrSchema)
}
