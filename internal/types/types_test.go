package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable() *Table {
	return NewTable(LP64(), Limits{})
}

func mustBasic(t *testing.T, tt *Table, spec Spec) TypeID {
	t.Helper()
	id, err := tt.NewBasic(Basic{Spec: spec})
	require.NoError(t, err)
	return id
}

func TestSharedPointeeSurvivesRelease(t *testing.T) {
	tt := newTable()
	pointee := mustBasic(t, tt, SpecInt)
	tt.Retain(pointee)

	p1, err := tt.NewPointer(pointee, 0)
	require.NoError(t, err)
	p2, err := tt.NewPointer(pointee, QualConst)
	require.NoError(t, err)
	require.Equal(t, int32(2), tt.MustLookup(pointee).Refs)

	tt.Release(p1)
	ty, ok := tt.Lookup(pointee)
	require.True(t, ok, "pointee must stay live")
	assert.Equal(t, int32(1), ty.Refs)
	assert.Equal(t, SpecInt, ty.Spec)
	_, ok = tt.Lookup(p1)
	assert.False(t, ok)

	tt.Release(p2)
	assert.Equal(t, Stats{}, tt.Live())
}

func TestReleaseSharedTypeOnlyDecrements(t *testing.T) {
	tt := newTable()
	elem := mustBasic(t, tt, SpecChar)
	arr, err := tt.NewArray(elem, 8)
	require.NoError(t, err)
	tt.Retain(arr)

	tt.Release(arr)
	assert.Equal(t, int32(1), tt.MustLookup(arr).Refs)
	assert.Equal(t, int32(1), tt.MustLookup(elem).Refs)
	assert.Equal(t, 2, tt.Live().Types)
}

func TestStructReleaseIsTotalOverFieldList(t *testing.T) {
	for _, n := range []int{1, 2, 7, 64} {
		tt := newTable()
		shared := mustBasic(t, tt, SpecShort)
		fields := make([]FieldSpec, 0, n)
		for i := range n {
			ft := mustBasic(t, tt, SpecInt)
			fields = append(fields, FieldSpec{Name: "f" + strings.Repeat("x", i), Type: ft})
		}
		// one extra member shares a type with the outside world
		fields = append(fields, FieldSpec{Name: "shared", Type: tt.Retain(shared)})

		st, err := tt.NewStruct(Basic{Spec: SpecStruct}, "s", fields)
		require.NoError(t, err)
		require.Equal(t, n+1, tt.Live().Fields)
		require.Equal(t, n+2, tt.Live().Types)

		tt.Release(st)
		assert.Equal(t, 0, tt.Live().Fields, "n=%d", n)
		assert.Equal(t, 1, tt.Live().Types, "only the shared member type remains")
		assert.Equal(t, int32(1), tt.MustLookup(shared).Refs)
	}
}

func TestOpaqueStructRelease(t *testing.T) {
	tt := newTable()
	fwd, err := tt.NewOpaque(Basic{Spec: SpecUnion}, "node")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), tt.MustLookup(fwd).Size)
	assert.Equal(t, Opaque{Name: "node"}, tt.MustLookup(fwd).Body)

	ptr, err := tt.NewPointer(fwd, 0)
	require.NoError(t, err)
	tt.Release(ptr)
	assert.Equal(t, Stats{}, tt.Live())
}

func TestFunctionReleaseFreesParameters(t *testing.T) {
	tt := newTable()
	ret := mustBasic(t, tt, SpecLong)
	a := mustBasic(t, tt, SpecInt)
	cp, err := tt.NewPointer(mustBasic(t, tt, SpecChar), QualConst)
	require.NoError(t, err)

	fn, err := tt.NewFunction(ret, []ParamSpec{{Name: "a", Type: a}, {Name: "s", Type: cp}})
	require.NoError(t, err)
	assert.Equal(t, 2, tt.Live().Params)
	assert.Len(t, tt.ParamList(fn), 2)

	tt.Release(fn)
	assert.Equal(t, Stats{}, tt.Live())
}

func TestFunctionWithoutParameters(t *testing.T) {
	tt := newTable()
	fn, err := tt.NewFunction(mustBasic(t, tt, SpecVoid), nil)
	require.NoError(t, err)
	assert.Equal(t, NoParam, tt.MustLookup(fn).Params)
	assert.Equal(t, "func() void", tt.String(fn))
	tt.Release(fn)
	assert.Equal(t, Stats{}, tt.Live())
}

func TestDeepDeclaratorChainReleasesIteratively(t *testing.T) {
	tt := newTable()
	id := mustBasic(t, tt, SpecInt)
	for i := range 50000 {
		var err error
		if i%2 == 0 {
			id, err = tt.NewPointer(id, 0)
		} else {
			id, err = tt.NewArray(id, 2)
		}
		require.NoError(t, err)
	}
	tt.Release(id)
	assert.Equal(t, Stats{}, tt.Live())
}

func TestReleaseNoneIsNoop(t *testing.T) {
	tt := newTable()
	assert.NotPanics(t, func() { tt.Release(NoTypeID) })
}

func TestReleaseDeadTypePanics(t *testing.T) {
	tt := newTable()
	id := mustBasic(t, tt, SpecInt)
	tt.Release(id)
	assert.Panics(t, func() { tt.Release(id) })
}

func TestStructLayout(t *testing.T) {
	tt := newTable()
	st, err := tt.NewStruct(Basic{Spec: SpecStruct}, "mix", []FieldSpec{
		{Name: "c", Type: mustBasic(t, tt, SpecChar)},
		{Name: "i", Type: mustBasic(t, tt, SpecInt)},
		{Name: "l", Type: mustBasic(t, tt, SpecLong)},
		{Name: "s", Type: mustBasic(t, tt, SpecShort)},
	})
	require.NoError(t, err)
	ty := tt.MustLookup(st)
	assert.Equal(t, uint32(24), ty.Size)
	assert.Equal(t, uint32(8), ty.Align)

	var offsets []uint32
	for _, f := range tt.FieldList(st) {
		offsets = append(offsets, f.Offset)
	}
	assert.Equal(t, []uint32{0, 4, 8, 16}, offsets)
}

func TestUnionLayout(t *testing.T) {
	tt := NewTable(ILP32(), Limits{})
	u, err := tt.NewStruct(Basic{Spec: SpecUnion}, "u", []FieldSpec{
		{Name: "c", Type: mustBasic(t, tt, SpecChar)},
		{Name: "l", Type: mustBasic(t, tt, SpecLong)},
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(4), tt.MustLookup(u).Size)
	for _, f := range tt.FieldList(u) {
		assert.Zero(t, f.Offset)
	}
}

func TestArraySizeOverflow(t *testing.T) {
	tt := newTable()
	big, err := tt.NewArray(mustBasic(t, tt, SpecLongLong), 1<<28)
	require.NoError(t, err)
	_, err = tt.NewArray(big, 64)
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, Stats{}, tt.Live(), "failed builder releases the element it consumed")
}

func TestTableFullReleasesConsumedHandles(t *testing.T) {
	tt := NewTable(LP64(), Limits{Types: 2})
	a := mustBasic(t, tt, SpecInt)
	b := mustBasic(t, tt, SpecInt)
	_, err := tt.NewStruct(Basic{Spec: SpecStruct}, "full", []FieldSpec{{Name: "a", Type: a}, {Name: "b", Type: b}})
	require.ErrorIs(t, err, ErrTableFull)
	assert.Equal(t, Stats{}, tt.Live())
}

func TestBuilderRejectsWrongSpec(t *testing.T) {
	tt := newTable()
	_, err := tt.NewBasic(Basic{Spec: SpecStruct})
	require.ErrorIs(t, err, ErrBadSpec)
	_, err = tt.NewOpaque(Basic{Spec: SpecInt}, "x")
	require.ErrorIs(t, err, ErrBadSpec)
}

func TestFieldByName(t *testing.T) {
	tt := newTable()
	st, err := tt.NewStruct(Basic{Spec: SpecStruct}, "point", []FieldSpec{
		{Name: "x", Type: mustBasic(t, tt, SpecInt)},
		{Name: "y", Type: mustBasic(t, tt, SpecInt)},
	})
	require.NoError(t, err)

	f, ok := tt.FieldByName(st, "y")
	require.True(t, ok)
	assert.Equal(t, uint32(4), f.Offset)
	assert.Equal(t, HashName("y"), f.Hash)

	_, ok = tt.FieldByName(st, "z")
	assert.False(t, ok)
}

func TestHashNameNormalizes(t *testing.T) {
	assert.Equal(t, HashName("café"), HashName("café"))
	assert.NotEqual(t, HashName("a"), HashName("b"))
}

func TestRenderNestedStruct(t *testing.T) {
	tt := newTable()
	inner, err := tt.NewStruct(Basic{Spec: SpecStruct}, "point", []FieldSpec{
		{Name: "x", Type: mustBasic(t, tt, SpecInt)},
		{Name: "y", Type: mustBasic(t, tt, SpecInt)},
	})
	require.NoError(t, err)
	ptr, err := tt.NewPointer(mustBasic(t, tt, SpecChar), QualConst)
	require.NoError(t, err)
	outer, err := tt.NewStruct(Basic{Spec: SpecStruct, Storage: StorageStatic}, "line", []FieldSpec{
		{Name: "a", Type: inner},
		{Name: "name", Type: ptr},
	})
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, tt.Render(&sb, outer, "l"))
	want := "l: static struct line {\n" +
		"  a: struct point {\n" +
		"    x: int @0\n" +
		"    y: int @4\n" +
		"  } @0\n" +
		"  name: const *char @8\n" +
		"}\n"
	assert.Equal(t, want, sb.String())

	before := tt.Live()
	_ = tt.String(outer)
	assert.Equal(t, before, tt.Live())
}

func TestIsArithmetic(t *testing.T) {
	tt := newTable()
	i := mustBasic(t, tt, SpecInt)
	p, err := tt.NewPointer(tt.Retain(i), 0)
	require.NoError(t, err)
	assert.True(t, tt.IsArithmetic(i))
	assert.False(t, tt.IsArithmetic(p))
	assert.False(t, tt.IsArithmetic(mustBasic(t, tt, SpecVoid)))
}
