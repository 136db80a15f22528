package irstore

import (
	"cmp"
	"fmt"
	"slices"

	"scc/internal/ir"
	"scc/internal/types"
)

// Reloaded is a node record read back together with its summary back-link.
type Reloaded struct {
	Loc    Offset
	Record NodeRecord
	Var    ir.VarID
}

// Reader re-reads records through their written-node summaries.
type Reader struct {
	store   Store
	written map[Offset]WrittenNode
}

// NewReader indexes the given summaries over store.
func NewReader(store Store, written []WrittenNode) *Reader {
	r := &Reader{store: store, written: make(map[Offset]WrittenNode, len(written))}
	for _, w := range written {
		r.add(w)
	}
	return r
}

func (r *Reader) add(w WrittenNode) {
	r.written[w.Loc] = w
}

// Summary returns the written-node summary at loc.
func (r *Reader) Summary(loc Offset) (WrittenNode, bool) {
	w, ok := r.written[loc]
	return w, ok
}

// Summaries returns every summary ordered by location.
func (r *Reader) Summaries() []WrittenNode {
	out := make([]WrittenNode, 0, len(r.written))
	for _, w := range r.written {
		out = append(out, w)
	}
	slices.SortFunc(out, func(a, b WrittenNode) int { return cmp.Compare(a.Loc, b.Loc) })
	return out
}

// Reread loads the node at loc and attaches the variable back-link from its
// summary. The register slot may have changed since the write; kind, flags
// and type location may not.
func (r *Reader) Reread(loc Offset) (Reloaded, error) {
	w, ok := r.written[loc]
	if !ok {
		return Reloaded{}, fmt.Errorf("%w: %d", ErrNotFound, loc)
	}
	b, err := r.store.Get(loc)
	if err != nil {
		return Reloaded{}, err
	}
	rec, err := DecodeRecord(b)
	if err != nil {
		return Reloaded{}, fmt.Errorf("irstore: node at %d: %w", loc, err)
	}
	if rec.Kind != w.Kind || rec.Flags != w.Flags || rec.Type != w.TypeLoc {
		return Reloaded{}, fmt.Errorf("%w: %d", ErrStale, loc)
	}
	return Reloaded{Loc: loc, Record: rec, Var: w.Var}, nil
}

// Order follows Next locations from head.
func (r *Reader) Order(head Offset) ([]Reloaded, error) {
	var out []Reloaded
	for loc := head; loc != NoOffset; {
		if len(out) > len(r.written) {
			return out, fmt.Errorf("irstore: order from %d does not terminate", head)
		}
		n, err := r.Reread(loc)
		if err != nil {
			return out, err
		}
		out = append(out, n)
		loc = n.Record.Next
	}
	return out, nil
}

// ReadType loads the type record at loc.
func (r *Reader) ReadType(loc Offset) (TypeRecord, error) {
	b, err := r.store.Get(loc)
	if err != nil {
		return TypeRecord{}, err
	}
	return DecodeType(b)
}

// RebuildType recreates the type at loc and its sub-types in tt. The
// returned handle is owned by the caller.
func (r *Reader) RebuildType(tt *types.Table, loc Offset) (types.TypeID, error) {
	if loc == NoOffset {
		return types.NoTypeID, nil
	}
	built := make(map[Offset]types.TypeID)
	defer func() {
		for _, id := range built {
			tt.Release(id)
		}
	}()
	recs := make(map[Offset]*TypeRecord)
	stack := []Offset{loc}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if _, done := built[top]; done {
			stack = stack[:len(stack)-1]
			continue
		}
		rec, ok := recs[top]
		if !ok {
			tr, err := r.ReadType(top)
			if err != nil {
				return types.NoTypeID, fmt.Errorf("irstore: type at %d: %w", top, err)
			}
			rec = &tr
			recs[top] = rec
		}
		pending := false
		for _, c := range rec.Children() {
			if _, done := built[c]; !done {
				stack = append(stack, c)
				pending = true
			}
		}
		if pending {
			continue
		}
		stack = stack[:len(stack)-1]
		id, err := rebuildOne(tt, rec, built)
		if err != nil {
			return types.NoTypeID, fmt.Errorf("irstore: type at %d: %w", top, err)
		}
		built[top] = id
	}
	return tt.Retain(built[loc]), nil
}

// rebuildOne builds rec from already built sub-types. Builders consume
// their sub-type handles, so each use takes a fresh reference.
func rebuildOne(tt *types.Table, rec *TypeRecord, built map[Offset]types.TypeID) (types.TypeID, error) {
	use := func(loc Offset) types.TypeID { return tt.Retain(built[loc]) }
	b := types.Basic{Storage: rec.Storage, Qual: rec.Qual, Sign: rec.Sign, Spec: rec.Spec}
	switch rec.Kind {
	case types.KindBasic:
		switch {
		case rec.Opaque:
			return tt.NewOpaque(b, rec.Tag)
		case rec.Spec.IsAggregate():
			fields := make([]types.FieldSpec, len(rec.Fields))
			for i, f := range rec.Fields {
				fields[i] = types.FieldSpec{Name: f.Name, Type: use(f.Type)}
			}
			return tt.NewStruct(b, rec.Tag, fields)
		default:
			return tt.NewBasic(b)
		}
	case types.KindArray:
		return tt.NewArray(use(rec.Elem), rec.Count)
	case types.KindPointer:
		return tt.NewPointer(use(rec.Elem), rec.Qual)
	case types.KindFunction:
		params := make([]types.ParamSpec, len(rec.Params))
		for i, p := range rec.Params {
			params[i] = types.ParamSpec{Name: p.Name, Type: use(p.Type)}
		}
		return tt.NewFunction(use(rec.Elem), params)
	default:
		return types.NoTypeID, fmt.Errorf("unknown type kind %d", rec.Kind)
	}
}
