package irstore

import (
	"errors"
	"fmt"

	"scc/internal/ir"
	"scc/internal/types"
)

var (
	// ErrUnwritten reports an edge to a node that is not in the spilled order.
	ErrUnwritten = errors.New("irstore: edge to unwritten node")
	// ErrNotFound reports a location without a written-node summary.
	ErrNotFound = errors.New("irstore: no written node at location")
	// ErrStale reports a record that no longer matches its summary.
	ErrStale = errors.New("irstore: record does not match summary")
)

// WrittenNode summarizes a node record that has been written. Var is set
// only for lvalue loads and links the record back to the variable whose
// value it read.
type WrittenNode struct {
	Loc     Offset   `msgpack:"loc"`
	Kind    ir.Kind  `msgpack:"k"`
	Flags   ir.Flags `msgpack:"f"`
	TypeLoc Offset   `msgpack:"t"`
	Var     ir.VarID `msgpack:"v,omitempty"`
}

// Spilled is the result of writing one scheduled order.
type Spilled struct {
	Head  Offset
	Tail  Offset
	Nodes []WrittenNode // in scheduled order
}

// Spiller writes graph nodes and their types into a Store. Locations are
// remembered across calls, so several orders sharing types or nodes can be
// spilled into one store.
type Spiller struct {
	g        *ir.Graph
	store    Store
	typeLocs map[types.TypeID]Offset
	nodeLocs map[ir.NodeID]Offset
	reader   *Reader
}

// NewSpiller returns a spiller writing into store.
func NewSpiller(g *ir.Graph, store Store) *Spiller {
	return &Spiller{
		g:        g,
		store:    store,
		typeLocs: make(map[types.TypeID]Offset),
		nodeLocs: make(map[ir.NodeID]Offset),
		reader:   NewReader(store, nil),
	}
}

// Reader returns a reader over everything spilled so far.
func (s *Spiller) Reader() *Reader {
	return s.reader
}

// Loc returns the location a node was written to.
func (s *Spiller) Loc(id ir.NodeID) (Offset, bool) {
	loc, ok := s.nodeLocs[id]
	return loc, ok
}

// TypeLoc returns the location a type was written to.
func (s *Spiller) TypeLoc(id types.TypeID) (Offset, bool) {
	loc, ok := s.typeLocs[id]
	return loc, ok
}

// Spill writes the order starting at head, which must come from the
// scheduler. Each record's Next location is patched once its successor has
// been written.
func (s *Spiller) Spill(head ir.NodeID) (Spilled, error) {
	var (
		out     Spilled
		last    NodeRecord
		lastLoc Offset
	)
	for id := head; id != ir.NoNode; {
		n := s.g.MustNode(id)
		rec, err := s.record(id, n)
		if err != nil {
			return out, err
		}
		loc, err := s.store.Put(rec.Encode(nil))
		if err != nil {
			return out, fmt.Errorf("irstore: write node %d: %w", id, err)
		}
		s.nodeLocs[id] = loc
		if lastLoc != NoOffset {
			last.Next = loc
			if err := s.store.Set(lastLoc, last.Encode(nil)); err != nil {
				return out, fmt.Errorf("irstore: patch %d: %w", lastLoc, err)
			}
		} else {
			out.Head = loc
		}
		w := WrittenNode{Loc: loc, Kind: n.Kind, Flags: n.Flags, TypeLoc: rec.Type}
		if n.Flags&ir.FlagLvalue != 0 {
			w.Var = n.Var
		}
		s.reader.add(w)
		out.Nodes = append(out.Nodes, w)
		last, lastLoc = rec, loc
		id = n.SortedNext
	}
	out.Tail = lastLoc
	return out, nil
}

func (s *Spiller) record(id ir.NodeID, n *ir.Node) (NodeRecord, error) {
	rec := NodeRecord{
		Kind:   n.Kind,
		Refs:   n.Refs,
		Visits: n.Visits,
		RegNum: n.RegNum,
		Flags:  n.Flags,
	}
	var err error
	if rec.Type, err = s.spillType(n.Type); err != nil {
		return rec, fmt.Errorf("irstore: node %d: %w", id, err)
	}
	edge := func(to ir.NodeID) (Offset, error) {
		if to == ir.NoNode {
			return NoOffset, nil
		}
		loc, ok := s.nodeLocs[to]
		if !ok {
			return NoOffset, fmt.Errorf("%w: %d -> %d", ErrUnwritten, id, to)
		}
		return loc, nil
	}
	switch ir.Arity(n.Kind) {
	case 2:
		if rec.Right, err = edge(n.Right); err != nil {
			return rec, err
		}
		fallthrough
	case 1:
		if rec.Left, err = edge(n.Left); err != nil {
			return rec, err
		}
	}
	if rec.Prev, err = edge(n.Prev); err != nil {
		return rec, err
	}
	return rec, nil
}

// spillType writes id and every sub-type it reaches, children first.
func (s *Spiller) spillType(id types.TypeID) (Offset, error) {
	if id == types.NoTypeID {
		return NoOffset, nil
	}
	if loc, ok := s.typeLocs[id]; ok {
		return loc, nil
	}
	tt := s.g.Types
	stack := []types.TypeID{id}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if _, done := s.typeLocs[top]; done {
			stack = stack[:len(stack)-1]
			continue
		}
		pending := false
		for _, c := range s.subTypes(top) {
			if _, done := s.typeLocs[c]; !done {
				stack = append(stack, c)
				pending = true
			}
		}
		if pending {
			continue
		}
		stack = stack[:len(stack)-1]
		b, err := encodeType(s.typeRecord(tt.MustLookup(top), top))
		if err != nil {
			return NoOffset, err
		}
		loc, err := s.store.Put(b)
		if err != nil {
			return NoOffset, fmt.Errorf("irstore: write type %d: %w", top, err)
		}
		s.typeLocs[top] = loc
	}
	return s.typeLocs[id], nil
}

func (s *Spiller) subTypes(id types.TypeID) []types.TypeID {
	tt := s.g.Types
	ty := tt.MustLookup(id)
	var out []types.TypeID
	for _, f := range tt.FieldList(id) {
		out = append(out, f.Type)
	}
	for _, p := range tt.ParamList(id) {
		out = append(out, p.Type)
	}
	if ty.Elem != types.NoTypeID {
		out = append(out, ty.Elem)
	}
	return out
}

// typeRecord assumes every sub-type already has a location.
func (s *Spiller) typeRecord(ty *types.Type, id types.TypeID) *TypeRecord {
	tt := s.g.Types
	rec := &TypeRecord{
		Kind:    ty.Kind,
		Storage: ty.Storage,
		Qual:    ty.Qual,
		Sign:    ty.Sign,
		Spec:    ty.Spec,
		Elem:    s.typeLocs[ty.Elem],
		Count:   ty.Count,
		Size:    ty.Size,
		Align:   ty.Align,
	}
	switch body := ty.Body.(type) {
	case types.Opaque:
		rec.Opaque = true
		rec.Tag = body.Name
	case types.Fields:
		rec.Tag = body.Tag
		for _, f := range tt.FieldList(id) {
			rec.Fields = append(rec.Fields, FieldRecord{
				Name:   f.Name,
				Hash:   f.Hash,
				Type:   s.typeLocs[f.Type],
				Offset: f.Offset,
			})
		}
	}
	for _, p := range tt.ParamList(id) {
		rec.Params = append(rec.Params, ParamRecord{Name: p.Name, Type: s.typeLocs[p.Type]})
	}
	return rec
}
