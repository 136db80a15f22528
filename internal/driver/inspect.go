package driver

import (
	"context"
	"fmt"

	"scc/internal/ir"
	"scc/internal/irstore"
	"scc/internal/trace"
	"scc/internal/types"
)

// InspectedNode is one record of a saved snapshot, re-read in scheduled
// order.
type InspectedNode struct {
	Loc    irstore.Offset
	Kind   ir.Kind
	Left   irstore.Offset
	Right  irstore.Offset
	Prev   irstore.Offset
	Type   string
	Refs   int16
	Visits uint16
	Flags  ir.Flags
	Var    ir.VarID
}

// Inspection describes a saved snapshot.
type Inspection struct {
	Path    string
	Unit    string
	PtrSize uint32
	Bytes   int
	Nodes   []InspectedNode
}

// Inspect loads a snapshot, follows its scheduled chain and rebuilds the
// type of every node into a scratch table.
func Inspect(ctx context.Context, path string) (res *Inspection, err error) {
	_, span := trace.BeginCtx(ctx, trace.ScopeUnit, "inspect:"+path)
	defer func() {
		detail := "ok"
		if err != nil {
			detail = err.Error()
		}
		span.End(detail)
	}()

	snap, err := irstore.LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	target, ok := types.TargetByPtrSize(int(snap.PtrSize))
	if !ok {
		return nil, fmt.Errorf("%s: unsupported pointer size %d", path, snap.PtrSize)
	}
	rd := snap.Reader()
	order, err := rd.Order(snap.Head)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	tt := types.NewTable(target, types.Limits{})
	res = &Inspection{Path: path, Unit: snap.Unit, PtrSize: snap.PtrSize, Bytes: len(snap.Store)}
	names := make(map[irstore.Offset]string)
	for _, n := range order {
		rec := n.Record
		name, seen := names[rec.Type]
		if !seen {
			id, err := rd.RebuildType(tt, rec.Type)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			name = tt.String(id)
			tt.Release(id)
			names[rec.Type] = name
		}
		res.Nodes = append(res.Nodes, InspectedNode{
			Loc:    n.Loc,
			Kind:   rec.Kind,
			Left:   rec.Left,
			Right:  rec.Right,
			Prev:   rec.Prev,
			Type:   name,
			Refs:   rec.Refs,
			Visits: rec.Visits,
			Flags:  rec.Flags,
			Var:    n.Var,
		})
	}
	if st := tt.Live(); st.Types != 0 {
		return nil, fmt.Errorf("%w: %s: %d rebuilt types", ErrLeak, path, st.Types)
	}
	return res, nil
}
