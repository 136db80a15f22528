// Package scope tracks variables per lexical scope for a single-pass front
// end. A variable's value is the node of its last assignment; control-flow
// joins keep the values of the other paths in a phi list.
package scope

import (
	"errors"
	"fmt"
	"slices"

	"scc/internal/arena"
	"scc/internal/ir"
	"scc/internal/types"
)

var (
	// ErrUndeclared reports a lookup of an unknown name.
	ErrUndeclared = errors.New("scope: undeclared variable")
	// ErrFull reports that no variable slot could be allocated.
	ErrFull = errors.New("scope: variable table full")
)

// Variable is one incarnation of a declared name.
type Variable struct {
	Name   string
	Type   types.TypeID
	Last   ir.NodeID   // value of the last assignment
	Phi    []ir.NodeID // values contributed by other paths at joins
	Parent ir.VarID    // outer incarnation this one shadows until a join
	Refs   int32
}

// Scope is one frame of the scope stack.
type Scope struct {
	vars   map[string]ir.VarID
	order  []ir.VarID
	effect ir.NodeID
	next   *Scope
}

// Branch is what Exit leaves of a scope: the incarnations of outer
// variables and the last side effect of the scope.
type Branch struct {
	vars   []ir.VarID
	effect ir.NodeID
}

// Vars lists the incarnations carried by the branch.
func (b *Branch) Vars() []ir.VarID {
	if b == nil {
		return nil
	}
	return b.vars
}

// Env is the scope stack of one function body.
type Env struct {
	g    *ir.Graph
	vars *arena.Arena[Variable]
	top  *Scope
}

// NewEnv creates an environment with an open outermost scope. limit caps the
// number of live variables (0 means unbounded).
func NewEnv(g *ir.Graph, limit int) *Env {
	return &Env{
		g:    g,
		vars: arena.New[Variable](32, limit),
		top:  &Scope{},
	}
}

// Var returns the live variable behind id, or nil.
func (e *Env) Var(id ir.VarID) *Variable {
	return e.vars.Get(uint32(id))
}

// MustVar panics when id is not live.
func (e *Env) MustVar(id ir.VarID) *Variable {
	v := e.Var(id)
	if v == nil {
		panic(fmt.Sprintf("scope: dead or invalid VarID %d", id))
	}
	return v
}

// Live reports the number of allocated variables.
func (e *Env) Live() int {
	return e.vars.Live()
}

// Depth reports how many scopes are open.
func (e *Env) Depth() int {
	n := 0
	for s := e.top; s != nil; s = s.next {
		n++
	}
	return n
}

// Enter opens a nested scope.
func (e *Env) Enter() {
	e.top = &Scope{next: e.top}
}

// Exit closes the innermost scope. Variables declared in it are released;
// incarnations of outer variables are handed back in the Branch, which the
// caller passes to Join or Drop. The outermost scope is closed by Close.
func (e *Env) Exit() *Branch {
	s := e.top
	if s.next == nil {
		panic("scope: exit of the outermost scope")
	}
	e.top = s.next
	b := &Branch{effect: s.effect}
	for _, id := range s.order {
		if e.MustVar(id).Parent != ir.NoVar {
			b.vars = append(b.vars, id)
			continue
		}
		e.Release(id)
	}
	return b
}

// Close releases every open scope, innermost first.
func (e *Env) Close() {
	for e.top.next != nil {
		e.Drop(e.Exit())
	}
	for _, id := range e.top.order {
		e.Release(id)
	}
	e.g.Release(e.top.effect)
	e.top = &Scope{}
}

// Declare introduces name in the innermost scope. ty is consumed. A previous
// declaration of the same name in this scope is released.
func (e *Env) Declare(name string, ty types.TypeID) (ir.VarID, error) {
	id, err := e.alloc(Variable{Name: name, Type: ty})
	if err != nil {
		e.g.Types.Release(ty)
		return ir.NoVar, err
	}
	e.bindIn(e.top, name, id)
	return id, nil
}

// Lookup resolves name from the innermost scope outwards. A name found only
// in an enclosing scope gets a fresh incarnation in every scope inside the
// one that binds it, each shadowing the next one out, so assignments stay
// local until their own scope is joined back.
func (e *Env) Lookup(name string) (ir.VarID, error) {
	var path []*Scope
	for s := e.top; s != nil; s = s.next {
		outer, ok := s.vars[name]
		if !ok {
			path = append(path, s)
			continue
		}
		for i := len(path) - 1; i >= 0; i-- {
			id, err := e.incarnate(outer)
			if err != nil {
				return ir.NoVar, err
			}
			e.bindIn(path[i], name, id)
			outer = id
		}
		return outer, nil
	}
	return ir.NoVar, fmt.Errorf("%w: %s", ErrUndeclared, name)
}

// incarnate allocates a copy of outer that holds a reference to it.
func (e *Env) incarnate(outer ir.VarID) (ir.VarID, error) {
	ov := e.MustVar(outer)
	inc := Variable{
		Name:   ov.Name,
		Type:   e.g.Types.Retain(ov.Type),
		Last:   e.g.Retain(ov.Last),
		Parent: outer,
	}
	ov.Refs++
	id, err := e.alloc(inc)
	if err != nil {
		e.g.Types.Release(inc.Type)
		e.g.Release(inc.Last)
		e.Release(outer)
		return ir.NoVar, err
	}
	return id, nil
}

// Assign makes value the variable's current value. value is borrowed.
func (e *Env) Assign(id ir.VarID, value ir.NodeID) {
	v := e.MustVar(id)
	if v.Last == value {
		return
	}
	e.g.Retain(value)
	old := v.Last
	v.Last = value
	e.g.Release(old)
}

// Load returns a new handle to the variable's current value and marks the
// node as a load of the variable. Unassigned variables yield ir.NoNode.
func (e *Env) Load(id ir.VarID) ir.NodeID {
	v := e.MustVar(id)
	if v.Last == ir.NoNode {
		return ir.NoNode
	}
	e.g.BindVar(v.Last, id)
	return e.g.Retain(v.Last)
}

// RecordEffect makes n the last side effect of the innermost scope.
// n is borrowed.
func (e *Env) RecordEffect(n ir.NodeID) {
	if e.top.effect == n {
		return
	}
	e.g.Retain(n)
	old := e.top.effect
	e.top.effect = n
	e.g.Release(old)
}

// LastEffect returns the most recent side effect visible from the innermost
// scope, or ir.NoNode. The handle is borrowed.
func (e *Env) LastEffect() ir.NodeID {
	for s := e.top; s != nil; s = s.next {
		if s.effect != ir.NoNode {
			return s.effect
		}
	}
	return ir.NoNode
}

// Join merges branches that rejoin the innermost scope. The values of the
// primary branch become the current values of their outer variables; the
// values they displace and the values of the alternates go to the outer
// variables' phi lists. All branch variables are released.
//
// Side effects of every branch survive the join. The chain of each
// alternate is sequenced after the effects joined before it, and the last
// joined effect becomes the effect of the innermost scope.
func (e *Env) Join(primary *Branch, alternates ...*Branch) {
	base := e.LastEffect()
	if primary != nil {
		for _, id := range primary.vars {
			v := e.MustVar(id)
			p := e.MustVar(v.Parent)
			if v.Last != p.Last {
				if p.Last != ir.NoNode && !allReassign(e, alternates, v.Parent, p.Last) {
					e.addPhi(v.Parent, p.Last)
				}
				e.Assign(v.Parent, v.Last)
			}
			e.inheritPhi(v.Parent, id)
		}
		e.joinEffect(base, primary.effect)
	}
	for _, b := range alternates {
		if b == nil {
			continue
		}
		for _, id := range b.vars {
			v := e.MustVar(id)
			if v.Last != ir.NoNode && v.Last != e.MustVar(v.Parent).Last {
				e.addPhi(v.Parent, v.Last)
			}
			e.inheritPhi(v.Parent, id)
		}
		e.joinEffect(base, b.effect)
	}
	e.Drop(primary)
	for _, b := range alternates {
		e.Drop(b)
	}
}

// joinEffect records effect in the innermost scope. When another branch
// already left an effect since base, the oldest node of effect's chain that
// follows base is moved behind it.
func (e *Env) joinEffect(base, effect ir.NodeID) {
	if effect == ir.NoNode {
		return
	}
	cur := e.LastEffect()
	if cur != base {
		for n := effect; n != cur; {
			prev := e.g.MustNode(n).Prev
			if prev == base || prev == ir.NoNode {
				e.g.SetPrev(n, cur)
				break
			}
			n = prev
		}
	}
	e.RecordEffect(effect)
}

// Drop releases a branch that is not joined.
func (e *Env) Drop(b *Branch) {
	if b == nil {
		return
	}
	for _, id := range b.vars {
		e.Release(id)
	}
	e.g.Release(b.effect)
	b.vars, b.effect = nil, ir.NoNode
}

// Release drops one reference to a variable. The last reference releases
// its type, its value, every phi entry and then the parent incarnation.
func (e *Env) Release(id ir.VarID) {
	for id != ir.NoVar {
		v := e.MustVar(id)
		if v.Refs > 1 {
			v.Refs--
			return
		}
		if v.Refs < 1 {
			panic(fmt.Sprintf("scope: reference underflow on variable %d", id))
		}
		e.g.Types.Release(v.Type)
		e.g.Release(v.Last)
		for _, n := range v.Phi {
			e.g.Release(n)
		}
		parent := v.Parent
		e.vars.Free(uint32(id))
		id = parent
	}
}

// allReassign reports whether every alternate replaced the value orig of
// parent, so orig survives on no path. With no alternates the fall-through
// path keeps orig.
func allReassign(e *Env, alternates []*Branch, parent ir.VarID, orig ir.NodeID) bool {
	if len(alternates) == 0 {
		return false
	}
	for _, b := range alternates {
		found := false
		for _, id := range b.Vars() {
			v := e.MustVar(id)
			if v.Parent == parent && v.Last != orig {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// addPhi appends a retained handle of n unless the list already holds it.
func (e *Env) addPhi(id ir.VarID, n ir.NodeID) {
	v := e.MustVar(id)
	if slices.Contains(v.Phi, n) {
		return
	}
	v.Phi = append(v.Phi, e.g.Retain(n))
}

func (e *Env) inheritPhi(to, from ir.VarID) {
	for _, n := range e.MustVar(from).Phi {
		if n != e.MustVar(to).Last {
			e.addPhi(to, n)
		}
	}
}

func (e *Env) alloc(v Variable) (ir.VarID, error) {
	v.Refs = 1
	idx, err := e.vars.Alloc(v)
	if err != nil {
		return ir.NoVar, fmt.Errorf("%w: %w", ErrFull, err)
	}
	return ir.VarID(idx), nil
}

func (e *Env) bindIn(s *Scope, name string, id ir.VarID) {
	if s.vars == nil {
		s.vars = make(map[string]ir.VarID)
	}
	if old, ok := s.vars[name]; ok {
		s.order = slices.DeleteFunc(s.order, func(v ir.VarID) bool { return v == old })
		e.Release(old)
	}
	s.vars[name] = id
	s.order = append(s.order, id)
}
