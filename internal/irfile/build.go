package irfile

import (
	"errors"
	"fmt"

	"scc/internal/ir"
	"scc/internal/scope"
	"scc/internal/types"
)

var (
	// ErrUnknownName reports a reference to an undefined type, node or branch.
	ErrUnknownName = errors.New("unknown name")
	// ErrDuplicate reports a name defined twice.
	ErrDuplicate = errors.New("duplicate name")
	// ErrBadStmt reports a statement with a missing or invalid field.
	ErrBadStmt = errors.New("bad statement")
)

// Error locates a failure inside a document.
type Error struct {
	File    string
	Section string // "type" or "stmt"
	Index   int
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s[%d]: %v", e.File, e.Section, e.Index, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options bounds the tables a unit is built into.
type Options struct {
	Target   types.Target
	Limits   types.Limits
	MaxNodes int
	MaxVars  int
}

// Unit is a built function body. Every handle it holds is released by Close.
type Unit struct {
	Name  string
	Types *types.Table
	Graph *ir.Graph
	Env   *scope.Env
	Root  ir.NodeID

	typeNames map[string]types.TypeID
	typeOrder []string
	nodes     map[string]ir.NodeID
	branches  map[string]*scope.Branch
}

// TypeNames lists declared types in declaration order.
func (u *Unit) TypeNames() []string {
	return u.typeOrder
}

// Type returns a declared type. The handle is borrowed.
func (u *Unit) Type(name string) (types.TypeID, bool) {
	id, ok := u.typeNames[name]
	return id, ok
}

// Node returns a named node. The handle is borrowed.
func (u *Unit) Node(name string) (ir.NodeID, bool) {
	id, ok := u.nodes[name]
	return id, ok
}

// VarName returns the source name of a variable.
func (u *Unit) VarName(id ir.VarID) string {
	if v := u.Env.Var(id); v != nil {
		return v.Name
	}
	return fmt.Sprintf("v%d", id)
}

// Close releases the unit. Afterwards the graph and type table are empty.
func (u *Unit) Close() {
	for name, b := range u.branches {
		u.Env.Drop(b)
		delete(u.branches, name)
	}
	u.Env.Close()
	for name, id := range u.nodes {
		u.Graph.Release(id)
		delete(u.nodes, name)
	}
	u.Graph.Release(u.Root)
	u.Root = ir.NoNode
	for _, name := range u.typeOrder {
		u.Types.Release(u.typeNames[name])
	}
	u.typeNames, u.typeOrder = nil, nil
}

// Build replays doc into fresh tables.
func Build(doc *Document, opts Options) (*Unit, error) {
	if opts.Target.PtrSize == 0 {
		opts.Target = types.LP64()
	}
	tt := types.NewTable(opts.Target, opts.Limits)
	g := ir.NewGraph(tt, opts.MaxNodes)
	u := &Unit{
		Name:      doc.Unit,
		Types:     tt,
		Graph:     g,
		Env:       scope.NewEnv(g, opts.MaxVars),
		typeNames: make(map[string]types.TypeID),
		nodes:     make(map[string]ir.NodeID),
		branches:  make(map[string]*scope.Branch),
	}
	b := &builder{u: u, doc: doc}
	if err := b.run(); err != nil {
		u.Close()
		return nil, err
	}
	return u, nil
}

type builder struct {
	u          *Unit
	doc        *Document
	lastReturn ir.NodeID
}

func (b *builder) run() error {
	for i := range b.doc.Types {
		if err := b.declareType(&b.doc.Types[i]); err != nil {
			return &Error{File: b.doc.Path, Section: "type", Index: i, Err: err}
		}
	}
	for i := range b.doc.Stmts {
		if err := b.stmt(&b.doc.Stmts[i]); err != nil {
			return &Error{File: b.doc.Path, Section: "stmt", Index: i, Err: err}
		}
	}
	root := b.lastReturn
	if b.doc.Root != "" {
		id, ok := b.u.nodes[b.doc.Root]
		if !ok {
			return fmt.Errorf("%s: root: %w %q", b.doc.Path, ErrUnknownName, b.doc.Root)
		}
		root = id
	}
	b.u.Root = b.u.Graph.Retain(root)
	return nil
}

// typeRef returns a new handle to a declared type.
func (b *builder) typeRef(name string) (types.TypeID, error) {
	id, ok := b.u.typeNames[name]
	if !ok {
		return types.NoTypeID, fmt.Errorf("%w: type %q", ErrUnknownName, name)
	}
	return b.u.Types.Retain(id), nil
}

// nodeRef resolves a named node. The handle is borrowed.
func (b *builder) nodeRef(name string) (ir.NodeID, error) {
	id, ok := b.u.nodes[name]
	if !ok {
		return ir.NoNode, fmt.Errorf("%w: node %q", ErrUnknownName, name)
	}
	return id, nil
}

func (b *builder) varRef(name string) (ir.VarID, error) {
	if name == "" {
		return ir.NoVar, fmt.Errorf("%w: missing var", ErrBadStmt)
	}
	return b.u.Env.Lookup(name)
}

func (b *builder) bindNode(name string, id ir.NodeID) error {
	if name == "" {
		b.u.Graph.Release(id)
		return fmt.Errorf("%w: missing name", ErrBadStmt)
	}
	if _, dup := b.u.nodes[name]; dup {
		b.u.Graph.Release(id)
		return fmt.Errorf("%w: node %q", ErrDuplicate, name)
	}
	b.u.nodes[name] = id
	return nil
}

func (b *builder) stmt(s *Stmt) error {
	env := b.u.Env
	switch s.Op {
	case "node":
		id, err := b.node(s)
		if err != nil {
			return err
		}
		return b.bindNode(s.Name, id)
	case "load":
		v, err := b.varRef(s.Var)
		if err != nil {
			return err
		}
		id := env.Load(v)
		if id == ir.NoNode {
			return fmt.Errorf("%w: %q read before assignment", ErrBadStmt, s.Var)
		}
		return b.bindNode(s.Name, id)
	case "declare":
		if s.Var == "" {
			return fmt.Errorf("%w: missing var", ErrBadStmt)
		}
		ty, err := b.typeRef(s.Type)
		if err != nil {
			return err
		}
		_, err = env.Declare(s.Var, ty)
		return err
	case "assign":
		v, err := b.varRef(s.Var)
		if err != nil {
			return err
		}
		id, ok := b.u.nodes[s.Node]
		if !ok {
			return fmt.Errorf("%w: node %q", ErrUnknownName, s.Node)
		}
		env.Assign(v, id)
		return nil
	case "enter":
		env.Enter()
		return nil
	case "exit":
		if env.Depth() < 2 {
			return fmt.Errorf("%w: exit without enter", ErrBadStmt)
		}
		if s.Branch == "" {
			return fmt.Errorf("%w: missing branch", ErrBadStmt)
		}
		if _, dup := b.u.branches[s.Branch]; dup {
			return fmt.Errorf("%w: branch %q", ErrDuplicate, s.Branch)
		}
		b.u.branches[s.Branch] = env.Exit()
		return nil
	case "join":
		primary, err := b.takeBranch(s.Primary)
		if err != nil {
			return err
		}
		alts := make([]*scope.Branch, 0, len(s.Alternates))
		for _, name := range s.Alternates {
			alt, err := b.takeBranch(name)
			if err != nil {
				env.Drop(primary)
				for _, a := range alts {
					env.Drop(a)
				}
				return err
			}
			alts = append(alts, alt)
		}
		env.Join(primary, alts...)
		return nil
	case "drop":
		br, err := b.takeBranch(s.Branch)
		if err != nil {
			return err
		}
		env.Drop(br)
		return nil
	default:
		return fmt.Errorf("%w: op %q", ErrBadStmt, s.Op)
	}
}

func (b *builder) takeBranch(name string) (*scope.Branch, error) {
	br, ok := b.u.branches[name]
	if !ok {
		return nil, fmt.Errorf("%w: branch %q", ErrUnknownName, name)
	}
	delete(b.u.branches, name)
	return br, nil
}

// node builds one node. Side-effecting kinds are chained after the last
// effect of the current scope and become its new last effect.
func (b *builder) node(s *Stmt) (ir.NodeID, error) {
	kind, ok := ir.ParseKind(s.Kind)
	if !ok {
		return ir.NoNode, fmt.Errorf("%w: node kind %q", ErrBadStmt, s.Kind)
	}
	g, env := b.u.Graph, b.u.Env
	operands := []string{s.Left, s.Right}[:ir.Arity(kind)]
	refs := make([]ir.NodeID, len(operands))
	for i, name := range operands {
		if name == "" {
			return ir.NoNode, fmt.Errorf("%w: %s needs %d operands, missing #%d", ErrBadStmt, kind, len(operands), i+1)
		}
		ref, err := b.nodeRef(name)
		if err != nil {
			return ir.NoNode, err
		}
		refs[i] = ref
	}
	ty, err := b.typeRef(s.Type)
	if err != nil {
		return ir.NoNode, err
	}
	prev := env.LastEffect()

	var id ir.NodeID
	// Builders consume operand handles.
	switch len(refs) {
	case 0:
		if kind == ir.KindCall {
			id, err = g.Call(ty, s.Callee, prev)
		} else {
			id, err = g.Literal(ty, s.Value)
		}
	case 1:
		left := g.Retain(refs[0])
		if kind == ir.KindReturn {
			id, err = g.Return(left, ty, prev)
		} else {
			id, err = g.Unary(kind, left, ty)
		}
	case 2:
		id, err = g.Binary(kind, g.Retain(refs[0]), g.Retain(refs[1]), ty)
		if err == nil && kind.HasSideEffect() {
			g.SetPrev(id, prev)
		}
	}
	if err != nil {
		return ir.NoNode, err
	}
	if kind.HasSideEffect() {
		env.RecordEffect(id)
	}
	if kind == ir.KindReturn {
		b.lastReturn = id
	}
	return id, nil
}
