package types

import (
	"errors"
	"fmt"

	"scc/internal/arena"
)

var (
	// ErrTableFull reports that a type, field or parameter could not be allocated.
	ErrTableFull = errors.New("types: table full")
	// ErrTooLarge reports a type whose size does not fit in 32 bits.
	ErrTooLarge = errors.New("types: type too large")
	// ErrBadSpec reports a builder called with a specifier of the wrong class.
	ErrBadSpec = errors.New("types: specifier does not fit builder")
)

// Limits caps the number of live slots per arena; zero means unbounded.
type Limits struct {
	Types  int
	Fields int
	Params int
}

// Table owns every type of a compilation unit.
type Table struct {
	target Target
	types  *arena.Arena[Type]
	fields *arena.Arena[Field]
	params *arena.Arena[Param]
}

// NewTable creates an empty table for target.
func NewTable(target Target, limits Limits) *Table {
	return &Table{
		target: target,
		types:  arena.New[Type](64, limits.Types),
		fields: arena.New[Field](32, limits.Fields),
		params: arena.New[Param](16, limits.Params),
	}
}

// Target returns the data model the table computes sizes for.
func (t *Table) Target() Target {
	return t.target
}

// Lookup returns the live type behind id.
func (t *Table) Lookup(id TypeID) (*Type, bool) {
	ty := t.types.Get(uint32(id))
	return ty, ty != nil
}

// MustLookup panics when id is not live.
func (t *Table) MustLookup(id TypeID) *Type {
	ty, ok := t.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("types: dead or invalid TypeID %d", id))
	}
	return ty
}

// Field returns the field record behind id.
func (t *Table) Field(id FieldID) (*Field, bool) {
	f := t.fields.Get(uint32(id))
	return f, f != nil
}

// Param returns the parameter record behind id.
func (t *Table) Param(id ParamID) (*Param, bool) {
	p := t.params.Get(uint32(id))
	return p, p != nil
}

// Retain adds a reference for an additional holder of id.
func (t *Table) Retain(id TypeID) TypeID {
	if id == NoTypeID {
		return id
	}
	t.MustLookup(id).Refs++
	return id
}

// Stats counts live slots.
type Stats struct {
	Types  int
	Fields int
	Params int
}

// Live reports how many records are currently allocated.
func (t *Table) Live() Stats {
	return Stats{
		Types:  t.types.Live(),
		Fields: t.fields.Live(),
		Params: t.params.Live(),
	}
}

// IsArithmetic reports whether id names an arithmetic type.
func (t *Table) IsArithmetic(id TypeID) bool {
	ty, ok := t.Lookup(id)
	return ok && ty.IsArithmetic()
}

// Each visits every live type in id order.
func (t *Table) Each(fn func(id TypeID, ty *Type)) {
	t.types.Each(func(index uint32, v *Type) {
		fn(TypeID(index), v)
	})
}

func (t *Table) alloc(ty Type) (TypeID, error) {
	ty.Refs = 1
	idx, err := t.types.Alloc(ty)
	if err != nil {
		return NoTypeID, fmt.Errorf("%w: %w", ErrTableFull, err)
	}
	return TypeID(idx), nil
}
