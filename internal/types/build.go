package types

import (
	"fmt"

	"fortio.org/safecast"
)

// FieldSpec names a member for NewStruct. Type is consumed.
type FieldSpec struct {
	Name string
	Type TypeID
}

// ParamSpec names a parameter for NewFunction. Type is consumed.
type ParamSpec struct {
	Name string
	Type TypeID
}

// Builders take ownership of every sub-type handle they are given, also on
// failure. Callers that keep using a sub-type must Retain it first.

// NewBasic builds a scalar basic type (void, integer or enum).
func (t *Table) NewBasic(b Basic) (TypeID, error) {
	if b.Spec.IsAggregate() {
		return NoTypeID, fmt.Errorf("%w: %s needs a body", ErrBadSpec, b.Spec)
	}
	size, align := t.target.basicLayout(b.Spec)
	return t.alloc(Type{Kind: KindBasic, Basic: b, Size: size, Align: align})
}

// NewOpaque builds a struct or union known only by tag.
func (t *Table) NewOpaque(b Basic, name string) (TypeID, error) {
	if !b.Spec.IsAggregate() {
		return NoTypeID, fmt.Errorf("%w: opaque %s", ErrBadSpec, b.Spec)
	}
	return t.alloc(Type{Kind: KindBasic, Basic: b, Body: Opaque{Name: name}, Align: 1})
}

// NewStruct builds a complete struct or union and lays out its fields.
func (t *Table) NewStruct(b Basic, tag string, fields []FieldSpec) (TypeID, error) {
	if !b.Spec.IsAggregate() {
		t.releaseSpecs(fields)
		return NoTypeID, fmt.Errorf("%w: fields on %s", ErrBadSpec, b.Spec)
	}
	var (
		head, tail FieldID
		size       uint64
		maxAlign   uint32 = 1
	)
	fail := func(err error) (TypeID, error) {
		t.releaseFields(head)
		return NoTypeID, err
	}
	for i, fs := range fields {
		ft, ok := t.Lookup(fs.Type)
		if !ok {
			t.releaseSpecs(fields[i+1:])
			return fail(fmt.Errorf("field %q: dead type %d", fs.Name, fs.Type))
		}
		var offset uint64
		if b.Spec == SpecStruct {
			offset = alignUp(size, ft.Align)
			size = offset + uint64(ft.Size)
		} else {
			size = max(size, uint64(ft.Size))
		}
		maxAlign = max(maxAlign, ft.Align)
		off, err := safecast.Conv[uint32](offset)
		if err != nil {
			t.Release(fs.Type)
			t.releaseSpecs(fields[i+1:])
			return fail(fmt.Errorf("%w: field %q: %w", ErrTooLarge, fs.Name, err))
		}
		idx, err := t.fields.Alloc(Field{Name: fs.Name, Hash: HashName(fs.Name), Type: fs.Type, Offset: off})
		if err != nil {
			t.Release(fs.Type)
			t.releaseSpecs(fields[i+1:])
			return fail(fmt.Errorf("%w: %w", ErrTableFull, err))
		}
		id := FieldID(idx)
		if tail == NoField {
			head = id
		} else {
			t.fields.Get(uint32(tail)).Next = id
		}
		tail = id
	}
	total, err := safecast.Conv[uint32](alignUp(size, maxAlign))
	if err != nil {
		return fail(fmt.Errorf("%w: %s %s", ErrTooLarge, b.Spec, tag))
	}
	id, err := t.alloc(Type{
		Kind:  KindBasic,
		Basic: b,
		Body:  Fields{Tag: tag, Head: head},
		Size:  total,
		Align: maxAlign,
	})
	if err != nil {
		return fail(err)
	}
	return id, nil
}

// NewArray builds elem[count].
func (t *Table) NewArray(elem TypeID, count uint32) (TypeID, error) {
	et, ok := t.Lookup(elem)
	if !ok {
		return NoTypeID, fmt.Errorf("array element: dead type %d", elem)
	}
	size, err := safecast.Conv[uint32](uint64(et.Size) * uint64(count))
	if err != nil {
		t.Release(elem)
		return NoTypeID, fmt.Errorf("%w: array of %d: %w", ErrTooLarge, count, err)
	}
	id, err := t.alloc(Type{Kind: KindArray, Elem: elem, Count: count, Size: size, Align: et.Align})
	if err != nil {
		t.Release(elem)
		return NoTypeID, err
	}
	return id, nil
}

// NewPointer builds a pointer to pointee.
func (t *Table) NewPointer(pointee TypeID, qual Qual) (TypeID, error) {
	if _, ok := t.Lookup(pointee); !ok {
		return NoTypeID, fmt.Errorf("pointee: dead type %d", pointee)
	}
	id, err := t.alloc(Type{
		Kind:  KindPointer,
		Basic: Basic{Qual: qual},
		Elem:  pointee,
		Size:  t.target.PtrSize,
		Align: t.target.PtrAlign,
	})
	if err != nil {
		t.Release(pointee)
		return NoTypeID, err
	}
	return id, nil
}

// NewFunction builds a function type. A nil or empty params list means the
// function takes no parameters.
func (t *Table) NewFunction(result TypeID, params []ParamSpec) (TypeID, error) {
	if _, ok := t.Lookup(result); !ok {
		t.releaseParamSpecs(params)
		return NoTypeID, fmt.Errorf("function result: dead type %d", result)
	}
	var head, tail ParamID
	fail := func(err error) (TypeID, error) {
		t.releaseParams(head)
		t.Release(result)
		return NoTypeID, err
	}
	for i, ps := range params {
		idx, err := t.params.Alloc(Param{Name: ps.Name, Type: ps.Type})
		if err != nil {
			t.releaseParamSpecs(params[i:])
			return fail(fmt.Errorf("%w: %w", ErrTableFull, err))
		}
		id := ParamID(idx)
		if tail == NoParam {
			head = id
		} else {
			t.params.Get(uint32(tail)).Next = id
		}
		tail = id
	}
	id, err := t.alloc(Type{Kind: KindFunction, Elem: result, Params: head, Align: 1})
	if err != nil {
		return fail(err)
	}
	return id, nil
}

func (t *Table) releaseSpecs(fields []FieldSpec) {
	for _, f := range fields {
		t.Release(f.Type)
	}
}

func (t *Table) releaseParamSpecs(params []ParamSpec) {
	for _, p := range params {
		t.Release(p.Type)
	}
}
