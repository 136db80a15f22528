package types

import "fmt"

// Release drops one reference to id. The holder that drops the last
// reference frees the type and everything it owns.
//
// Array, pointer and function result chains are walked in a loop, so a
// deeply nested declarator does not grow the stack. Field and parameter
// lists recurse once per member.
func (t *Table) Release(id TypeID) {
	for id != NoTypeID {
		ty := t.MustLookup(id)
		if ty.Refs > 1 {
			ty.Refs--
			return
		}
		if ty.Refs < 1 {
			panic(fmt.Sprintf("types: reference underflow on %d", id))
		}
		next := NoTypeID
		switch ty.Kind {
		case KindBasic:
			if body, ok := ty.Body.(Fields); ok {
				t.releaseFields(body.Head)
			}
		case KindArray, KindPointer:
			next = ty.Elem
		case KindFunction:
			t.releaseParams(ty.Params)
			next = ty.Elem
		}
		t.types.Free(uint32(id))
		id = next
	}
}

func (t *Table) releaseFields(head FieldID) {
	for f := head; f != NoField; {
		rec := t.fields.Get(uint32(f))
		if rec == nil {
			panic(fmt.Sprintf("types: dead field %d", f))
		}
		next := rec.Next
		t.Release(rec.Type)
		t.fields.Free(uint32(f))
		f = next
	}
}

func (t *Table) releaseParams(head ParamID) {
	for p := head; p != NoParam; {
		rec := t.params.Get(uint32(p))
		if rec == nil {
			panic(fmt.Sprintf("types: dead param %d", p))
		}
		next := rec.Next
		t.Release(rec.Type)
		t.params.Free(uint32(p))
		p = next
	}
}
