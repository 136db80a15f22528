package types

import (
	"github.com/zeebo/xxh3"
	"golang.org/x/text/unicode/norm"
)

// HashName hashes a member name for fast equality checks. Names are
// compared in NFC so universal character names spelled differently agree.
func HashName(name string) uint64 {
	return xxh3.HashString(norm.NFC.String(name))
}

// FieldByName finds a member of a complete struct or union.
func (t *Table) FieldByName(id TypeID, name string) (Field, bool) {
	ty, ok := t.Lookup(id)
	if !ok {
		return Field{}, false
	}
	body, ok := ty.Body.(Fields)
	if !ok {
		return Field{}, false
	}
	h := HashName(name)
	for f := body.Head; f != NoField; {
		rec := t.fields.Get(uint32(f))
		if rec.Hash == h && norm.NFC.String(rec.Name) == norm.NFC.String(name) {
			return *rec, true
		}
		f = rec.Next
	}
	return Field{}, false
}

// FieldList returns the members of a complete struct or union in order.
func (t *Table) FieldList(id TypeID) []Field {
	ty, ok := t.Lookup(id)
	if !ok {
		return nil
	}
	body, ok := ty.Body.(Fields)
	if !ok {
		return nil
	}
	var out []Field
	for f := body.Head; f != NoField; {
		rec := t.fields.Get(uint32(f))
		out = append(out, *rec)
		f = rec.Next
	}
	return out
}

// ParamList returns the parameters of a function type in order.
func (t *Table) ParamList(id TypeID) []Param {
	ty, ok := t.Lookup(id)
	if !ok || ty.Kind != KindFunction {
		return nil
	}
	var out []Param
	for p := ty.Params; p != NoParam; {
		rec := t.params.Get(uint32(p))
		out = append(out, *rec)
		p = rec.Next
	}
	return out
}
