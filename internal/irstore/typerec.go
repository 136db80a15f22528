package irstore

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"scc/internal/types"
)

// TypeRecord is the persisted form of a type. Sub-types are referenced by
// store offset and are always written before the records that use them.
type TypeRecord struct {
	Kind    types.Kind    `msgpack:"k"`
	Storage types.Storage `msgpack:"st,omitempty"`
	Qual    types.Qual    `msgpack:"q,omitempty"`
	Sign    types.Sign    `msgpack:"sg,omitempty"`
	Spec    types.Spec    `msgpack:"sp,omitempty"`
	Tag     string        `msgpack:"tag,omitempty"`
	Opaque  bool          `msgpack:"op,omitempty"`
	Fields  []FieldRecord `msgpack:"f,omitempty"`
	Elem    Offset        `msgpack:"e,omitempty"`
	Count   uint32        `msgpack:"n,omitempty"`
	Params  []ParamRecord `msgpack:"p,omitempty"`
	Size    uint32        `msgpack:"sz"`
	Align   uint32        `msgpack:"al"`
}

// FieldRecord is one persisted struct or union member.
type FieldRecord struct {
	Name   string `msgpack:"name"`
	Hash   uint64 `msgpack:"h"`
	Type   Offset `msgpack:"t"`
	Offset uint32 `msgpack:"off"`
}

// ParamRecord is one persisted function parameter.
type ParamRecord struct {
	Name string `msgpack:"name,omitempty"`
	Type Offset `msgpack:"t"`
}

// Children lists the sub-type locations in field, parameter, element order.
func (r *TypeRecord) Children() []Offset {
	var out []Offset
	for _, f := range r.Fields {
		out = append(out, f.Type)
	}
	for _, p := range r.Params {
		out = append(out, p.Type)
	}
	if r.Elem != NoOffset {
		out = append(out, r.Elem)
	}
	return out
}

func encodeType(r *TypeRecord) ([]byte, error) {
	b, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("irstore: encode type: %w", err)
	}
	return b, nil
}

// DecodeType parses a type record.
func DecodeType(b []byte) (TypeRecord, error) {
	var r TypeRecord
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return TypeRecord{}, fmt.Errorf("irstore: decode type: %w", err)
	}
	if r.Kind == types.KindInvalid {
		return TypeRecord{}, fmt.Errorf("irstore: type record without kind")
	}
	return r, nil
}
