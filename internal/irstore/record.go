package irstore

import (
	"encoding/binary"
	"fmt"

	"scc/internal/ir"
)

// RecordSize is the encoded size of a NodeRecord.
const RecordSize = 27

// NodeRecord is the persisted form of a node. Field order and widths are
// the on-disk layout, little endian:
//
//	kind u8 | left u32 | right u32 | prev u32 | next u32 | type u32 |
//	refs i16 | visits u16 | reg u8 | flags u8
type NodeRecord struct {
	Kind   ir.Kind
	Left   Offset // sole operand for one-operand kinds
	Right  Offset
	Prev   Offset
	Next   Offset // scheduled successor
	Type   Offset
	Refs   int16
	Visits uint16
	RegNum uint8
	Flags  ir.Flags
}

// Encode appends the record to dst.
func (r *NodeRecord) Encode(dst []byte) []byte {
	le := binary.LittleEndian
	dst = append(dst, byte(r.Kind))
	dst = le.AppendUint32(dst, uint32(r.Left))
	dst = le.AppendUint32(dst, uint32(r.Right))
	dst = le.AppendUint32(dst, uint32(r.Prev))
	dst = le.AppendUint32(dst, uint32(r.Next))
	dst = le.AppendUint32(dst, uint32(r.Type))
	dst = le.AppendUint16(dst, uint16(r.Refs))
	dst = le.AppendUint16(dst, r.Visits)
	dst = append(dst, r.RegNum, byte(r.Flags))
	return dst
}

// DecodeRecord parses a record produced by Encode.
func DecodeRecord(b []byte) (NodeRecord, error) {
	if len(b) != RecordSize {
		return NodeRecord{}, fmt.Errorf("%w: node record of %d bytes", ErrShortRecord, len(b))
	}
	le := binary.LittleEndian
	r := NodeRecord{
		Kind:   ir.Kind(b[0]),
		Left:   Offset(le.Uint32(b[1:])),
		Right:  Offset(le.Uint32(b[5:])),
		Prev:   Offset(le.Uint32(b[9:])),
		Next:   Offset(le.Uint32(b[13:])),
		Type:   Offset(le.Uint32(b[17:])),
		Refs:   int16(le.Uint16(b[21:])),
		Visits: le.Uint16(b[23:]),
		RegNum: b[25],
		Flags:  ir.Flags(b[26]),
	}
	if !r.Kind.Valid() {
		return NodeRecord{}, fmt.Errorf("irstore: unknown node kind %d", b[0])
	}
	return r, nil
}
