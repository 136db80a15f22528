// Package irstore is the offset-addressed form of the node graph. Nodes and
// types are written as records into a byte-addressable Store and refer to
// each other by store offset, so a later phase can reload them without the
// in-memory graph.
package irstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"fortio.org/safecast"
)

// Offset locates a record inside a Store.
type Offset uint32

// NoOffset marks an absent edge.
const NoOffset Offset = 0

var (
	// ErrBadOffset reports an offset that does not start a record.
	ErrBadOffset = errors.New("irstore: bad offset")
	// ErrShortRecord reports a record of unexpected length.
	ErrShortRecord = errors.New("irstore: short record")
)

// Store is the byte-addressable backing store. Records are written once by
// Put; Set may rewrite a record in place with the same length.
type Store interface {
	Get(off Offset) ([]byte, error)
	Put(rec []byte) (Offset, error)
	Set(off Offset, rec []byte) error
}

// Mem is an in-memory Store. Records are framed with a uvarint length.
// Offset 0 is a reserved header byte so NoOffset never names a record.
type Mem struct {
	buf []byte
}

// NewMem returns an empty store.
func NewMem() *Mem {
	return &Mem{buf: []byte{0}}
}

// Size reports the number of bytes in use.
func (m *Mem) Size() int {
	return len(m.buf)
}

// Bytes exposes the raw contents.
func (m *Mem) Bytes() []byte {
	return m.buf
}

func (m *Mem) frame(off Offset) (start, end int, err error) {
	if off == NoOffset || int(off) >= len(m.buf) {
		return 0, 0, fmt.Errorf("%w: %d", ErrBadOffset, off)
	}
	n, w := binary.Uvarint(m.buf[off:])
	if w <= 0 {
		return 0, 0, fmt.Errorf("%w: %d: bad frame", ErrBadOffset, off)
	}
	start = int(off) + w
	end = start + int(n)
	if n > uint64(len(m.buf)) || end > len(m.buf) {
		return 0, 0, fmt.Errorf("%w: %d: frame past end", ErrBadOffset, off)
	}
	return start, end, nil
}

// Get returns a copy of the record at off.
func (m *Mem) Get(off Offset) ([]byte, error) {
	start, end, err := m.frame(off)
	if err != nil {
		return nil, err
	}
	out := make([]byte, end-start)
	copy(out, m.buf[start:end])
	return out, nil
}

// Put appends rec and returns its offset.
func (m *Mem) Put(rec []byte) (Offset, error) {
	off, err := safecast.Conv[uint32](len(m.buf))
	if err != nil {
		return NoOffset, fmt.Errorf("irstore: store full: %w", err)
	}
	m.buf = binary.AppendUvarint(m.buf, uint64(len(rec)))
	m.buf = append(m.buf, rec...)
	return Offset(off), nil
}

// Set overwrites the record at off.
func (m *Mem) Set(off Offset, rec []byte) error {
	start, end, err := m.frame(off)
	if err != nil {
		return err
	}
	if end-start != len(rec) {
		return fmt.Errorf("%w: rewrite of %d bytes with %d", ErrShortRecord, end-start, len(rec))
	}
	copy(m.buf[start:end], rec)
	return nil
}
