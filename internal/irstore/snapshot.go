package irstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// snapshotSchema is bumped whenever Snapshot or a record layout changes.
const snapshotSchema uint16 = 1

// ErrSchema reports a snapshot written by an incompatible version.
var ErrSchema = errors.New("irstore: snapshot schema mismatch")

// Snapshot is a spilled store saved for a later phase.
type Snapshot struct {
	Schema  uint16        `msgpack:"schema"`
	Unit    string        `msgpack:"unit"`
	PtrSize uint32        `msgpack:"ptr"`
	Head    Offset        `msgpack:"head"`
	Tail    Offset        `msgpack:"tail"`
	Store   []byte        `msgpack:"store"`
	Written []WrittenNode `msgpack:"written"`
}

// NewSnapshot captures mem and the summaries of one spilled order.
func NewSnapshot(unit string, ptrSize uint32, mem *Mem, sp Spilled) *Snapshot {
	return &Snapshot{
		Schema:  snapshotSchema,
		Unit:    unit,
		PtrSize: ptrSize,
		Head:    sp.Head,
		Tail:    sp.Tail,
		Store:   mem.Bytes(),
		Written: sp.Nodes,
	}
}

// Reader opens the snapshot's store for re-reading.
func (s *Snapshot) Reader() *Reader {
	mem := &Mem{buf: s.Store}
	if len(mem.buf) == 0 {
		mem.buf = []byte{0}
	}
	return NewReader(mem, s.Written)
}

// SaveSnapshot writes snap to path atomically.
func SaveSnapshot(path string, snap *Snapshot) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
	}()
	if err = msgpack.NewEncoder(f).Encode(snap); err != nil {
		_ = f.Close()
		return fmt.Errorf("irstore: encode snapshot: %w", err)
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// LoadSnapshot reads a snapshot written by SaveSnapshot.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var snap Snapshot
	if err := msgpack.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("irstore: decode snapshot %s: %w", path, err)
	}
	if snap.Schema != snapshotSchema {
		return nil, fmt.Errorf("%w: %s has %d, want %d", ErrSchema, path, snap.Schema, snapshotSchema)
	}
	return &snap, nil
}
