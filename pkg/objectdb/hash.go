package objectdb

import (
	"encoding/binary"
	"sort"

	"golang.org/x/crypto/sha3"
)

// Codec is the explicit, per-entity serialization contract spec.md §9
// calls for in place of the source's macro-driven reflection: every
// entity type implements Encode deterministically (field order fixed by
// the implementation, no map iteration) so that Index.Hash and the
// object-database snapshot writer (pkg/storage) produce a single,
// reproducible byte stream.
type Codec interface {
	Encode() []byte
}

// Hash returns a deterministic digest of every live entity in ix, sorted
// by instance id. Used to verify the "undo round-trip" testable property
// of spec.md §8: committing then undoing a session must restore this
// hash exactly, and replaying a block from the same starting state must
// reproduce the same hash.
func (ix *Index[T]) Hash() [32]byte {
	instances := make([]uint64, 0, len(ix.byID))
	for inst := range ix.byID {
		instances = append(instances, inst)
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i] < instances[j] })

	h := sha3.New256()
	var lenBuf [8]byte
	for _, inst := range instances {
		v := ix.byID[inst]
		var b []byte
		if c, ok := any(v).(Codec); ok {
			b = c.Encode()
		}
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
		h.Write(lenBuf[:])
		h.Write(b)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
