package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/hyperlicked/chaincore/pkg/objectdb"
)

// ObjectStore persists a point-in-time snapshot of the object database to
// Pebble, keyed by space:type:instance, so a node can resume from disk
// instead of replaying its entire block log. Grounded on the teacher's
// PebbleStore (pkg/storage/pebble_store.go): one pebble.DB, small binary
// key prefixes, Sync writes for durability — generalized from the
// teacher's per-entity-kind methods (SaveAccount/SavePosition/SaveOrder...)
// to one generic snapshot/restore pair over any objectdb.Index[T], since
// the entity catalog here is considerably larger and already carries its
// own Encode()/Codec contract (pkg/objectdb/hash.go) the teacher's JSON
// marshaling didn't have.
type ObjectStore struct {
	db *pebble.DB
}

// NewObjectStore opens (or creates) a Pebble instance at path.
func NewObjectStore(path string) (*ObjectStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &ObjectStore{db: db}, nil
}

func (s *ObjectStore) Close() error { return s.db.Close() }

func objectKey(id objectdb.ID) []byte {
	k := make([]byte, 0, 10)
	k = append(k, byte(id.Space), byte(id.Type))
	for i := 7; i >= 0; i-- {
		k = append(k, byte(id.Instance>>(8*uint(i))))
	}
	return k
}

// SnapshotIndex writes every live entity in ix under its object key. Used
// at a maintenance boundary or clean shutdown, per spec.md §6's "compact
// serialized dump of the object database".
func SnapshotIndex[T objectdb.Entity](s *ObjectStore, ix *objectdb.Index[T]) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, v := range ix.All() {
		c, ok := any(v).(objectdb.Codec)
		if !ok {
			return fmt.Errorf("objectstore: %T does not implement Codec", v)
		}
		if err := batch.Set(objectKey(v.ID()), c.Encode(), nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

// LoadIndexKeys returns the stored Encode() bytes of every object under
// (space, typ), in object-key order; the keys themselves are not returned.
// Decoding is type-specific and left to the caller's own entity decoder,
// since Codec here is write-only (Encode, no matching Decode) by design:
// spec.md's snapshot format is meant for this node's own resumption, not
// cross-version wire compatibility.
func (s *ObjectStore) LoadIndexKeys(space objectdb.Space, typ objectdb.Type) ([][]byte, error) {
	prefix := []byte{byte(space), byte(typ)}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		v := append([]byte(nil), iter.Value()...)
		out = append(out, v)
	}
	return out, nil
}
