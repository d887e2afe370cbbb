package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/driftwatch-project/driftwatch/internal/store"
)

var _ store.SnapshotStore = (*Store)(nil)

// Store is a SnapshotStore backed by Badger. Keys are prefixed:
//
//	s/<target>/<rev> -> Snapshot
//	c/<target>/<rev> -> ChangeSet
//	l/<target>       -> uint64(nextRev)
//
// Revisions are encoded as 16 hex digits so lexicographic key order equals
// revision order.
type Store struct {
	db    *badger.DB
	codec store.Codec

	claimMu sync.Mutex
}

// New opens (or creates) a Badger database directory. Pass nil for codec
// to use the default MessagePack implementation.
func New(dir string, codec store.Codec, durable bool) (*Store, error) {
	if codec == nil {
		codec = store.DefaultCodec
	}
	opts := badger.
		DefaultOptions(filepath.Clean(dir)).
		WithSyncWrites(durable).
		WithCompression(options.ZSTD).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &Store{db: db, codec: codec}, nil
}

func keySnapshot(target string, rev store.RevisionID) []byte {
	return []byte(fmt.Sprintf("s/%s/%016x", target, uint64(rev)))
}

func keyChangeSet(target string, rev store.RevisionID) []byte {
	return []byte(fmt.Sprintf("c/%s/%016x", target, uint64(rev)))
}

func keyLatest(target string) []byte {
	return []byte(fmt.Sprintf("l/%s", target))
}

// SaveSnapshot claims the next revision and stores the snapshot. The claim
// is serialized with a process-wide mutex; Badger transactions alone would
// abort one of two concurrent read-modify-write counters.
func (s *Store) SaveSnapshot(_ context.Context, target string, snap *store.Snapshot) error {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		var next uint64
		item, err := txn.Get(keyLatest(target))
		switch {
		case err == nil:
			err = item.Value(func(val []byte) error {
				if len(val) != 8 {
					return fmt.Errorf("malformed latest counter for %q", target)
				}
				next = binary.BigEndian.Uint64(val)
				return nil
			})
			if err != nil {
				return err
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			// first revision of this target
		default:
			return err
		}

		snap.ID = store.RevisionID(next)
		payload, err := s.codec.Marshal(snap)
		if err != nil {
			return err
		}
		if err := txn.Set(keySnapshot(target, snap.ID), payload); err != nil {
			return err
		}

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, next+1)
		return txn.Set(keyLatest(target), buf)
	})
}

func (s *Store) SaveChangeSet(_ context.Context, target string, cs *store.ChangeSet) error {
	payload, err := s.codec.Marshal(cs)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyChangeSet(target, cs.Revision), payload)
	})
}

func (s *Store) GetSnapshot(_ context.Context, target string, rev store.RevisionID) (*store.Snapshot, error) {
	var snap store.Snapshot
	if err := s.get(keySnapshot(target, rev), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) GetChangeSet(_ context.Context, target string, rev store.RevisionID) (*store.ChangeSet, error) {
	var cs store.ChangeSet
	if err := s.get(keyChangeSet(target, rev), &cs); err != nil {
		return nil, err
	}
	return &cs, nil
}

func (s *Store) GetLatestRevision(_ context.Context, target string) (store.RevisionID, error) {
	var next uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyLatest(target))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			next = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return store.RevisionID(next - 1), nil
}

// WalkRevisions iterates all snapshot keys in order, pairing each with its
// change set when one exists.
func (s *Store) WalkRevisions(fn func(target string, rev store.RevisionID, snap *store.Snapshot, cs *store.ChangeSet) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("s/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			target, rev, err := splitSnapshotKey(item.Key())
			if err != nil {
				return err
			}

			var snap store.Snapshot
			err = item.Value(func(val []byte) error {
				return s.codec.Unmarshal(val, &snap)
			})
			if err != nil {
				return err
			}

			var cs *store.ChangeSet
			if csItem, err := txn.Get(keyChangeSet(target, rev)); err == nil {
				cs = &store.ChangeSet{}
				err = csItem.Value(func(val []byte) error {
					return s.codec.Unmarshal(val, cs)
				})
				if err != nil {
					return err
				}
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			if !fn(target, rev, &snap, cs) {
				return nil
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(key []byte, out any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return s.codec.Unmarshal(val, out)
		})
	})
}

func splitSnapshotKey(key []byte) (string, store.RevisionID, error) {
	i := bytes.LastIndexByte(key, '/')
	if i <= 2 || len(key)-i-1 != 16 {
		return "", 0, fmt.Errorf("malformed snapshot key %q", key)
	}
	var rev uint64
	if _, err := fmt.Sscanf(string(key[i+1:]), "%016x", &rev); err != nil {
		return "", 0, fmt.Errorf("malformed snapshot key %q: %w", key, err)
	}
	return string(key[2:i]), store.RevisionID(rev), nil
}
