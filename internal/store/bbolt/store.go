package bbolt

import (
	"fmt"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/driftwatch-project/driftwatch/internal/store"
)

var (
	bucketSnapshots  = []byte("snapshots")  // <target>|rev -> Snapshot
	bucketChangeSets = []byte("changesets") // <target>|rev -> ChangeSet
	bucketLatest     = []byte("latest")     // <target>     -> uint64(nextRev)
)

type Store struct {
	db    *bbolt.DB
	codec store.Codec

	counterMu sync.RWMutex
	counter   map[string]uint64 // target -> next revision number
}

var _ store.SnapshotStore = (*Store)(nil)

// New opens (or creates) a BoltDB database file. Pass nil for codec to use
// the default MessagePack implementation. With durable set, every commit
// is fsynced; disabling it trades crash safety for throughput.
func New(path string, codec store.Codec, durable bool) (*Store, error) {
	if codec == nil {
		codec = store.DefaultCodec
	}
	db, err := bbolt.Open(path, 0666, &bbolt.Options{
		Timeout:      0,
		NoSync:       !durable,
		FreelistType: bbolt.FreelistMapType,
	})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketSnapshots, bucketChangeSets, bucketLatest} {
			if _, e := tx.CreateBucketIfNotExists(b); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create default buckets: %w", err)
	}
	return &Store{
		db:      db,
		codec:   codec,
		counter: make(map[string]uint64),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
