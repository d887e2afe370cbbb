package bbolt

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/driftwatch-project/driftwatch/internal/store"
)

// keyTargetRevision builds the composite key <target>|bigendian(rev).
// Target names must not contain '|'.
func keyTargetRevision(target string, rev store.RevisionID) []byte {
	buf := make([]byte, len(target)+1+8)
	copy(buf, target)
	buf[len(target)] = '|'
	binary.BigEndian.PutUint64(buf[len(target)+1:], uint64(rev))
	return buf
}

// splitKey is the inverse of keyTargetRevision.
func splitKey(key []byte) (string, store.RevisionID, error) {
	i := bytes.LastIndexByte(key, '|')
	if i < 0 || len(key)-i-1 != 8 {
		return "", 0, fmt.Errorf("malformed revision key %q", key)
	}
	return string(key[:i]), store.RevisionID(binary.BigEndian.Uint64(key[i+1:])), nil
}

// claimNextRevision atomically increments the per-target counter in
// bucketLatest *and* updates the in-memory cache. It returns the newly
// assigned revision number.
func (s *Store) claimNextRevision(tx *bbolt.Tx, target string) (store.RevisionID, error) {
	latest := tx.Bucket(bucketLatest)

	var next uint64
	if raw := latest.Get([]byte(target)); raw != nil {
		next = binary.BigEndian.Uint64(raw)
	}
	rev := store.RevisionID(next)
	next++

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := latest.Put([]byte(target), buf); err != nil {
		return 0, err
	}

	s.counterMu.Lock()
	s.counter[target] = next
	s.counterMu.Unlock()

	return rev, nil
}
