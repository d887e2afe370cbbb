package bbolt

import (
	"context"
	"encoding/binary"
	"errors"

	"go.etcd.io/bbolt"

	"github.com/driftwatch-project/driftwatch/internal/store"
)

// SaveSnapshot stores a full snapshot and bumps the counter.
func (s *Store) SaveSnapshot(
	_ context.Context,
	target string,
	snap *store.Snapshot,
) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		rev, err := s.claimNextRevision(tx, target)
		if err != nil {
			return err
		}
		snap.ID = rev

		payload, err := s.codec.Marshal(snap)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSnapshots).Put(keyTargetRevision(target, rev), payload)
	})
}

// SaveChangeSet stores the change set under its already-claimed revision.
func (s *Store) SaveChangeSet(
	_ context.Context,
	target string,
	cs *store.ChangeSet,
) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		payload, err := s.codec.Marshal(cs)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketChangeSets).Put(keyTargetRevision(target, cs.Revision), payload)
	})
}

func (s *Store) GetSnapshot(_ context.Context, target string, rev store.RevisionID) (*store.Snapshot, error) {
	var snap store.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketSnapshots).Get(keyTargetRevision(target, rev))
		if v == nil {
			return store.ErrNotFound
		}
		return s.codec.Unmarshal(v, &snap)
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) GetChangeSet(_ context.Context, target string, rev store.RevisionID) (*store.ChangeSet, error) {
	var cs store.ChangeSet
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketChangeSets).Get(keyTargetRevision(target, rev))
		if v == nil {
			return store.ErrNotFound
		}
		return s.codec.Unmarshal(v, &cs)
	})
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

// GetLatestRevision returns the highest committed revision for target.
func (s *Store) GetLatestRevision(
	_ context.Context,
	target string,
) (store.RevisionID, error) {
	// check cache first
	s.counterMu.RLock()
	if next, ok := s.counter[target]; ok {
		s.counterMu.RUnlock()
		return store.RevisionID(next - 1), nil
	}
	s.counterMu.RUnlock()

	var next uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketLatest).Get([]byte(target))
		if v == nil {
			return store.ErrNotFound
		}
		next = binary.BigEndian.Uint64(v)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.counterMu.Lock()
	s.counter[target] = next
	s.counterMu.Unlock()
	return store.RevisionID(next - 1), nil
}

// errWalkStopped unwinds a walk the callback ended early.
var errWalkStopped = errors.New("walk stopped")

// WalkRevisions iterates the snapshots bucket in key order and pairs each
// snapshot with its change set, when one exists.
func (s *Store) WalkRevisions(fn func(target string, rev store.RevisionID, snap *store.Snapshot, cs *store.ChangeSet) bool) error {
	err := s.db.View(func(tx *bbolt.Tx) error {
		changeSets := tx.Bucket(bucketChangeSets)
		return tx.Bucket(bucketSnapshots).ForEach(func(k, v []byte) error {
			target, rev, err := splitKey(k)
			if err != nil {
				return err
			}
			var snap store.Snapshot
			if err := s.codec.Unmarshal(v, &snap); err != nil {
				return err
			}
			var cs *store.ChangeSet
			if raw := changeSets.Get(k); raw != nil {
				cs = &store.ChangeSet{}
				if err := s.codec.Unmarshal(raw, cs); err != nil {
					return err
				}
			}
			if !fn(target, rev, &snap, cs) {
				return errWalkStopped
			}
			return nil
		})
	})
	if errors.Is(err, errWalkStopped) {
		return nil
	}
	return err
}
