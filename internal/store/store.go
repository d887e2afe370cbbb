package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// SnapshotStore persists the revision history of each watch target: one
// full snapshot per observed state plus the change set that separated it
// from the previous revision.
type SnapshotStore interface {
	// GetSnapshot loads the snapshot stored at rev for target.
	GetSnapshot(ctx context.Context, target string, rev RevisionID) (*Snapshot, error)
	// GetChangeSet loads the change set recorded alongside rev. The
	// baseline revision of a target never has one.
	GetChangeSet(ctx context.Context, target string, rev RevisionID) (*ChangeSet, error)

	// SaveSnapshot claims the next revision for target, assigns it to
	// snap.ID and persists the snapshot.
	SaveSnapshot(ctx context.Context, target string, snap *Snapshot) error
	// SaveChangeSet persists cs under its already-assigned revision.
	SaveChangeSet(ctx context.Context, target string, cs *ChangeSet) error

	// GetLatestRevision returns the highest committed revision for target,
	// or ErrNotFound when the target has never been observed.
	GetLatestRevision(ctx context.Context, target string) (RevisionID, error)

	// WalkRevisions visits every stored revision of every target in key
	// order. Return false from fn to stop early.
	WalkRevisions(fn func(target string, rev RevisionID, snap *Snapshot, cs *ChangeSet) bool) error

	Close() error
}
