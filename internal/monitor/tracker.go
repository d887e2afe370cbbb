// Package monitor ties extraction, diffing and storage together: it polls
// targets, compares each fresh snapshot against the last committed one and
// commits a new revision whenever something changed.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog"

	"github.com/driftwatch-project/driftwatch/internal/extract"
	"github.com/driftwatch-project/driftwatch/internal/store"
	"github.com/driftwatch-project/driftwatch/pkg/structdiff"
)

// Extractor produces the current snapshot value of a target. Satisfied by
// [extract.Client].
type Extractor interface {
	Snapshot(ctx context.Context, t extract.Target) (structdiff.Value, error)
}

// Result is the outcome of one check of one target.
type Result struct {
	Target   string
	Revision store.RevisionID
	Taken    time.Time

	// First marks the baseline observation: the snapshot was stored but
	// there is no previous revision to compare against.
	First bool

	// Changes holds the records that survived the filter expression.
	// Empty on a quiet poll.
	Changes []*structdiff.Change
	Stats   structdiff.Stats
}

// Tracker checks targets against their stored history.
type Tracker struct {
	store     store.SnapshotStore
	extractor Extractor
	filter    *vm.Program // nil keeps every record
	cache     *stateCache
	log       zerolog.Logger
}

func NewTracker(st store.SnapshotStore, ex Extractor, filter *vm.Program, log zerolog.Logger) *Tracker {
	return &Tracker{
		store:     st,
		extractor: ex,
		filter:    filter,
		cache:     newStateCache(),
		log:       log,
	}
}

// Close releases the tracker's cache. The store is owned by the caller and
// stays open.
func (t *Tracker) Close() {
	t.cache.close()
}

// Check takes a fresh snapshot of target, diffs it against the last
// committed revision and commits a new one when anything changed. The
// baseline observation of a target is always committed.
//
// A new revision is committed whenever the raw comparison finds changes,
// even if the filter drops all of them; the filter shapes what gets
// reported, not what gets remembered.
func (t *Tracker) Check(ctx context.Context, target extract.Target) (*Result, error) {
	value, err := t.extractor.Snapshot(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", target.Name, err)
	}
	taken := time.Now().UTC()

	latest, err := t.store.GetLatestRevision(ctx, target.Name)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return t.commitBaseline(ctx, target.Name, value, taken)
	}

	previous, err := t.previousValue(ctx, target.Name, latest)
	if err != nil {
		return nil, err
	}

	changes, err := structdiff.Compare(previous, value, target.Diff.Options())
	if err != nil {
		return nil, fmt.Errorf("compare %s: %w", target.Name, err)
	}
	if len(changes) == 0 {
		t.log.Debug().Str("target", target.Name).Msg("no changes")
		return &Result{Target: target.Name, Revision: latest, Taken: taken}, nil
	}

	kept, err := t.applyFilter(target.Name, changes)
	if err != nil {
		return nil, err
	}

	data, err := structdiff.Encode(value)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot of %s: %w", target.Name, err)
	}
	snap := &store.Snapshot{PreviousID: latest, Taken: taken, Data: data}
	if err := t.store.SaveSnapshot(ctx, target.Name, snap); err != nil {
		return nil, fmt.Errorf("save snapshot of %s: %w", target.Name, err)
	}
	cs, err := store.NewChangeSet(snap.ID, taken, kept)
	if err != nil {
		return nil, err
	}
	if err := t.store.SaveChangeSet(ctx, target.Name, cs); err != nil {
		return nil, fmt.Errorf("save change set of %s: %w", target.Name, err)
	}
	t.cache.set(target.Name, &targetState{value: value, rev: snap.ID})

	t.log.Info().
		Str("target", target.Name).
		Str("revision", snap.ID.String()).
		Int("changes", len(changes)).
		Int("reported", len(kept)).
		Msg("committed revision")

	return &Result{
		Target:   target.Name,
		Revision: snap.ID,
		Taken:    taken,
		Changes:  kept,
		Stats:    structdiff.Summarize(kept),
	}, nil
}

func (t *Tracker) commitBaseline(ctx context.Context, name string, value structdiff.Value, taken time.Time) (*Result, error) {
	data, err := structdiff.Encode(value)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot of %s: %w", name, err)
	}
	snap := &store.Snapshot{Taken: taken, Data: data}
	if err := t.store.SaveSnapshot(ctx, name, snap); err != nil {
		return nil, fmt.Errorf("save baseline of %s: %w", name, err)
	}
	t.cache.set(name, &targetState{value: value, rev: snap.ID})

	t.log.Info().
		Str("target", name).
		Str("revision", snap.ID.String()).
		Msg("recorded baseline")

	return &Result{Target: name, Revision: snap.ID, Taken: taken, First: true}, nil
}

// previousValue serves the last committed value from the cache when it is
// still at rev, falling back to the store otherwise.
func (t *Tracker) previousValue(ctx context.Context, name string, rev store.RevisionID) (structdiff.Value, error) {
	if entry := t.cache.get(name); entry != nil && entry.rev == rev {
		return entry.value, nil
	}
	snap, err := t.store.GetSnapshot(ctx, name, rev)
	if err != nil {
		return nil, fmt.Errorf("load revision %s of %s: %w", rev, name, err)
	}
	value, err := snap.Value()
	if err != nil {
		return nil, fmt.Errorf("decode revision %s of %s: %w", rev, name, err)
	}
	t.cache.set(name, &targetState{value: value, rev: rev})
	return value, nil
}

func (t *Tracker) applyFilter(name string, changes []*structdiff.Change) ([]*structdiff.Change, error) {
	if t.filter == nil {
		return changes, nil
	}
	kept := make([]*structdiff.Change, 0, len(changes))
	for _, c := range changes {
		pass, err := expr.Run(t.filter, RecordEnv{Target: name, Record: c})
		if err != nil {
			return nil, fmt.Errorf("run filter on %s: %w", c.Path, err)
		}
		if pass.(bool) {
			kept = append(kept, c)
		}
	}
	return kept, nil
}
