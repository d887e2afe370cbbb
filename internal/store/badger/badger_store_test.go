package badger

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/driftwatch-project/driftwatch/internal/store"
)

var ctx = context.Background()

func TestRoundtrip(t *testing.T) {
	s, err := New(t.TempDir(), nil, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	const target = "example-site"

	if _, err := s.GetLatestRevision(ctx, target); err != store.ErrNotFound {
		t.Fatalf("fresh target: want ErrNotFound, got %v", err)
	}

	snap := &store.Snapshot{Taken: time.Now().UTC(), Data: []byte(`{"a":1}`)}
	if err := s.SaveSnapshot(ctx, target, snap); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if snap.ID != 0 {
		t.Fatalf("baseline should have ID 0, got %d", snap.ID)
	}

	snap2 := &store.Snapshot{PreviousID: snap.ID, Taken: time.Now().UTC(), Data: []byte(`{"a":2}`)}
	if err := s.SaveSnapshot(ctx, target, snap2); err != nil {
		t.Fatalf("save snapshot2: %v", err)
	}
	cs := &store.ChangeSet{Revision: snap2.ID, Records: []store.Record{{Path: "a", Kind: "changed"}}}
	if err := s.SaveChangeSet(ctx, target, cs); err != nil {
		t.Fatalf("save change set: %v", err)
	}

	latest, err := s.GetLatestRevision(ctx, target)
	if err != nil || latest != 1 {
		t.Fatalf("latest: %d, %v", latest, err)
	}

	got, err := s.GetSnapshot(ctx, target, 1)
	if err != nil || !bytes.Equal(got.Data, snap2.Data) {
		t.Fatalf("get snapshot: %+v, %v", got, err)
	}
	gotCS, err := s.GetChangeSet(ctx, target, 1)
	if err != nil || len(gotCS.Records) != 1 {
		t.Fatalf("get change set: %+v, %v", gotCS, err)
	}

	var seen int
	err = s.WalkRevisions(func(tgt string, rev store.RevisionID, snap *store.Snapshot, cs *store.ChangeSet) bool {
		if tgt != target {
			t.Fatalf("unexpected target %q", tgt)
		}
		seen++
		return true
	})
	if err != nil || seen != 2 {
		t.Fatalf("walk: seen=%d err=%v", seen, err)
	}
}
