package bbolt

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/driftwatch-project/driftwatch/internal/store"
)

var (
	ctx    = context.Background()
	target = "example-site"
)

// TestNewAndBuckets checks that the DB opens and buckets exist.
func TestNewAndBuckets(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "db.bb"), nil, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	info, _ := os.Stat(s.db.Path())
	if info.Size() == 0 {
		t.Fatal("DB file should not be empty")
	}
}

// TestSnapshotChangeSetRoundtrip covers:
//   - claimNextRevision
//   - SaveSnapshot / SaveChangeSet
//   - GetSnapshot / GetChangeSet / GetLatestRevision
func TestSnapshotChangeSetRoundtrip(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(filepath.Join(dir, "db.bb"), nil, false)
	t.Cleanup(func() { _ = s.Close() })

	// -------- baseline snapshot ------------------------------------------
	snap := &store.Snapshot{Taken: time.Now().UTC(), Data: []byte(`{"foo":"bar"}`)}
	if err := s.SaveSnapshot(ctx, target, snap); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if snap.ID != 0 {
		t.Fatalf("first snapshot should have ID 0, got %d", snap.ID)
	}

	latest, err := s.GetLatestRevision(ctx, target)
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest != 0 {
		t.Fatalf("latest want 0, got %d", latest)
	}

	// -------- second revision with a change set --------------------------
	snap2 := &store.Snapshot{PreviousID: snap.ID, Taken: time.Now().UTC(), Data: []byte(`{"foo":"baz"}`)}
	if err := s.SaveSnapshot(ctx, target, snap2); err != nil {
		t.Fatalf("save snapshot2: %v", err)
	}
	if snap2.ID != 1 {
		t.Fatalf("second snapshot should receive ID 1, got %d", snap2.ID)
	}
	cs := &store.ChangeSet{
		Revision: snap2.ID,
		Taken:    snap2.Taken,
		Records:  []store.Record{{Path: "foo", Kind: "changed", Summary: `changed foo: "bar" -> "baz"`}},
	}
	if err := s.SaveChangeSet(ctx, target, cs); err != nil {
		t.Fatalf("save change set: %v", err)
	}

	if latest, _ := s.GetLatestRevision(ctx, target); latest != 1 {
		t.Fatalf("latest want 1, got %d", latest)
	}

	// -------- reads -------------------------------------------------------
	got, err := s.GetSnapshot(ctx, target, 1)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if !bytes.Equal(got.Data, snap2.Data) || got.PreviousID != 0 {
		t.Fatalf("snapshot mismatch: %+v", got)
	}
	gotCS, err := s.GetChangeSet(ctx, target, 1)
	if err != nil {
		t.Fatalf("get change set: %v", err)
	}
	if len(gotCS.Records) != 1 || gotCS.Records[0].Path != "foo" {
		t.Fatalf("change set mismatch: %+v", gotCS)
	}

	// baseline has no change set
	if _, err := s.GetChangeSet(ctx, target, 0); err != store.ErrNotFound {
		t.Fatalf("baseline change set: want ErrNotFound, got %v", err)
	}
	// unknown target
	if _, err := s.GetLatestRevision(ctx, "never-seen"); err != store.ErrNotFound {
		t.Fatalf("unknown target: want ErrNotFound, got %v", err)
	}
}

// TestConcurrentClaims ensures claimNextRevision is atomic.
func TestConcurrentClaims(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(filepath.Join(dir, "db.bb"), nil, false)
	t.Cleanup(func() { _ = s.Close() })

	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() {
			errs <- s.SaveSnapshot(ctx, target, &store.Snapshot{Data: []byte(`{}`)})
		}()
	}
	for i := 0; i < 20; i++ {
		if e := <-errs; e != nil {
			t.Fatalf("concurrent SaveSnapshot failed: %v", e)
		}
	}

	if latest, _ := s.GetLatestRevision(ctx, target); latest != 19 {
		t.Fatalf("after 20 writes, latest should be 19, got %d", latest)
	}
}

func TestWalkRevisions(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(filepath.Join(dir, "db.bb"), nil, false)
	t.Cleanup(func() { _ = s.Close() })

	for _, tgt := range []string{"alpha", "beta"} {
		for i := 0; i < 3; i++ {
			if err := s.SaveSnapshot(ctx, tgt, &store.Snapshot{Data: []byte(`{}`)}); err != nil {
				t.Fatalf("save: %v", err)
			}
		}
	}
	_ = s.SaveChangeSet(ctx, "alpha", &store.ChangeSet{Revision: 1})

	var visited []string
	var changeSets int
	err := s.WalkRevisions(func(tgt string, rev store.RevisionID, snap *store.Snapshot, cs *store.ChangeSet) bool {
		visited = append(visited, tgt+"/"+rev.String())
		if cs != nil {
			changeSets++
		}
		return true
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(visited) != 6 {
		t.Fatalf("want 6 revisions, got %v", visited)
	}
	if changeSets != 1 {
		t.Fatalf("want 1 change set, got %d", changeSets)
	}

	// early stop is not an error
	n := 0
	err = s.WalkRevisions(func(string, store.RevisionID, *store.Snapshot, *store.ChangeSet) bool {
		n++
		return false
	})
	if err != nil || n != 1 {
		t.Fatalf("early stop: n=%d err=%v", n, err)
	}
}

// TestPersistedValues verifies that bytes written are real MessagePack.
func TestPersistedValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.bb")
	s, _ := New(path, nil, true)
	_ = s.SaveSnapshot(ctx, target, &store.Snapshot{Data: []byte(`{"k":"v"}`)})
	_ = s.Close()

	blob, _ := os.ReadFile(path)
	if !bytes.Contains(blob, []byte(`{"k":"v"}`)) {
		t.Fatal("file does not contain the snapshot payload")
	}
}
