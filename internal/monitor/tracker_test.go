package monitor_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/driftwatch-project/driftwatch/internal/extract"
	"github.com/driftwatch-project/driftwatch/internal/monitor"
	bboltStore "github.com/driftwatch-project/driftwatch/internal/store/bbolt"
	"github.com/driftwatch-project/driftwatch/pkg/structdiff"
)

// fakeExtractor serves queued snapshot values, one per Check call.
type fakeExtractor struct {
	queue []structdiff.Value
}

func (f *fakeExtractor) Snapshot(_ context.Context, _ extract.Target) (structdiff.Value, error) {
	if len(f.queue) == 0 {
		panic("fakeExtractor: queue exhausted")
	}
	v := f.queue[0]
	f.queue = f.queue[1:]
	return v, nil
}

func newTestStore(t *testing.T) *bboltStore.Store {
	t.Helper()
	st, err := bboltStore.New(filepath.Join(t.TempDir(), "test.db"), nil, false)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func page(price float64, stock string) structdiff.Value {
	return structdiff.NewMapping().
		Set("price", structdiff.Number(price)).
		Set("stock", structdiff.String(stock))
}

func TestCheckLifecycle(t *testing.T) {
	st := newTestStore(t)
	ex := &fakeExtractor{queue: []structdiff.Value{
		page(10, "yes"),
		page(10, "yes"),
		page(12, "no"),
	}}
	tracker := monitor.NewTracker(st, ex, nil, zerolog.Nop())
	t.Cleanup(tracker.Close)

	target := extract.Target{Name: "shop"}
	ctx := context.Background()

	// first observation is the baseline
	res, err := tracker.Check(ctx, target)
	if err != nil {
		t.Fatalf("baseline check: %v", err)
	}
	if !res.First {
		t.Error("baseline result not marked First")
	}
	if res.Revision != 0 {
		t.Errorf("baseline revision = %d, want 0", res.Revision)
	}

	// identical snapshot commits nothing
	res, err = tracker.Check(ctx, target)
	if err != nil {
		t.Fatalf("quiet check: %v", err)
	}
	if res.First || len(res.Changes) != 0 {
		t.Errorf("quiet poll produced %+v", res)
	}
	if latest, err := st.GetLatestRevision(ctx, "shop"); err != nil || latest != 0 {
		t.Errorf("latest after quiet poll = %d, %v", latest, err)
	}

	// changed snapshot commits a new revision with records
	res, err = tracker.Check(ctx, target)
	if err != nil {
		t.Fatalf("changed check: %v", err)
	}
	if res.Revision != 1 {
		t.Errorf("revision = %d, want 1", res.Revision)
	}
	if len(res.Changes) != 2 {
		t.Fatalf("got %d changes, want 2", len(res.Changes))
	}
	if res.Changes[0].Path != "price" || res.Changes[1].Path != "stock" {
		t.Errorf("paths = %q, %q", res.Changes[0].Path, res.Changes[1].Path)
	}
	if res.Stats.Changed != 2 {
		t.Errorf("stats = %+v", res.Stats)
	}

	cs, err := st.GetChangeSet(ctx, "shop", 1)
	if err != nil {
		t.Fatalf("load change set: %v", err)
	}
	if len(cs.Records) != 2 {
		t.Errorf("persisted %d records, want 2", len(cs.Records))
	}
	if cs.Records[0].Summary != "changed price: 10 -> 12" {
		t.Errorf("persisted summary = %q", cs.Records[0].Summary)
	}
}

func TestCheckFilterShapesReportNotHistory(t *testing.T) {
	st := newTestStore(t)
	ex := &fakeExtractor{queue: []structdiff.Value{
		page(10, "yes"),
		page(12, "no"),
	}}
	prog, err := monitor.CompileFilter(`PathPrefix("price")`)
	if err != nil {
		t.Fatalf("compile filter: %v", err)
	}
	tracker := monitor.NewTracker(st, ex, prog, zerolog.Nop())
	t.Cleanup(tracker.Close)

	ctx := context.Background()
	target := extract.Target{Name: "shop"}
	if _, err := tracker.Check(ctx, target); err != nil {
		t.Fatalf("baseline check: %v", err)
	}
	res, err := tracker.Check(ctx, target)
	if err != nil {
		t.Fatalf("changed check: %v", err)
	}

	// only the price record is reported
	if len(res.Changes) != 1 || res.Changes[0].Path != "price" {
		t.Fatalf("reported changes = %+v", res.Changes)
	}

	// but the full new state is still committed
	snap, err := st.GetSnapshot(ctx, "shop", 1)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	v, err := snap.Value()
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if eq := structdiff.DeepEqual(v, page(12, "no"), structdiff.Options{}); !eq {
		t.Error("committed snapshot does not match the extracted state")
	}
}

func TestCheckSurvivesCacheMiss(t *testing.T) {
	st := newTestStore(t)

	// baseline with one tracker, change with a second one: the second
	// tracker starts with a cold cache and must fall back to the store.
	ex1 := &fakeExtractor{queue: []structdiff.Value{page(10, "yes")}}
	first := monitor.NewTracker(st, ex1, nil, zerolog.Nop())
	if _, err := first.Check(context.Background(), extract.Target{Name: "shop"}); err != nil {
		t.Fatalf("baseline check: %v", err)
	}
	first.Close()

	ex2 := &fakeExtractor{queue: []structdiff.Value{page(11, "yes")}}
	second := monitor.NewTracker(st, ex2, nil, zerolog.Nop())
	t.Cleanup(second.Close)

	res, err := second.Check(context.Background(), extract.Target{Name: "shop"})
	if err != nil {
		t.Fatalf("check with cold cache: %v", err)
	}
	if len(res.Changes) != 1 || res.Changes[0].Path != "price" {
		t.Errorf("changes = %+v", res.Changes)
	}
}

func TestCompileFilterRejectsNonBool(t *testing.T) {
	if _, err := monitor.CompileFilter(`"not a bool"`); err == nil {
		t.Error("expected error for non-boolean expression")
	}
	if _, err := monitor.CompileFilter(`Kind("added") or PathPrefix("inventory")`); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
}

func TestStatsKeptConsistentWithFilter(t *testing.T) {
	st := newTestStore(t)
	ex := &fakeExtractor{queue: []structdiff.Value{
		structdiff.NewMapping().Set("a", structdiff.Number(1)),
		structdiff.NewMapping().
			Set("a", structdiff.Number(2)).
			Set("b", structdiff.Number(3)),
	}}
	prog, err := monitor.CompileFilter(`Kind("added")`)
	if err != nil {
		t.Fatalf("compile filter: %v", err)
	}
	tracker := monitor.NewTracker(st, ex, prog, zerolog.Nop())
	t.Cleanup(tracker.Close)

	ctx := context.Background()
	target := extract.Target{Name: "t"}
	if _, err := tracker.Check(ctx, target); err != nil {
		t.Fatalf("baseline: %v", err)
	}
	res, err := tracker.Check(ctx, target)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	want := structdiff.Stats{Total: 1, Added: 1}
	if res.Stats != want {
		t.Errorf("stats = %+v, want %+v", res.Stats, want)
	}
}
