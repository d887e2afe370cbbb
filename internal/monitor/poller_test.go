package monitor_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftwatch-project/driftwatch/internal/extract"
	"github.com/driftwatch-project/driftwatch/internal/monitor"
	"github.com/driftwatch-project/driftwatch/pkg/structdiff"
)

// loopExtractor serves an endless alternation of two states so every poll
// after the baseline finds a change.
type loopExtractor struct {
	n atomic.Int64
}

func (l *loopExtractor) Snapshot(_ context.Context, _ extract.Target) (structdiff.Value, error) {
	n := l.n.Add(1)
	return structdiff.NewMapping().Set("n", structdiff.Number(float64(n%2))), nil
}

func TestPollerDeliversResults(t *testing.T) {
	st := newTestStore(t)
	tracker := monitor.NewTracker(st, &loopExtractor{}, nil, zerolog.Nop())
	t.Cleanup(tracker.Close)

	poller, err := monitor.NewPoller(context.Background(), tracker,
		monitor.WithDefaultInterval(10*time.Millisecond),
		monitor.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}

	var handled atomic.Int64
	poller.RegisterHandler(func(monitor.Result) error {
		handled.Add(1)
		return nil
	})

	if err := poller.Add(extract.Target{Name: "shop"}); err != nil {
		t.Fatalf("add target: %v", err)
	}
	// adding the same target twice is a no-op
	if err := poller.Add(extract.Target{Name: "shop"}); err != nil {
		t.Fatalf("re-add target: %v", err)
	}

	var results []monitor.Result
	deadline := time.After(5 * time.Second)
	for len(results) < 3 {
		select {
		case res := <-poller.Results():
			results = append(results, res)
		case <-deadline:
			t.Fatalf("timed out with %d results", len(results))
		}
	}
	poller.Stop()

	if !results[0].First {
		t.Error("first result not marked as baseline")
	}
	for _, res := range results[1:] {
		if len(res.Changes) != 1 || res.Changes[0].Path != "n" {
			t.Errorf("unexpected result %+v", res)
		}
	}
	if handled.Load() < 3 {
		t.Errorf("handler saw %d results, want at least 3", handled.Load())
	}
}

func TestPollerStop(t *testing.T) {
	st := newTestStore(t)
	tracker := monitor.NewTracker(st, &loopExtractor{}, nil, zerolog.Nop())
	t.Cleanup(tracker.Close)

	poller, err := monitor.NewPoller(context.Background(), tracker,
		monitor.WithDefaultInterval(time.Hour),
		monitor.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}
	if err := poller.Add(extract.Target{Name: "a"}); err != nil {
		t.Fatalf("add target: %v", err)
	}

	poller.Stop()
	poller.Stop() // idempotent

	if err := poller.Add(extract.Target{Name: "b"}); err == nil {
		t.Error("Add after Stop should fail")
	}
	if _, open := <-poller.Results(); open {
		// Stop drains at most the buffered results; the channel must be
		// closed once they are consumed. One result may still be in the
		// buffer from the initial check.
		if _, stillOpen := <-poller.Results(); stillOpen {
			t.Error("results channel not closed after Stop")
		}
	}
}
