// Package notify delivers detected changes to the outside world.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftwatch-project/driftwatch/internal/store"
	"github.com/driftwatch-project/driftwatch/pkg/structdiff"
)

// Event is one delivery: everything a sink needs to describe what changed
// on a target between two revisions.
type Event struct {
	Target   string
	Revision store.RevisionID
	Taken    time.Time
	Stats    structdiff.Stats
	Changes  []*structdiff.Change
}

type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// LogSink writes events to the logger; the fallback for headless runs
// without a webhook.
type LogSink struct {
	Log zerolog.Logger
}

var _ Sink = LogSink{}

func (s LogSink) Publish(_ context.Context, ev Event) error {
	s.Log.Info().
		Str("target", ev.Target).
		Str("revision", ev.Revision.String()).
		Int("added", ev.Stats.Added).
		Int("removed", ev.Stats.Removed).
		Int("changed", ev.Stats.Changed).
		Msg("changes detected")
	for _, c := range ev.Changes {
		s.Log.Info().Str("target", ev.Target).Msg(c.Summary)
	}
	return nil
}
