// Package ui is the interactive revision browser: a two-pane terminal view
// with the watched targets and their revisions on the left and the change
// records of the selected revision on the right.
package ui

import (
	"context"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/driftwatch-project/driftwatch/internal/monitor"
	"github.com/driftwatch-project/driftwatch/internal/store"
	"github.com/driftwatch-project/driftwatch/internal/util"
	"github.com/driftwatch-project/driftwatch/pkg/structdiff"
)

const (
	arrowDown  = "▾"
	arrowRight = "▸"
)

// ResultMsg delivers one poller result into the UI. Send it with
// tea.Program.Send from the collector goroutine.
type ResultMsg struct {
	Result monitor.Result
}

type TickMsg struct{}

type revEntry struct {
	id    store.RevisionID
	taken time.Time
	stats structdiff.Stats
	first bool
}

type targetEntry struct {
	name     string
	lastSeen time.Time
	revs     []revEntry
	open     bool
}

// row is one selectable line of the left pane: a target header or, when
// the target is expanded, one of its revisions.
type row struct {
	target string
	rev    *revEntry
}

type Root struct {
	theme Theme
	store store.SnapshotStore

	targets map[string]*targetEntry
	order   []string

	left, right viewport.Model

	cursor     int
	focusRight bool
	fullscreen bool

	width, height int
	shuttingDown  bool
}

var _ tea.Model = (*Root)(nil)

func NewRoot(theme Theme, st store.SnapshotStore) *Root {
	return &Root{
		theme:   theme,
		store:   st,
		targets: make(map[string]*targetEntry),
		left:    viewport.New(5, 5), // resized on the first WindowSizeMsg
		right:   viewport.New(5, 5),
	}
}

// LoadHistory seeds the target tree from everything already in the store,
// so restarting the program does not start with an empty screen.
func (r *Root) LoadHistory() error {
	return r.store.WalkRevisions(func(target string, rev store.RevisionID, snap *store.Snapshot, cs *store.ChangeSet) bool {
		entry := r.targets[target]
		if entry == nil {
			entry = &targetEntry{name: target}
			r.targets[target] = entry
			r.order = append(r.order, target)
		}
		re := revEntry{id: rev, taken: snap.Taken, first: cs == nil}
		if cs != nil {
			re.stats = countRecords(cs.Records)
		}
		entry.revs = append(entry.revs, re)
		if snap.Taken.After(entry.lastSeen) {
			entry.lastSeen = snap.Taken
		}
		return true
	})
}

func countRecords(records []store.Record) structdiff.Stats {
	var st structdiff.Stats
	for _, rec := range records {
		st.Total++
		switch structdiff.ChangeKind(rec.Kind) {
		case structdiff.Added:
			st.Added++
		case structdiff.Removed:
			st.Removed++
		case structdiff.Changed:
			st.Changed++
		}
	}
	return st
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (r *Root) Init() tea.Cmd {
	return tick()
}

func (r *Root) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case ResultMsg:
		r.apply(v.Result)
		r.refresh()
		return r, nil

	case TickMsg:
		// re-render so the relative ages keep moving
		r.renderLeft()
		return r, tick()

	case tea.WindowSizeMsg:
		r.width = v.Width
		r.height = v.Height - 1 // status bar
		r.layout()
		r.refresh()
		return r, nil

	case tea.KeyMsg:
		return r.handleKey(v)
	}
	return r, nil
}

func (r *Root) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c", "q":
		r.shuttingDown = true
		return r, tea.Quit

	case "tab":
		r.focusRight = !r.focusRight

	case "f":
		r.fullscreen = !r.fullscreen
		r.layout()

	case "up", "k":
		if r.focusRight {
			r.right.SetYOffset(r.right.YOffset - 1)
		} else {
			r.cursor = util.Clamp(r.cursor-1, 0, max(len(r.rows())-1, 0))
			r.refresh()
		}

	case "down", "j":
		if r.focusRight {
			r.right.SetYOffset(r.right.YOffset + 1)
		} else {
			r.cursor = util.Clamp(r.cursor+1, 0, max(len(r.rows())-1, 0))
			r.refresh()
		}

	case "pgup":
		r.right.SetYOffset(r.right.YOffset - r.right.Height)

	case "pgdown":
		r.right.SetYOffset(r.right.YOffset + r.right.Height)

	case "enter", " ":
		rows := r.rows()
		if r.cursor < len(rows) && rows[r.cursor].rev == nil {
			entry := r.targets[rows[r.cursor].target]
			entry.open = !entry.open
			r.refresh()
		}
	}
	return r, nil
}

// apply folds one poller result into the target tree.
func (r *Root) apply(res monitor.Result) {
	entry := r.targets[res.Target]
	if entry == nil {
		entry = &targetEntry{name: res.Target}
		r.targets[res.Target] = entry
		r.order = append(r.order, res.Target)
		sort.Strings(r.order)
	}
	entry.lastSeen = res.Taken

	// quiet polls touch lastSeen but add no revision
	if !res.First && len(res.Changes) == 0 {
		return
	}
	entry.revs = append(entry.revs, revEntry{
		id:    res.Revision,
		taken: res.Taken,
		stats: res.Stats,
		first: res.First,
	})
}

// rows flattens the target tree into the selectable left-pane lines.
func (r *Root) rows() []row {
	var out []row
	for _, name := range r.order {
		entry := r.targets[name]
		out = append(out, row{target: name})
		if !entry.open {
			continue
		}
		for i := len(entry.revs) - 1; i >= 0; i-- {
			out = append(out, row{target: name, rev: &entry.revs[i]})
		}
	}
	return out
}

func (r *Root) selected() *row {
	rows := r.rows()
	if r.cursor >= len(rows) {
		if len(rows) == 0 {
			return nil
		}
		r.cursor = len(rows) - 1
	}
	return &rows[r.cursor]
}

func (r *Root) layout() {
	if r.fullscreen {
		r.right.Width = r.width - 2
		r.right.Height = r.height - 2
		return
	}
	leftWidth := r.width/2 - 2
	r.left.Width, r.left.Height = leftWidth, r.height-2
	r.right.Width, r.right.Height = r.width-leftWidth-4, r.height-2
}

func (r *Root) refresh() {
	r.renderLeft()
	r.renderRight(context.Background())
}
