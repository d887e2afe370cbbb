package structdiff

import (
	"errors"
	"fmt"
)

// ChangeKind tags a change record. The string form doubles as the wire
// value in the JSON `type` field.
type ChangeKind string

const (
	Added   ChangeKind = "added"
	Removed ChangeKind = "removed"
	Changed ChangeKind = "changed"
)

// Change is one reported difference between two trees. Records are created
// by [Diff], collected in traversal order and never mutated afterwards.
//
// Added records carry only After, Removed records only Before, and Changed
// records both. Path locates the node in dotted/bracket notation, while
// Description renders the same location as arrow-joined quoted keys and
// `index i` segments.
type Change struct {
	Path        string     `json:"path"`
	Kind        ChangeKind `json:"type"`
	Before      Value      `json:"before,omitempty"`
	After       Value      `json:"after,omitempty"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
}

// ErrInvalidArgument is returned by [Compare] before any traversal starts
// when an input is missing or not a composite value.
var ErrInvalidArgument = errors.New("structdiff: input must be a sequence or mapping")

// RenderError wraps a failure to render a value to its canonical textual
// form while a record was being built. It aborts the remaining comparison.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("structdiff: render value at %q: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Compare eagerly diffs a against b and returns the records in traversal
// order. Both inputs must be composite values; anything else fails with
// [ErrInvalidArgument] up front.
func Compare(a, b Value, opts Options) ([]*Change, error) {
	if !IsComposite(a) {
		return nil, fmt.Errorf("%w, first input is %s", ErrInvalidArgument, KindOf(a))
	}
	if !IsComposite(b) {
		return nil, fmt.Errorf("%w, second input is %s", ErrInvalidArgument, KindOf(b))
	}
	var changes []*Change
	for c, err := range Diff(a, b, opts) {
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, nil
}

// FilterByKind returns the order-preserving sublist of changes with kind.
func FilterByKind(changes []*Change, kind ChangeKind) []*Change {
	var out []*Change
	for _, c := range changes {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Grouped partitions a change list by kind, preserving order inside each
// bucket.
type Grouped struct {
	Added   []*Change
	Removed []*Change
	Changed []*Change
}

// GroupByKind buckets changes by kind. Records of an unrecognized kind are
// silently dropped.
func GroupByKind(changes []*Change) Grouped {
	var g Grouped
	for _, c := range changes {
		switch c.Kind {
		case Added:
			g.Added = append(g.Added, c)
		case Removed:
			g.Removed = append(g.Removed, c)
		case Changed:
			g.Changed = append(g.Changed, c)
		}
	}
	return g
}

// Stats counts a change list, consistent with [GroupByKind].
type Stats struct {
	Total   int `json:"total"`
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Changed int `json:"changed"`
}

func Summarize(changes []*Change) Stats {
	g := GroupByKind(changes)
	return Stats{
		Total:   len(changes),
		Added:   len(g.Added),
		Removed: len(g.Removed),
		Changed: len(g.Changed),
	}
}

// DeepEqual reports whether a and b compare without differences. Unlike
// every other entry point it swallows all errors, including invalid
// inputs and render failures, and answers false instead.
func DeepEqual(a, b Value, opts Options) bool {
	changes, err := Compare(a, b, opts)
	return err == nil && len(changes) == 0
}

// Paths projects each record's machine path, in order. Duplicates are
// preserved as-is.
func Paths(changes []*Change) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Path
	}
	return out
}
