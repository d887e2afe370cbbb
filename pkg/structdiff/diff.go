package structdiff

import (
	"fmt"
	"iter"
)

// Diff walks a and b in lockstep and lazily yields one [Change] per
// difference, in traversal order. The sequence is single-use per range
// statement but ranging again restarts the walk from scratch with fresh
// visited-tracking state.
//
// When a value cannot be rendered to its canonical textual form, the walk
// yields a [*RenderError] on the error side and stops; records yielded
// before that point remain valid.
func Diff(a, b Value, opts Options) iter.Seq2[*Change, error] {
	return func(yield func(*Change, error) bool) {
		w := &walker{
			opts:    opts,
			ignored: opts.ignoredKeys(),
			seen:    make(visitSet),
		}
		w.walk(a, b, pathCursor{}, 0, yield)
	}
}

// walker holds per-call traversal state. It must not be shared between
// comparisons: the visit set tracks identities of this call only.
type walker struct {
	opts    Options
	ignored map[string]struct{}
	seen    visitSet
}

// walk recurses over one node pair. It returns false once the consumer
// stopped or an error was yielded, which unwinds the whole traversal.
func (w *walker) walk(a, b Value, at pathCursor, depth int, yield func(*Change, error) bool) bool {
	if w.opts.MaxDepth > 0 && depth > w.opts.MaxDepth {
		return true
	}
	if equal(a, b, w.opts) {
		return true
	}
	if IsComposite(a) && IsComposite(b) && (w.seen.seen(a) || w.seen.seen(b)) {
		// already accounted for elsewhere in this call
		return true
	}
	if KindOf(a) != KindOf(b) {
		return w.emitChanged(a, b, at, yield)
	}

	switch av := a.(type) {
	case *Sequence:
		return w.walkSequences(av, b.(*Sequence), at, depth, yield)
	case *Mapping:
		return w.walkMappings(av, b.(*Mapping), at, depth, yield)
	default:
		// scalars of the same kind that default equality rejected
		return w.emitChanged(a, b, at, yield)
	}
}

// walkSequences compares purely by position. A missing element on the
// shorter side recurses as an absent value, so length differences surface
// as changed records at the trailing indices, never as added or removed.
func (w *walker) walkSequences(a, b *Sequence, at pathCursor, depth int, yield func(*Change, error) bool) bool {
	w.seen.add(a)
	w.seen.add(b)
	n := max(len(a.Items), len(b.Items))
	for i := 0; i < n; i++ {
		if !w.walk(a.At(i), b.At(i), at.index(i), depth+1, yield) {
			return false
		}
	}
	return true
}

// walkMappings visits the key union in a fixed, externally observable
// order: keys of a as inserted, then keys unique to b as inserted.
func (w *walker) walkMappings(a, b *Mapping, at pathCursor, depth int, yield func(*Change, error) bool) bool {
	w.seen.add(a)
	w.seen.add(b)
	for _, key := range a.Keys() {
		if _, skip := w.ignored[key]; skip {
			continue
		}
		av, _ := a.Get(key)
		bv, inB := b.Get(key)
		if !inB {
			if !w.emitRemoved(av, at.key(key), yield) {
				return false
			}
			continue
		}
		if !w.walk(av, bv, at.key(key), depth+1, yield) {
			return false
		}
	}
	for _, key := range b.Keys() {
		if _, skip := w.ignored[key]; skip {
			continue
		}
		if a.Has(key) {
			continue
		}
		bv, _ := b.Get(key)
		if !w.emitAdded(bv, at.key(key), yield) {
			return false
		}
	}
	return true
}

func (w *walker) emitChanged(a, b Value, at pathCursor, yield func(*Change, error) bool) bool {
	if w.opts.SkipNulls && (isNull(a) || isNull(b)) {
		return true
	}
	before, err := render(a, at)
	if err != nil {
		return yieldErr(yield, err)
	}
	after, err := render(b, at)
	if err != nil {
		return yieldErr(yield, err)
	}
	return yield(&Change{
		Path:        at.machine,
		Kind:        Changed,
		Before:      a,
		After:       b,
		Summary:     fmt.Sprintf("changed %s: %s -> %s", at, before, after),
		Description: fmt.Sprintf("Changed %s from %s to %s", at.describe(), before, after),
	}, nil)
}

func (w *walker) emitAdded(v Value, at pathCursor, yield func(*Change, error) bool) bool {
	if w.opts.SkipNulls && isNull(v) {
		return true
	}
	after, err := render(v, at)
	if err != nil {
		return yieldErr(yield, err)
	}
	return yield(&Change{
		Path:        at.machine,
		Kind:        Added,
		After:       v,
		Summary:     fmt.Sprintf("added %s = %s", at, after),
		Description: fmt.Sprintf("Added %s with value %s", at.describe(), after),
	}, nil)
}

func (w *walker) emitRemoved(v Value, at pathCursor, yield func(*Change, error) bool) bool {
	if w.opts.SkipNulls && isNull(v) {
		return true
	}
	before, err := render(v, at)
	if err != nil {
		return yieldErr(yield, err)
	}
	return yield(&Change{
		Path:        at.machine,
		Kind:        Removed,
		Before:      v,
		Summary:     fmt.Sprintf("removed %s (was %s)", at, before),
		Description: fmt.Sprintf("Removed %s (was %s)", at.describe(), before),
	}, nil)
}

// yieldErr pushes err to the consumer and always stops the traversal,
// whatever the consumer answered.
func yieldErr(yield func(*Change, error) bool, err error) bool {
	yield(nil, err)
	return false
}

// render produces the canonical textual form used inside summaries and
// descriptions. A failure is fatal for the whole comparison.
func render(v Value, at pathCursor) (string, error) {
	data, err := Encode(v)
	if err != nil {
		return "", &RenderError{Path: at.machine, Err: err}
	}
	return string(data), nil
}
