// Package structdiff compares two nested data values and reports every
// addition, removal and modification as a typed change record.
//
// Values form a closed union: null, booleans, numbers, strings, ordered
// sequences and insertion-ordered mappings. [Diff] walks two values in
// lockstep and yields one [Change] per difference; [Compare] drains that
// walk into a list. Sequences are compared strictly by position (no
// reordering detection) and mappings by key, with the key union ordered
// "keys of a first, then keys only in b" so output order is deterministic.
package structdiff

// Options configures a single comparison. The zero value compares with
// default equality, unlimited depth and nulls reported.
//
// Options are read-only during a traversal; reuse across comparisons is
// safe, but a single Diff sequence must not be consumed concurrently.
type Options struct {
	// CustomEqual, when set, replaces default equality entirely, including
	// the IgnoreCase rule. It decides whether two values are interchangeable
	// as a whole; it is never called recursively on children.
	CustomEqual func(a, b Value) bool

	// IgnoreCase compares string scalars case-insensitively.
	IgnoreCase bool

	// MaxDepth caps recursion depth; 0 means unlimited. Differences strictly
	// below the boundary are silently dropped, never reported.
	MaxDepth int

	// IgnoreKeys lists mapping keys that are never compared, at any depth.
	IgnoreKeys []string

	// SkipNulls suppresses additions, removals and changes whose value is
	// null or absent on either side. The zero value reports them.
	SkipNulls bool
}

func (o Options) ignoredKeys() map[string]struct{} {
	if len(o.IgnoreKeys) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(o.IgnoreKeys))
	for _, k := range o.IgnoreKeys {
		set[k] = struct{}{}
	}
	return set
}
