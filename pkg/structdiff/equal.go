package structdiff

import "strings"

// equal decides whether a and b are interchangeable as a whole under opts.
// It never recurses; structural descent is the traversal's job.
//
// Check order: identity first (primitives by value, composites only when
// they are the same instance), then CustomEqual exclusively, then the
// case-insensitive string rule.
func equal(a, b Value, opts Options) bool {
	if a == b || (isNull(a) && isNull(b)) {
		return true
	}
	if opts.CustomEqual != nil {
		return opts.CustomEqual(a, b)
	}
	if opts.IgnoreCase {
		if as, okA := a.(String); okA {
			if bs, okB := b.(String); okB {
				return strings.EqualFold(string(as), string(bs))
			}
		}
	}
	return false
}
