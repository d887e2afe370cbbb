package structdiff

// visitSet remembers composite values by identity (pointer equality
// through the interface), never by structural equality, so lookups are
// O(1) and immune to cycles in the data itself.
//
// The traversal allocates one set per comparison, only ever adds to it and
// shares it across the whole call, not per recursion branch. A composite
// reachable through two unrelated sibling branches is therefore skipped
// the second time even without a true cycle; callers depend on that, so
// don't narrow the scope. The encoder reuses the type differently: it
// drops entries on the way back up so only the current ancestor chain
// counts as visited.
type visitSet map[Value]struct{}

func (s visitSet) seen(v Value) bool {
	_, ok := s[v]
	return ok
}

func (s visitSet) add(v Value) {
	s[v] = struct{}{}
}

func (s visitSet) drop(v Value) {
	delete(s, v)
}
