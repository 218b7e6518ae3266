package graph

// Predicate decides whether an edge fires for a given state.
type Predicate[S any] func(state S) bool

// Edge connects two nodes, optionally guarded by a predicate.
//
// Edges from the same source are evaluated in registration order and the
// first match wins. A nil predicate always matches, so an unconditional
// edge registered first shadows everything after it.
type Edge[S any] struct {
	From string
	To   string
	When Predicate[S]
}

// matches reports whether the edge fires for the state.
func (e Edge[S]) matches(state S) bool {
	if e.When == nil {
		return true
	}
	return e.When(state)
}
