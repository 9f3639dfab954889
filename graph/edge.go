package graph

// Predicate is a pure function evaluated against a post-barrier snapshot,
// returning the target identifiers (as strings so a predicate can yield
// "End") the frontier should route to from the conditional edge's
// originating node.
type Predicate func(snapshot Snapshot) []string

// ConditionalEdge is an edge whose destination(s) are computed at
// runtime by Predicate rather than fixed at compile time.
type ConditionalEdge struct {
	From      NodeKind
	Predicate Predicate
}

// evaluate runs the predicate and decodes its string targets into
// NodeKinds via the standard decode rule.
func (c ConditionalEdge) evaluate(snapshot Snapshot) []NodeKind {
	targets := c.Predicate(snapshot)
	out := make([]NodeKind, 0, len(targets))
	for _, t := range targets {
		out = append(out, DecodeNodeKind(t))
	}
	return out
}
