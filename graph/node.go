package graph

import "context"

// Node is a user-implemented step in a workflow graph. Run must never
// hold a reference to the session state beyond the call, and must never
// spawn work that outlives it; it receives a read-only Snapshot and
// returns the delta it wants merged at the next barrier.
type Node interface {
	Run(ctx context.Context, snapshot Snapshot, nc NodeContext) (NodePartial, error)
}

// NodeFunc adapts a plain function to the Node interface.
type NodeFunc func(ctx context.Context, snapshot Snapshot, nc NodeContext) (NodePartial, error)

// Run implements Node.
func (f NodeFunc) Run(ctx context.Context, snapshot Snapshot, nc NodeContext) (NodePartial, error) {
	return f(ctx, snapshot, nc)
}

// NodeContext carries per-invocation identity and the event emission
// hook available to a running node.
type NodeContext struct {
	NodeID NodeKind
	Step   uint64
	Emit   func(scope ErrorScope, message string) error
}

// NodePartial is the delta a node returns from Run. A nil or empty
// field is a no-op for that channel; callers should not distinguish a
// missing field from an explicitly empty collection.
type NodePartial struct {
	Messages []Message
	Extras   map[string]any
	Errors   []ErrorEvent
	Frontier []FrontierCommand
}

// FrontierKind discriminates the two ways a node can steer the next
// frontier.
type FrontierKind uint8

const (
	// FrontierAppend adds routes to whatever the graph's static edges
	// already contribute.
	FrontierAppend FrontierKind = iota
	// FrontierReplace discards the static edges' contribution for this
	// node and uses only the given routes (possibly none, terminating
	// this branch).
	FrontierReplace
)

// FrontierCommand is a single routing instruction returned by a node,
// either appending to or replacing the branch's contribution to the next
// frontier.
type FrontierCommand struct {
	Kind   FrontierKind
	Routes []NodeRoute
}

// Append builds a FrontierCommand that adds routes alongside the graph's
// static edges.
func Append(routes ...NodeRoute) FrontierCommand {
	return FrontierCommand{Kind: FrontierAppend, Routes: routes}
}

// Replace builds a FrontierCommand that replaces the branch's
// contribution to the next frontier with exactly routes (an empty list
// terminates the branch).
func Replace(routes ...NodeRoute) FrontierCommand {
	return FrontierCommand{Kind: FrontierReplace, Routes: routes}
}
