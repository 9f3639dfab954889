// Package emit provides the minimal event bus core nodes publish to:
// non-blocking emission, bounded fan-out to sinks, and a termination
// sentinel so streaming consumers can close cleanly.
package emit

import "time"

// StreamEndScope is the terminal diagnostic scope emitted when a
// session ends, so streaming consumers know to close.
const StreamEndScope = "__weavegraph_stream_end__"

// NodeEvent is published by a running node via its NodeContext.
type NodeEvent struct {
	NodeID  string
	Step    uint64
	Scope   string
	Message string
	When    time.Time
}

// DiagnosticEvent is published by the core itself (scheduler, runner)
// rather than by a node.
type DiagnosticEvent struct {
	Scope   string
	Message string
	When    time.Time
}

// Event is the union of everything the bus can carry. Exactly one field
// is set. LLMStreamingPayload is an opaque passthrough the core never
// interprets, carried for collaborators that stream model output
// through the same bus.
type Event struct {
	Node                *NodeEvent
	Diagnostic          *DiagnosticEvent
	LLMStreamingPayload any
}

// NewNodeEvent builds an Event wrapping a NodeEvent.
func NewNodeEvent(nodeID string, step uint64, scope, message string) Event {
	return Event{Node: &NodeEvent{NodeID: nodeID, Step: step, Scope: scope, Message: message, When: time.Now().UTC()}}
}

// NewDiagnosticEvent builds an Event wrapping a DiagnosticEvent.
func NewDiagnosticEvent(scope, message string) Event {
	return Event{Diagnostic: &DiagnosticEvent{Scope: scope, Message: message, When: time.Now().UTC()}}
}

// IsStreamEnd reports whether this event is the terminal
// end-of-session sentinel.
func (e Event) IsStreamEnd() bool {
	return e.Diagnostic != nil && e.Diagnostic.Scope == StreamEndScope
}
