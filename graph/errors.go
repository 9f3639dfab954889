package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for conditions that aren't node- or graph-specific.
var (
	// ErrSessionNotFound is returned when a runner operation references
	// an unknown session id.
	ErrSessionNotFound = errors.New("weavegraph: session not found")
	// ErrStepUnderflow is returned when run_step is called on a session
	// that has already completed.
	ErrStepUnderflow = errors.New("weavegraph: session already completed")
	// ErrSessionCancelled is returned when a step is aborted by context
	// cancellation before the barrier ran.
	ErrSessionCancelled = errors.New("weavegraph: session step cancelled")
)

// CompileError is the common interface satisfied by every structural
// validation failure produced by GraphBuilder.Compile.
type CompileError interface {
	error
	compileError()
}

// MissingEntryError reports that no edge originates from Start.
type MissingEntryError struct{}

func (MissingEntryError) Error() string { return "weavegraph: no entry edge from Start" }
func (MissingEntryError) compileError() {}

// CycleDetectedError reports a cycle found among unconditional edges.
// Path lists the cycle's nodes in traversal order with the repeated
// node appended to close the loop.
type CycleDetectedError struct {
	Path []NodeKind
}

func (e CycleDetectedError) Error() string {
	names := make([]string, len(e.Path))
	for i, n := range e.Path {
		names[i] = n.Encode()
	}
	return "weavegraph: cycle detected: " + strings.Join(names, " -> ")
}
func (CycleDetectedError) compileError() {}

// UnreachableNodesError reports custom nodes with no path from Start.
type UnreachableNodesError struct {
	Nodes []NodeKind
}

func (e UnreachableNodesError) Error() string {
	return "weavegraph: unreachable from Start: " + joinEncoded(e.Nodes)
}
func (UnreachableNodesError) compileError() {}

// NoPathToEndError reports custom nodes with no path to End.
type NoPathToEndError struct {
	Nodes []NodeKind
}

func (e NoPathToEndError) Error() string {
	return "weavegraph: no path to End: " + joinEncoded(e.Nodes)
}
func (NoPathToEndError) compileError() {}

// DuplicateEdgeError reports a repeated (from, to) unconditional edge.
type DuplicateEdgeError struct {
	From, To NodeKind
}

func (e DuplicateEdgeError) Error() string {
	return fmt.Sprintf("weavegraph: duplicate edge: %s -> %s", e.From.Encode(), e.To.Encode())
}
func (DuplicateEdgeError) compileError() {}

// EdgeFromEndError reports an edge whose source is the virtual End node.
type EdgeFromEndError struct{}

func (EdgeFromEndError) Error() string { return "weavegraph: edge cannot originate from End" }
func (EdgeFromEndError) compileError() {}

// UnknownNodeError reports an edge endpoint referencing an unregistered
// custom node.
type UnknownNodeError struct {
	Node NodeKind
}

func (e UnknownNodeError) Error() string {
	return "weavegraph: unknown node referenced: " + e.Node.Encode()
}
func (UnknownNodeError) compileError() {}

func joinEncoded(nodes []NodeKind) string {
	sorted := make([]NodeKind, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Encode() < sorted[j].Encode() })
	names := make([]string, len(sorted))
	for i, n := range sorted {
		names[i] = n.Encode()
	}
	return strings.Join(names, ", ")
}

// NodeContextError is returned by NodeContext.Emit when the event bus
// cannot accept an event.
type NodeContextError struct {
	Reason string
}

func (e NodeContextError) Error() string { return "weavegraph: event bus unavailable: " + e.Reason }

// EventBusUnavailable builds a NodeContextError for the given underlying reason.
func EventBusUnavailable(reason string) NodeContextError {
	return NodeContextError{Reason: reason}
}

// NodeError is the error type a Node.Run must return on failure.
// Exactly one of the constructors below should be used; the Kind field
// records which.
type NodeError struct {
	Kind     NodeErrorKind
	What     string // MissingInput
	Provider string // Provider
	Message  string // Provider, ValidationFailed
	Source   error  // Serde
	Context  NodeContextError
}

// NodeErrorKind enumerates the node-side error taxonomy.
type NodeErrorKind uint8

const (
	NodeErrMissingInput NodeErrorKind = iota
	NodeErrProvider
	NodeErrSerde
	NodeErrValidationFailed
	NodeErrEventBus
)

func (e *NodeError) Error() string {
	switch e.Kind {
	case NodeErrMissingInput:
		return "weavegraph: missing input: " + e.What
	case NodeErrProvider:
		return fmt.Sprintf("weavegraph: provider %s: %s", e.Provider, e.Message)
	case NodeErrSerde:
		if e.Source != nil {
			return "weavegraph: serde: " + e.Source.Error()
		}
		return "weavegraph: serde error"
	case NodeErrValidationFailed:
		return "weavegraph: validation failed: " + e.Message
	case NodeErrEventBus:
		return "weavegraph: " + e.Context.Error()
	default:
		return "weavegraph: node error"
	}
}

func (e *NodeError) Unwrap() error { return e.Source }

// MissingInput builds a NodeError for an absent required input.
func MissingInput(what string) *NodeError { return &NodeError{Kind: NodeErrMissingInput, What: what} }

// ProviderError builds a NodeError for a failure attributed to an
// external provider a node called out to.
func ProviderError(provider, message string) *NodeError {
	return &NodeError{Kind: NodeErrProvider, Provider: provider, Message: message}
}

// SerdeError builds a NodeError wrapping a (de)serialization failure.
func SerdeError(source error) *NodeError { return &NodeError{Kind: NodeErrSerde, Source: source} }

// ValidationFailed builds a NodeError for a failed precondition or
// invariant check inside a node.
func ValidationFailed(message string) *NodeError {
	return &NodeError{Kind: NodeErrValidationFailed, Message: message}
}

// EventBusError builds a NodeError wrapping a NodeContextError a node
// chose to surface as a hard failure.
func EventBusError(cause NodeContextError) *NodeError {
	return &NodeError{Kind: NodeErrEventBus, Context: cause}
}

// NodeRunError wraps a node's error with the scheduling context in which
// it occurred: the offending node and the step number.
type NodeRunError struct {
	Node NodeKind
	Step uint64
	Err  error
}

func (e *NodeRunError) Error() string {
	return fmt.Sprintf("weavegraph: node %s failed at step %d: %v", e.Node.Encode(), e.Step, e.Err)
}

func (e *NodeRunError) Unwrap() error { return e.Err }

// CheckpointErrorKind enumerates the checkpointer error taxonomy.
type CheckpointErrorKind uint8

const (
	CheckpointNotFound CheckpointErrorKind = iota
	CheckpointBackend
	CheckpointOther
)

// CheckpointError is returned by Checkpointer implementations.
type CheckpointError struct {
	Kind      CheckpointErrorKind
	SessionID string
	Message   string
	Cause     error
}

func (e *CheckpointError) Error() string {
	switch e.Kind {
	case CheckpointNotFound:
		return "weavegraph: checkpoint not found for session " + e.SessionID
	case CheckpointBackend:
		return "weavegraph: checkpoint backend error: " + e.Message
	default:
		return "weavegraph: checkpoint error: " + e.Message
	}
}

func (e *CheckpointError) Unwrap() error { return e.Cause }

// NotFoundError builds a CheckpointError for a missing session/checkpoint.
func NotFoundError(sessionID string) *CheckpointError {
	return &CheckpointError{Kind: CheckpointNotFound, SessionID: sessionID}
}

// BackendError builds a CheckpointError for an I/O-layer failure.
func BackendError(message string, cause error) *CheckpointError {
	return &CheckpointError{Kind: CheckpointBackend, Message: message, Cause: cause}
}

// OtherCheckpointError builds a CheckpointError for serialization or
// other non-I/O failures.
func OtherCheckpointError(message string, cause error) *CheckpointError {
	return &CheckpointError{Kind: CheckpointOther, Message: message, Cause: cause}
}
