// Package graph provides the core execution engine for weavegraph-go: a
// directed graph of nodes operating on versioned, channel-based state
// through a barrier-synchronous scheduler.
package graph

import "strings"

// NodeKind identifies a node within a workflow graph.
//
// Start and End are virtual: they are valid edge endpoints but carry no
// user implementation and are never executed by the scheduler. Custom
// node kinds are identified by a user-chosen name.
type NodeKind struct {
	tag  nodeKindTag
	name string
}

type nodeKindTag uint8

const (
	nodeKindStart nodeKindTag = iota
	nodeKindEnd
	nodeKindCustom
)

// Start is the virtual entry point of every graph.
var Start = NodeKind{tag: nodeKindStart}

// End is the virtual terminal node of every graph.
var End = NodeKind{tag: nodeKindEnd}

// Custom returns a NodeKind identifying a user-implemented node.
//
// name must be non-empty and must not equal "Start" or "End"; those
// strings are reserved for the virtual endpoints.
func Custom(name string) NodeKind {
	return NodeKind{tag: nodeKindCustom, name: name}
}

// IsStart reports whether k is the virtual Start node.
func (k NodeKind) IsStart() bool { return k.tag == nodeKindStart }

// IsEnd reports whether k is the virtual End node.
func (k NodeKind) IsEnd() bool { return k.tag == nodeKindEnd }

// IsCustom reports whether k identifies a user node.
func (k NodeKind) IsCustom() bool { return k.tag == nodeKindCustom }

// IsVirtual reports whether k is Start or End.
func (k NodeKind) IsVirtual() bool { return k.tag != nodeKindCustom }

// Name returns the custom node's name, or "" for Start/End.
func (k NodeKind) Name() string { return k.name }

// Encode returns the stable string form used for persistence and routing:
// "Start", "End", or "Custom:<name>".
func (k NodeKind) Encode() string {
	switch k.tag {
	case nodeKindStart:
		return "Start"
	case nodeKindEnd:
		return "End"
	default:
		return "Custom:" + k.name
	}
}

// String implements fmt.Stringer, returning the bare display form
// ("Start", "End", or the custom name without the "Custom:" prefix).
func (k NodeKind) String() string {
	switch k.tag {
	case nodeKindStart:
		return "Start"
	case nodeKindEnd:
		return "End"
	default:
		return k.name
	}
}

// DecodeNodeKind parses a node kind from its persisted or routing string
// form. Unknown strings become Custom(s), preserving forward
// compatibility for persisted data and predicate output.
func DecodeNodeKind(s string) NodeKind {
	switch s {
	case "Start":
		return Start
	case "End":
		return End
	}
	if rest, ok := strings.CutPrefix(s, "Custom:"); ok {
		return Custom(rest)
	}
	return Custom(s)
}

// MarshalText implements encoding.TextMarshaler so NodeKind round-trips
// through JSON and other text-based codecs via Encode/DecodeNodeKind.
func (k NodeKind) MarshalText() ([]byte, error) {
	return []byte(k.Encode()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *NodeKind) UnmarshalText(text []byte) error {
	*k = DecodeNodeKind(string(text))
	return nil
}

// NodeRoute wraps a NodeKind as a frontier routing target.
type NodeRoute struct {
	Kind NodeKind
}

// ParseNodeRoute builds a NodeRoute from a string target, decoding it the
// same way predicate output and persisted frontiers are decoded.
func ParseNodeRoute(s string) NodeRoute {
	return NodeRoute{Kind: DecodeNodeKind(s)}
}

// ParseNodeKind builds a NodeKind from a bare display name: "Start" and
// "End" resolve to the virtual endpoints, anything else becomes
// Custom(s). Unlike DecodeNodeKind it does not expect the "Custom:"
// routing prefix, so call sites can write ParseNodeKind("fetch") instead
// of constructing Custom("fetch") by hand.
func ParseNodeKind(s string) NodeKind {
	switch s {
	case "Start":
		return Start
	case "End":
		return End
	default:
		return Custom(s)
	}
}

// MustNode is ParseNodeKind for call sites building a graph from a
// fixed set of literal names, where a Custom name colliding with the
// reserved "Start"/"End" strings is a programmer error worth panicking
// on immediately rather than silently aliasing a virtual endpoint.
func MustNode(name string) NodeKind {
	if name == "Start" || name == "End" {
		panic("graph: node name " + name + " is reserved for the virtual endpoint")
	}
	return Custom(name)
}
