package graph

import (
	"strconv"
	"time"
)

// LadderError is a recursive, structured error record: a human-readable
// message, an optional causing error forming a linked chain, and an
// open details payload for machine-readable context.
//
// LadderError implements the standard error interface and participates
// in errors.Unwrap chains via Cause, so callers can use errors.Is /
// errors.As across a ladder the same way they would with fmt.Errorf's
// %w chains.
type LadderError struct {
	Message string         `json:"message"`
	Cause   *LadderError   `json:"cause,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Msg builds a leaf LadderError with no cause and no details.
func Msg(message string) *LadderError {
	return &LadderError{Message: message}
}

// Wrap builds a LadderError whose cause is the given error, preserving
// any existing LadderError chain and falling back to a one-line message
// for plain errors.
func Wrap(message string, cause error) *LadderError {
	le := &LadderError{Message: message}
	switch c := cause.(type) {
	case nil:
	case *LadderError:
		le.Cause = c
	default:
		le.Cause = &LadderError{Message: cause.Error()}
	}
	return le
}

// WithDetails attaches structured context to the error and returns it
// for chaining.
func (e *LadderError) WithDetails(details map[string]any) *LadderError {
	e.Details = details
	return e
}

// Error implements the error interface, rendering "message: cause" when
// a cause is present.
func (e *LadderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes the cause chain to errors.Is / errors.As.
func (e *LadderError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}

// ErrorScope identifies where in the system an ErrorEvent originated.
type ErrorScope struct {
	kind    errorScopeKind
	nodeID  string
	step    uint64
	session string
}

type errorScopeKind uint8

const (
	scopeApp errorScopeKind = iota
	scopeScheduler
	scopeNode
	scopeRunner
)

// AppScope reports an error with no narrower attribution than the
// application as a whole.
func AppScope() ErrorScope { return ErrorScope{kind: scopeApp} }

// SchedulerScope attributes an error to the scheduler during a given step.
func SchedulerScope(step uint64) ErrorScope {
	return ErrorScope{kind: scopeScheduler, step: step}
}

// NodeScope attributes an error to a specific node's execution at a step.
func NodeScope(kind NodeKind, step uint64) ErrorScope {
	return ErrorScope{kind: scopeNode, nodeID: kind.Encode(), step: step}
}

// RunnerScope attributes an error to the session runner for a session at a step.
func RunnerScope(session string, step uint64) ErrorScope {
	return ErrorScope{kind: scopeRunner, session: session, step: step}
}

// String renders a short human-readable scope label, e.g. "node:Custom:A@3".
func (s ErrorScope) String() string {
	switch s.kind {
	case scopeScheduler:
		return "scheduler@" + strconv.FormatUint(s.step, 10)
	case scopeNode:
		return "node:" + s.nodeID + "@" + strconv.FormatUint(s.step, 10)
	case scopeRunner:
		return "runner:" + s.session + "@" + strconv.FormatUint(s.step, 10)
	default:
		return "app"
	}
}

// ErrorEvent is a structured, append-only record appended to the Errors
// channel by a node or by the core itself.
type ErrorEvent struct {
	When    time.Time      `json:"when"`
	Scope   ErrorScope     `json:"scope"`
	Err     *LadderError   `json:"error"`
	Tags    []string       `json:"tags,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// NewErrorEvent builds an ErrorEvent stamped with the current time.
func NewErrorEvent(scope ErrorScope, err *LadderError) ErrorEvent {
	return ErrorEvent{When: time.Now().UTC(), Scope: scope, Err: err}
}

// WithTag appends a tag and returns the event for chaining.
func (e ErrorEvent) WithTag(tag string) ErrorEvent {
	e.Tags = append(e.Tags, tag)
	return e
}

// WithContext attaches structured context and returns the event for chaining.
func (e ErrorEvent) WithContext(ctx map[string]any) ErrorEvent {
	e.Context = ctx
	return e
}

func (e ErrorEvent) clone() ErrorEvent {
	out := e
	if e.Tags != nil {
		out.Tags = append([]string(nil), e.Tags...)
	}
	if e.Context != nil {
		out.Context = make(map[string]any, len(e.Context))
		for k, v := range e.Context {
			out.Context[k] = v
		}
	}
	return out
}
