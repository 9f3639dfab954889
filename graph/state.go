package graph

import "math"

// VersionedChannel pairs a channel's payload with its monotonic version
// counter. Version starts at 1 and is bumped at most once per superstep,
// only if the barrier observed the payload as modified; it saturates at
// math.MaxUint32 rather than wrapping.
type VersionedChannel[T any] struct {
	Payload T
	Version uint32
}

// bumpVersion increments v by one using saturating arithmetic: a channel
// already at math.MaxUint32 stays there.
func bumpVersion(v uint32) uint32 {
	if v == math.MaxUint32 {
		return v
	}
	return v + 1
}

// VersionedState is the per-session record of the three channels: an
// ordered message log, a key/value extras map, and an ordered error log.
// A Session exclusively owns its VersionedState; snapshots taken from it
// are deep copies safe to share with concurrently running nodes.
type VersionedState struct {
	Messages VersionedChannel[[]Message]
	Extras   VersionedChannel[map[string]any]
	Errors   VersionedChannel[[]ErrorEvent]
}

// NewVersionedState returns an empty VersionedState with every channel at
// version 1, the state a fresh session starts with.
func NewVersionedState() VersionedState {
	return VersionedState{
		Messages: VersionedChannel[[]Message]{Version: 1},
		Extras:   VersionedChannel[map[string]any]{Payload: map[string]any{}, Version: 1},
		Errors:   VersionedChannel[[]ErrorEvent]{Version: 1},
	}
}

// Snapshot is a deep-copied, read-only view of VersionedState taken at the
// start of a step. Mutating the originating session state after a
// snapshot is taken never changes the snapshot's payload or versions.
type Snapshot struct {
	Messages    []Message
	MessagesVer uint32
	Extras      map[string]any
	ExtrasVer   uint32
	Errors      []ErrorEvent
	ErrorsVer   uint32
}

// Snapshot takes a deep copy of the current state for handoff to node
// invocations within a single step.
func (s *VersionedState) Snapshot() Snapshot {
	return Snapshot{
		Messages:    cloneMessages(s.Messages.Payload),
		MessagesVer: s.Messages.Version,
		Extras:      cloneExtras(s.Extras.Payload),
		ExtrasVer:   s.Extras.Version,
		Errors:      cloneErrors(s.Errors.Payload),
		ErrorsVer:   s.Errors.Version,
	}
}

// Clone returns a deep copy of the state, used when persisting or
// forking a checkpoint.
func (s VersionedState) Clone() VersionedState {
	return VersionedState{
		Messages: VersionedChannel[[]Message]{Payload: cloneMessages(s.Messages.Payload), Version: s.Messages.Version},
		Extras:   VersionedChannel[map[string]any]{Payload: cloneExtras(s.Extras.Payload), Version: s.Extras.Version},
		Errors:   VersionedChannel[[]ErrorEvent]{Payload: cloneErrors(s.Errors.Payload), Version: s.Errors.Version},
	}
}

func cloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m.clone()
	}
	return out
}

func cloneExtras(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneErrors(in []ErrorEvent) []ErrorEvent {
	if in == nil {
		return nil
	}
	out := make([]ErrorEvent, len(in))
	for i, e := range in {
		out[i] = e.clone()
	}
	return out
}

// VersionOf returns the snapshot's recorded version for the given channel.
func (s Snapshot) VersionOf(c ChannelKind) uint32 {
	switch c {
	case ChannelMessages:
		return s.MessagesVer
	case ChannelExtras:
		return s.ExtrasVer
	case ChannelErrors:
		return s.ErrorsVer
	default:
		return 0
	}
}
