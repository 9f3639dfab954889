package graph

// Reducer merges a single node's delta into the session state. A reducer
// never bumps versions; the barrier owns version bumping.
type Reducer interface {
	Apply(state *VersionedState, delta NodePartial)
}

// ReducerFunc adapts a plain function to the Reducer interface.
type ReducerFunc func(state *VersionedState, delta NodePartial)

// Apply implements Reducer.
func (f ReducerFunc) Apply(state *VersionedState, delta NodePartial) { f(state, delta) }

// AddMessages appends every message in the delta to the messages channel.
var AddMessages Reducer = ReducerFunc(func(state *VersionedState, delta NodePartial) {
	state.Messages.Payload = append(state.Messages.Payload, delta.Messages...)
})

// MapMerge inserts or overwrites each key/value pair in the delta's
// extras into the extras channel.
var MapMerge Reducer = ReducerFunc(func(state *VersionedState, delta NodePartial) {
	if state.Extras.Payload == nil {
		state.Extras.Payload = map[string]any{}
	}
	for k, v := range delta.Extras {
		state.Extras.Payload[k] = v
	}
})

// AddErrors appends every error event in the delta to the errors channel.
var AddErrors Reducer = ReducerFunc(func(state *VersionedState, delta NodePartial) {
	state.Errors.Payload = append(state.Errors.Payload, delta.Errors...)
})

// channelGuard reports whether delta carries meaningful (non-empty) data
// for the given channel. Missing fields and empty collections are
// equivalent: both count as no-op for that channel.
func channelGuard(channel ChannelKind, delta NodePartial) bool {
	switch channel {
	case ChannelMessages:
		return len(delta.Messages) > 0
	case ChannelExtras:
		return len(delta.Extras) > 0
	case ChannelErrors:
		return len(delta.Errors) > 0
	default:
		return false
	}
}

// ReducerRegistry maps a channel tag to an ordered list of reducers,
// allowing multiple reducers per channel if a caller extends the
// registry beyond the built-ins.
type ReducerRegistry struct {
	reducers map[ChannelKind][]Reducer
}

// NewReducerRegistry returns an empty registry with no reducers registered.
func NewReducerRegistry() *ReducerRegistry {
	return &ReducerRegistry{reducers: make(map[ChannelKind][]Reducer)}
}

// DefaultReducerRegistry returns a registry pre-populated with the three
// built-in reducers, one per channel.
func DefaultReducerRegistry() *ReducerRegistry {
	r := NewReducerRegistry()
	r.Register(ChannelMessages, AddMessages)
	r.Register(ChannelExtras, MapMerge)
	r.Register(ChannelErrors, AddErrors)
	return r
}

// Register adds a reducer to the channel's list and returns the registry
// for chaining.
func (r *ReducerRegistry) Register(channel ChannelKind, reducer Reducer) *ReducerRegistry {
	r.reducers[channel] = append(r.reducers[channel], reducer)
	return r
}

// WithReducer is a builder-style alias for Register, kept for call sites
// that prefer a fluent construction style.
func (r *ReducerRegistry) WithReducer(channel ChannelKind, reducer Reducer) *ReducerRegistry {
	return r.Register(channel, reducer)
}

// TryUpdate applies every reducer registered for channel if and only if
// the delta carries non-empty data for that channel. It reports
// ReducerUnknownChannelError if no reducer is registered for a channel
// that does carry data.
func (r *ReducerRegistry) TryUpdate(channel ChannelKind, state *VersionedState, delta NodePartial) error {
	if !channelGuard(channel, delta) {
		return nil
	}
	reducers, ok := r.reducers[channel]
	if !ok {
		return &ReducerUnknownChannelError{Channel: channel}
	}
	for _, reducer := range reducers {
		reducer.Apply(state, delta)
	}
	return nil
}

// ApplyAll iterates every channel kind, applying TryUpdate to each; the
// guard inside TryUpdate turns channels with no data into no-ops, and a
// channel that carries data but has no registered reducer is reported as
// ReducerUnknownChannelError.
func (r *ReducerRegistry) ApplyAll(state *VersionedState, delta NodePartial) error {
	for _, channel := range AllChannelKinds {
		if err := r.TryUpdate(channel, state, delta); err != nil {
			return err
		}
	}
	return nil
}

// ReducerUnknownChannelError reports that a delta carried data for a
// channel with no registered reducer.
type ReducerUnknownChannelError struct {
	Channel ChannelKind
}

func (e *ReducerUnknownChannelError) Error() string {
	return "weavegraph: no reducers registered for channel: " + e.Channel.String()
}
