package graph

import (
	"io"

	"github.com/google/uuid"
)

// CheckpointerKind selects which Checkpointer backend a session uses.
type CheckpointerKind uint8

const (
	// CheckpointerInMemory keeps one volatile entry per session.
	CheckpointerInMemory CheckpointerKind = iota
	// CheckpointerDurable persists step history to a durable backend,
	// named by RuntimeConfig.DurableStoreName.
	CheckpointerDurable
)

// DefaultConcurrencyLimit bounds how many nodes a superstep launches
// concurrently when no explicit limit is configured.
const DefaultConcurrencyLimit = 8

// SinkKind identifies one of the event bus's built-in sink types.
type SinkKind uint8

const (
	SinkStdOut SinkKind = iota
	SinkMemory
	SinkChannel
	SinkJSONLines
)

// SinkConfig names one configured event sink. Writer and Path are only
// meaningful for SinkChannel and SinkJSONLines respectively.
type SinkConfig struct {
	Kind   SinkKind
	Writer io.Writer
	Path   string
}

// DefaultEventBusBufferCapacity is the capacity NewEventBusConfig uses
// whenever the given capacity is zero or negative.
const DefaultEventBusBufferCapacity = 1024

// EventBusConfig configures the bounded broadcast that fans events out
// to sinks.
type EventBusConfig struct {
	BufferCapacity int
	Sinks          []SinkConfig
}

// NewEventBusConfig builds an EventBusConfig, defaulting a non-positive
// capacity to DefaultEventBusBufferCapacity.
func NewEventBusConfig(capacity int, sinks ...SinkConfig) EventBusConfig {
	if capacity <= 0 {
		capacity = DefaultEventBusBufferCapacity
	}
	return EventBusConfig{BufferCapacity: capacity, Sinks: sinks}
}

// WithStdoutOnly returns an EventBusConfig with a single stdout sink.
func WithStdoutOnly() EventBusConfig {
	return NewEventBusConfig(DefaultEventBusBufferCapacity, SinkConfig{Kind: SinkStdOut})
}

// WithMemorySink returns an EventBusConfig with stdout and in-memory sinks.
func WithMemorySink() EventBusConfig {
	return NewEventBusConfig(DefaultEventBusBufferCapacity,
		SinkConfig{Kind: SinkStdOut}, SinkConfig{Kind: SinkMemory})
}

// AddSink appends sink to the config if an equivalent kind/target isn't
// already present, returning the config for chaining.
func (c EventBusConfig) AddSink(sink SinkConfig) EventBusConfig {
	for _, existing := range c.Sinks {
		if existing.Kind == sink.Kind && existing.Path == sink.Path {
			return c
		}
	}
	c.Sinks = append(c.Sinks, sink)
	return c
}

// RuntimeConfig bundles the per-session options a GraphBuilder's
// compiled App is executed with.
type RuntimeConfig struct {
	SessionID        string
	ConcurrencyLimit int
	Checkpointer     CheckpointerKind
	DurableStoreName string
	EventBus         EventBusConfig
}

// Option mutates a RuntimeConfig during construction.
type Option func(*RuntimeConfig)

// NewRuntimeConfig builds a RuntimeConfig with a generated session id,
// the in-memory checkpointer, the default concurrency limit, and a
// stdout-only event bus, then applies opts in order.
func NewRuntimeConfig(opts ...Option) RuntimeConfig {
	cfg := RuntimeConfig{
		SessionID:        uuid.NewString(),
		ConcurrencyLimit: DefaultConcurrencyLimit,
		Checkpointer:     CheckpointerInMemory,
		EventBus:         WithStdoutOnly(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(c *RuntimeConfig) { c.SessionID = id }
}

// WithConcurrencyLimit overrides the superstep's concurrency cap.
func WithConcurrencyLimit(limit int) Option {
	return func(c *RuntimeConfig) {
		if limit > 0 {
			c.ConcurrencyLimit = limit
		}
	}
}

// WithCheckpointer selects the checkpointer backend, naming the durable
// store when applicable.
func WithCheckpointer(kind CheckpointerKind, durableStoreName string) Option {
	return func(c *RuntimeConfig) {
		c.Checkpointer = kind
		c.DurableStoreName = durableStoreName
	}
}

// WithEventBus overrides the event bus configuration wholesale.
func WithEventBus(bus EventBusConfig) Option {
	return func(c *RuntimeConfig) { c.EventBus = bus }
}

// WithStdoutEventBus is sugar for WithEventBus(WithStdoutOnly()).
func WithStdoutEventBus() Option {
	return WithEventBus(WithStdoutOnly())
}

// WithMemoryEventBus is sugar for WithEventBus(WithMemorySink()).
func WithMemoryEventBus() Option {
	return WithEventBus(WithMemorySink())
}
