package emit

import "context"

// Emitter receives observability events from workflow execution. The
// bus is not on the critical path for correctness: implementations must
// be non-blocking, thread-safe, and resilient — a slow or failing sink
// must never stall or crash a node.
type Emitter interface {
	// Emit publishes a single event. It must not block.
	Emit(event Event)
	// EmitBatch publishes events in order, returning an error only on
	// catastrophic, non-per-event failures.
	EmitBatch(ctx context.Context, events []Event) error
	// Flush blocks until buffered events are delivered or ctx expires.
	Flush(ctx context.Context) error
}
