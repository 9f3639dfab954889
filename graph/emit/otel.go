package emit

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns events into span events on the trace active for a
// given step, so a node's emissions show up alongside the superstep
// span a session runner would open around it.
type OTelEmitter struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[uint64]trace.Span
}

// NewOTelEmitter returns an emitter that records events as span events
// via tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer, spans: make(map[uint64]trace.Span)}
}

// StartStep opens a span for the given step number and returns a
// context carrying it; callers should pass that context to node
// invocations for the duration of the step and call EndStep when done.
func (o *OTelEmitter) StartStep(ctx context.Context, step uint64) context.Context {
	ctx, span := o.tracer.Start(ctx, "superstep")
	span.SetAttributes(attribute.Int64("step", int64(step)))
	o.mu.Lock()
	o.spans[step] = span
	o.mu.Unlock()
	return ctx
}

// EndStep closes the span opened by StartStep for step.
func (o *OTelEmitter) EndStep(step uint64) {
	o.mu.Lock()
	span, ok := o.spans[step]
	delete(o.spans, step)
	o.mu.Unlock()
	if ok {
		span.End()
	}
}

// Emit records event as a span event on its step's active span, falling
// back to a no-op if the step has no open span (e.g. a diagnostic
// emitted outside any step).
func (o *OTelEmitter) Emit(event Event) {
	var step uint64
	var name string
	attrs := []attribute.KeyValue{}

	switch {
	case event.Node != nil:
		step = event.Node.Step
		name = "node_event"
		attrs = append(attrs,
			attribute.String("node_id", event.Node.NodeID),
			attribute.String("scope", event.Node.Scope),
			attribute.String("message", event.Node.Message),
		)
	case event.Diagnostic != nil:
		name = "diagnostic_event"
		attrs = append(attrs,
			attribute.String("scope", event.Diagnostic.Scope),
			attribute.String("message", event.Diagnostic.Message),
		)
	default:
		return
	}

	o.mu.Lock()
	span, ok := o.spans[step]
	o.mu.Unlock()
	if !ok {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// EmitBatch records every event in order.
func (o *OTelEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		o.Emit(event)
	}
	return nil
}

// Flush ends any spans still open; OpenTelemetry exporters handle their
// own batching and export timing beyond this point.
func (o *OTelEmitter) Flush(_ context.Context) error {
	o.mu.Lock()
	spans := o.spans
	o.spans = make(map[uint64]trace.Span)
	o.mu.Unlock()
	for _, span := range spans {
		span.End()
	}
	return nil
}
