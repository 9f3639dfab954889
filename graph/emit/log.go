package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter writes structured event output to a writer, either as
// human-readable text (one line per event) or as JSON Lines.
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter returns a LogEmitter writing to writer (os.Stdout if
// nil) in text or JSON mode.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// Emit writes a single event.
func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	switch {
	case event.Node != nil:
		_, _ = fmt.Fprintf(l.writer, "[node] node=%s step=%d scope=%s msg=%s\n",
			event.Node.NodeID, event.Node.Step, event.Node.Scope, event.Node.Message)
	case event.Diagnostic != nil:
		_, _ = fmt.Fprintf(l.writer, "[diagnostic] scope=%s msg=%s\n",
			event.Diagnostic.Scope, event.Diagnostic.Message)
	default:
		_, _ = fmt.Fprintln(l.writer, "[event] (streaming payload)")
	}
}

// EmitBatch writes events in order, one Emit call per event.
func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		l.Emit(event)
	}
	return nil
}

// Flush is a no-op: LogEmitter writes synchronously with no internal
// buffering. Wrap writer in a bufio.Writer and flush that directly if
// buffering is needed.
func (l *LogEmitter) Flush(_ context.Context) error { return nil }
