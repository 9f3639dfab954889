package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogEmitter_TextMode_WritesNodeAndDiagnosticLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, false)

	l.Emit(NewNodeEvent("fetch", 3, "scope", "did a thing"))
	l.Emit(NewDiagnosticEvent("scope", "heads up"))

	out := buf.String()
	assert.Contains(t, out, "[node] node=fetch step=3")
	assert.Contains(t, out, "[diagnostic] scope=scope msg=heads up")
}

func TestLogEmitter_JSONMode_WritesOneJSONObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, true)

	l.Emit(NewNodeEvent("fetch", 1, "scope", "hi"))

	var decoded Event
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.NotNil(t, decoded.Node)
	assert.Equal(t, "fetch", decoded.Node.NodeID)
}

func TestLogEmitter_NilWriterDefaultsToStdout(t *testing.T) {
	l := NewLogEmitter(nil, false)
	assert.NotNil(t, l)
}

func TestLogEmitter_EmitBatchWritesInOrder(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, false)

	require.NoError(t, l.EmitBatch(context.Background(), []Event{
		NewDiagnosticEvent("a", "first"),
		NewDiagnosticEvent("b", "second"),
	}))

	out := buf.String()
	assert.True(t, bytes.Index(buf.Bytes(), []byte("first")) < bytes.Index(buf.Bytes(), []byte("second")))
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")
}

func TestLogEmitter_FlushIsNoOp(t *testing.T) {
	l := NewLogEmitter(nil, false)
	assert.NoError(t, l.Flush(context.Background()))
}
