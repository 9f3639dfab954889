package emit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullEmitter_DiscardsEverything(t *testing.T) {
	n := NewNullEmitter()
	assert.NotPanics(t, func() {
		n.Emit(NewNodeEvent("a", 1, "scope", "msg"))
	})
	require.NoError(t, n.EmitBatch(context.Background(), []Event{NewDiagnosticEvent("scope", "msg")}))
	require.NoError(t, n.Flush(context.Background()))
}
