package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLadderError_ErrorRendersCauseChain(t *testing.T) {
	err := Wrap("outer", Wrap("inner", Msg("root")))
	assert.Equal(t, "outer: inner: root", err.Error())
}

func TestLadderError_UnwrapChain(t *testing.T) {
	root := Msg("root")
	err := Wrap("outer", root)

	var target *LadderError
	require.ErrorAs(t, err, &target)

	unwrapped := errors.Unwrap(err)
	assert.Equal(t, root, unwrapped)
}

func TestWrap_PlainErrorBecomesLeafMessage(t *testing.T) {
	err := Wrap("failed", errors.New("boom"))
	assert.Equal(t, "failed: boom", err.Error())
}

func TestErrorScope_String(t *testing.T) {
	assert.Equal(t, "app", AppScope().String())
	assert.Equal(t, "scheduler@3", SchedulerScope(3).String())
	assert.Equal(t, "node:Custom:fetch@2", NodeScope(Custom("fetch"), 2).String())
	assert.Equal(t, "runner:sess-1@5", RunnerScope("sess-1", 5).String())
}

func TestErrorEvent_WithTagAndContext(t *testing.T) {
	event := NewErrorEvent(AppScope(), Msg("boom")).
		WithTag("retryable").
		WithContext(map[string]any{"attempt": 1})

	assert.Equal(t, []string{"retryable"}, event.Tags)
	assert.Equal(t, 1, event.Context["attempt"])
}

func TestErrorEvent_CloneIsIndependent(t *testing.T) {
	event := NewErrorEvent(AppScope(), Msg("boom")).WithTag("a").WithContext(map[string]any{"k": "v"})
	clone := event.clone()

	clone.Tags[0] = "mutated"
	clone.Context["k"] = "changed"

	assert.Equal(t, "a", event.Tags[0])
	assert.Equal(t, "v", event.Context["k"])
}
