package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeKind_EncodeDecodeRoundTrip(t *testing.T) {
	cases := []NodeKind{Start, End, Custom("fetch"), Custom("summarize-results")}
	for _, nk := range cases {
		t.Run(nk.Encode(), func(t *testing.T) {
			decoded := DecodeNodeKind(nk.Encode())
			assert.Equal(t, nk, decoded)
		})
	}
}

func TestNodeKind_Predicates(t *testing.T) {
	assert.True(t, Start.IsStart())
	assert.True(t, Start.IsVirtual())
	assert.False(t, Start.IsCustom())

	assert.True(t, End.IsEnd())
	assert.True(t, End.IsVirtual())

	c := Custom("node-a")
	assert.True(t, c.IsCustom())
	assert.False(t, c.IsVirtual())
	assert.Equal(t, "node-a", c.Name())
}

func TestDecodeNodeKind_UnknownFallsBackToCustom(t *testing.T) {
	assert.Equal(t, Custom("weird"), DecodeNodeKind("weird"))
	assert.Equal(t, Custom("weird"), DecodeNodeKind("Custom:weird"))
}

func TestNodeKind_TextMarshalUnmarshal(t *testing.T) {
	text, err := Custom("reviewer").MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Custom:reviewer", string(text))

	var nk NodeKind
	require.NoError(t, nk.UnmarshalText([]byte("End")))
	assert.Equal(t, End, nk)
}

func TestParseNodeKind(t *testing.T) {
	assert.Equal(t, Start, ParseNodeKind("Start"))
	assert.Equal(t, End, ParseNodeKind("End"))
	assert.Equal(t, Custom("fetch"), ParseNodeKind("fetch"))
}

func TestMustNode_PanicsOnReservedName(t *testing.T) {
	assert.Panics(t, func() { MustNode("Start") })
	assert.NotPanics(t, func() { MustNode("fetch") })
}

func TestParseNodeRoute(t *testing.T) {
	route := ParseNodeRoute("Custom:summarize")
	assert.Equal(t, Custom("summarize"), route.Kind)
}
