package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelKind_String(t *testing.T) {
	assert.Equal(t, "messages", ChannelMessages.String())
	assert.Equal(t, "extras", ChannelExtras.String())
	assert.Equal(t, "errors", ChannelErrors.String())
}

func TestAllChannelKinds_CoversEveryChannel(t *testing.T) {
	assert.ElementsMatch(t, []ChannelKind{ChannelMessages, ChannelExtras, ChannelErrors}, AllChannelKinds[:])
}
