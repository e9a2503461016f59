package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIncomingChatMessage(t *testing.T) {
	msg, ok := NewIncomingChatMessage("C1", "U1", "1700000000.000100", "? ping --loud hi", "")
	require.True(t, ok)

	assert.Equal(t, "ping", msg.Command)
	assert.Equal(t, []string{"--loud"}, msg.Arguments)
	assert.Equal(t, "--loud hi", msg.UserText)
	assert.Equal(t, "U1", msg.ChatUser.UserID)
	assert.True(t, msg.HasArgument("--loud"))
	assert.False(t, msg.HasArgument("--quiet"))
	assert.False(t, msg.IsInThread())
}

func TestNewIncomingChatMessage_NotACommand(t *testing.T) {
	_, ok := NewIncomingChatMessage("C1", "U1", "1", "ping", "")
	assert.False(t, ok)
}

func TestBotIdentity_IconIsEmoji(t *testing.T) {
	assert.True(t, BotIdentity{Icon: ":cat:"}.IconIsEmoji())
	assert.False(t, BotIdentity{Icon: "https://example.com/cat.png"}.IconIsEmoji())
	assert.False(t, BotIdentity{Icon: "::"}.IconIsEmoji())
}
