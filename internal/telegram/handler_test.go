package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 7,
		Date:      1750000000,
		Text:      text,
		From:      &tgbotapi.User{ID: 123456789},
		Chat:      &tgbotapi.Chat{ID: 987},
	}
}

func TestInboundFromMessage(t *testing.T) {
	inbound, ok := inboundFromMessage(testMessage("add a promise to run"))
	require.True(t, ok)

	assert.Equal(t, "123456789", inbound.UserID)
	assert.Equal(t, int64(987), inbound.ChatID)
	assert.Equal(t, "add a promise to run", inbound.Text)
	assert.Equal(t, "telegram:123456789", inbound.Key())
	assert.Equal(t, int64(1750000000), inbound.ReceivedAt.Unix())
}

func TestInboundFromMessageUsesCaption(t *testing.T) {
	msg := testMessage("")
	msg.Caption = "my gym selfie, log 1 hour"

	inbound, ok := inboundFromMessage(msg)
	require.True(t, ok)
	assert.Equal(t, "my gym selfie, log 1 hour", inbound.Text)
}

func TestInboundFromMessageSkipsEmpty(t *testing.T) {
	_, ok := inboundFromMessage(testMessage("   "))
	assert.False(t, ok)
}

func TestCommandFromMessage(t *testing.T) {
	msg := testMessage("/status now please")
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 7}}

	cmd := commandFromMessage(msg)
	assert.Equal(t, "status", cmd.Name)
	assert.Equal(t, []string{"now", "please"}, cmd.Args)
	assert.Equal(t, "123456789", cmd.UserID)
}

func TestAllowlist(t *testing.T) {
	open := &Bot{}
	assert.True(t, open.allowed(42))

	restricted := &Bot{}
	restricted.cfg.Allowlist = []int64{1, 2}
	assert.True(t, restricted.allowed(2))
	assert.False(t, restricted.allowed(42))
}
