package telegram

import (
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// keyPrefix namespaces coordinator keys by platform so another ingress can
// never collide with Telegram users.
const keyPrefix = "telegram:"

// Inbound is one text message extracted from a Telegram update.
type Inbound struct {
	UserID     string
	ChatID     int64
	MessageID  int
	Text       string
	ReceivedAt time.Time
}

// Key returns the coordinator key for this message's user.
func (m Inbound) Key() string {
	return keyPrefix + m.UserID
}

// Command is a parsed bot command like /start or /status.
type Command struct {
	UserID    string
	ChatID    int64
	MessageID int
	Name      string
	Args      []string
}

// inboundFromMessage extracts the usable text from a message. Captioned
// media counts as text; everything else is skipped.
func inboundFromMessage(msg *tgbotapi.Message) (Inbound, bool) {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Inbound{}, false
	}

	receivedAt := time.Unix(int64(msg.Date), 0)
	if msg.Date == 0 {
		receivedAt = time.Now()
	}

	return Inbound{
		UserID:     strconv.FormatInt(msg.From.ID, 10),
		ChatID:     msg.Chat.ID,
		MessageID:  msg.MessageID,
		Text:       text,
		ReceivedAt: receivedAt,
	}, true
}

func commandFromMessage(msg *tgbotapi.Message) Command {
	return Command{
		UserID:    strconv.FormatInt(msg.From.ID, 10),
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Name:      msg.Command(),
		Args:      strings.Fields(msg.CommandArguments()),
	}
}
