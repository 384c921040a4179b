// Package telegram is the platform ingress: it long-polls the Bot API,
// extracts text from updates, and hands each inbound message to the daemon
// router keyed by user.
package telegram

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/zana-AI/zana-planner/internal/config"
)

// UpdateHandler receives inbound messages and commands. Implementations run
// on the bot's update goroutine and should hand work off quickly.
type UpdateHandler interface {
	HandleMessage(ctx context.Context, msg Inbound)
	HandleCommand(ctx context.Context, cmd Command)
}

// Bot represents a Telegram bot instance.
type Bot struct {
	api     *tgbotapi.BotAPI
	cfg     config.TelegramConfig
	logger  zerolog.Logger
	handler UpdateHandler

	mu      sync.Mutex
	running bool
	updates tgbotapi.UpdatesChannel
}

// New creates a new Telegram bot instance.
func New(cfg config.TelegramConfig, logger zerolog.Logger) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot := &Bot{
		api:    api,
		cfg:    cfg,
		logger: logger.With().Str("component", "telegram").Logger(),
	}

	bot.logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authenticated")

	return bot, nil
}

// SetHandler sets the update handler. Must be called before Start.
func (b *Bot) SetHandler(handler UpdateHandler) {
	b.handler = handler
}

// Start begins long polling for updates.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return fmt.Errorf("bot is already running")
	}
	if b.handler == nil {
		return fmt.Errorf("update handler is required")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	b.updates = b.api.GetUpdatesChan(u)
	b.running = true

	go b.processUpdates(ctx)

	b.logger.Info().Msg("Telegram bot started")
	return nil
}

// Stop stops the bot. Safe to call from any goroutine.
func (b *Bot) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.mu.Unlock()

	b.api.StopReceivingUpdates()
	b.logger.Info().Msg("Telegram bot stopped")
}

// IsRunning returns whether the bot is running.
func (b *Bot) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *Bot) processUpdates(ctx context.Context) {
	for update := range b.updates {
		if !b.IsRunning() {
			break
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		b.handleUpdate(ctx, update)
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	if !b.allowed(msg.From.ID) {
		b.logger.Warn().Int64("user_id", msg.From.ID).Msg("Ignoring message from user outside allowlist")
		return
	}

	if msg.IsCommand() {
		b.handler.HandleCommand(ctx, commandFromMessage(msg))
		return
	}

	inbound, ok := inboundFromMessage(msg)
	if !ok {
		b.logger.Debug().Int("update_id", update.UpdateID).Msg("Ignoring update without usable text")
		return
	}
	b.handler.HandleMessage(ctx, inbound)
}

// allowed applies the allowlist; an empty allowlist means open access.
func (b *Bot) allowed(userID int64) bool {
	if len(b.cfg.Allowlist) == 0 {
		return true
	}
	for _, id := range b.cfg.Allowlist {
		if id == userID {
			return true
		}
	}
	return false
}

// SendMessage sends a text message.
func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	b.logger.Debug().Int64("chat_id", chatID).Msg("Message sent")
	return nil
}

// SendTyping shows the typing indicator while a run is in progress.
func (b *Bot) SendTyping(chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := b.api.Request(action); err != nil {
		b.logger.Debug().Err(err).Int64("chat_id", chatID).Msg("Failed to send typing action")
	}
}
