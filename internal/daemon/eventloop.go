package daemon

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/zana-AI/zana-planner/internal/observability"
	"github.com/zana-AI/zana-planner/internal/telegram"
	"github.com/zana-AI/zana-planner/internal/tracing"
)

// EventLoop runs periodic maintenance: lane statistics and expired-block
// sweep logging.
type EventLoop struct {
	daemon *Daemon
}

// NewEventLoop creates the event loop.
func NewEventLoop(d *Daemon) *EventLoop {
	return &EventLoop{daemon: d}
}

// Run runs until the context is cancelled.
func (e *EventLoop) Run(ctx context.Context) {
	e.daemon.logger.Info().Msg("Event loop started")

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.daemon.logger.Info().Msg("Event loop stopping")
			return

		case <-ticker.C:
			e.processTasks()
		}
	}
}

func (e *EventLoop) processTasks() {
	active := e.daemon.coord.ActiveCount()
	observability.SetActiveRunners(active)
	if active > 0 {
		e.daemon.logger.Debug().Int("active_lanes", active).Msg("Lane stats")
	}

	for key, block := range e.daemon.policy.Blocks() {
		if time.Now().After(block.BlockedUntil) {
			e.daemon.logger.Debug().Str("model", key).Msg("Rate-limit block expired")
		}
	}
}

// typingSink shows the Telegram typing indicator while a run progresses.
// The chat id is recovered from the ambient user identity: for direct
// messages they are the same value.
type typingSink struct {
	bot    *telegram.Bot
	logger zerolog.Logger
}

func newTypingSink(bot *telegram.Bot, logger zerolog.Logger) *typingSink {
	return &typingSink{
		bot:    bot,
		logger: logger.With().Str("component", "typing").Logger(),
	}
}

func (s *typingSink) AgentStep(ctx context.Context, _ int) {
	s.sendTyping(ctx)
}

func (s *typingSink) ToolStep(ctx context.Context, _ string) {
	s.sendTyping(ctx)
}

func (s *typingSink) sendTyping(ctx context.Context) {
	userID := tracing.GetUserID(ctx)
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return
	}
	s.bot.SendTyping(chatID)
}
