package daemon

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zana-AI/zana-planner/internal/observability"
	"github.com/zana-AI/zana-planner/internal/store"
	"github.com/zana-AI/zana-planner/internal/telegram"
	"github.com/zana-AI/zana-planner/internal/tracing"
	"github.com/zana-AI/zana-planner/pkg/agentloop"
	"github.com/zana-AI/zana-planner/pkg/coordinator"
	"github.com/zana-AI/zana-planner/pkg/modelpolicy"
	"github.com/zana-AI/zana-planner/pkg/provider"
)

// contextTokenBudget bounds the estimated size of the conversation window
// fed into a run. History beyond it is dropped oldest-first.
const contextTokenBudget = 4000

// errorReply is sent when a run fails terminally; details stay in the logs.
const errorReply = "I'm having trouble right now. Please try again in a moment."

// Replier delivers outbound messages to a chat.
type Replier interface {
	SendMessage(chatID int64, text string) error
	SendTyping(chatID int64)
}

// Router drives the inbound pipeline: debounce and single-flight through the
// coordinator, then agent runs batch by batch until the user's lane is
// drained.
type Router struct {
	coord        *coordinator.Coordinator
	executor     *agentloop.Executor
	store        *store.Store
	replier      Replier
	logger       zerolog.Logger
	historyTurns int

	wg sync.WaitGroup
}

// NewRouter creates the router.
func NewRouter(
	coord *coordinator.Coordinator,
	executor *agentloop.Executor,
	st *store.Store,
	replier Replier,
	historyTurns int,
	logger zerolog.Logger,
) *Router {
	if historyTurns <= 0 {
		historyTurns = 20
	}
	return &Router{
		coord:        coord,
		executor:     executor,
		store:        st,
		replier:      replier,
		logger:       logger.With().Str("component", "router").Logger(),
		historyTurns: historyTurns,
	}
}

// HandleMessage implements telegram.UpdateHandler. It returns immediately;
// the run happens on its own goroutine so the update loop never blocks on a
// debounce window.
func (r *Router) HandleMessage(_ context.Context, msg telegram.Inbound) {
	r.dispatch(msg)
}

// InjectReminder feeds a system-generated reminder through the same pipeline
// as a user message. For Telegram DMs the chat id equals the user id.
func (r *Router) InjectReminder(_ context.Context, userID, text string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	r.dispatch(telegram.Inbound{
		UserID:     userID,
		ChatID:     chatID,
		Text:       text,
		ReceivedAt: time.Now(),
	})
	return nil
}

func (r *Router) dispatch(msg telegram.Inbound) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runLane(msg)
	}()
}

// runLane acquires the user's lane (or just enqueues) and then processes
// batches until the lane drains.
func (r *Router) runLane(msg telegram.Inbound) {
	ctx := tracing.NewRequestContext(context.Background())
	ctx = tracing.WithUserID(ctx, msg.UserID)
	logger := tracing.LoggerFromContext(ctx, r.logger)

	batch, acquired := r.coord.BeginOrEnqueue(ctx, msg.Key(), coordinator.Message{
		Raw:        msg,
		Text:       msg.Text,
		ReceivedAt: msg.ReceivedAt,
	})
	if !acquired {
		return
	}

	for batch != nil {
		r.processBatch(ctx, logger, msg.ChatID, batch)
		batch = r.coord.DrainOrFinish(msg.Key())
	}
}

func (r *Router) processBatch(ctx context.Context, logger zerolog.Logger, chatID int64, batch *coordinator.Batch) {
	userID := tracing.GetUserID(ctx)
	text := coordinator.BuildCollectMessage(batch)

	observability.RecordBatch("telegram", batch.Size())
	r.replier.SendTyping(chatID)

	route := r.executor.Classify(ctx, text)
	logger.Debug().
		Str("mode", route.Mode).
		Str("confidence", route.Confidence).
		Str("reason", route.Reason).
		Msg("Message routed")

	messages := r.contextMessages(ctx, userID, text)

	if err := r.store.AppendHistory(ctx, userID, "user", text); err != nil {
		logger.Warn().Err(err).Msg("Failed to persist user turn")
	}

	result, err := r.executor.Run(ctx, agentloop.RunParams{Messages: messages, Route: &route})
	if err != nil {
		logger.Error().Err(err).Msg("Agent run failed")
		r.reply(logger, chatID, errorReply)
		return
	}

	if err := r.store.AppendHistory(ctx, userID, "assistant", result.Response); err != nil {
		logger.Warn().Err(err).Msg("Failed to persist assistant turn")
	}
	if err := r.store.PruneHistory(ctx, userID, r.historyTurns*2); err != nil {
		logger.Warn().Err(err).Msg("Failed to prune history")
	}

	r.reply(logger, chatID, result.Response)
}

// contextMessages builds the conversation window: persisted history followed
// by the current batch text, trimmed to the token budget for the model the
// run will most likely use.
func (r *Router) contextMessages(ctx context.Context, userID, text string) []provider.Message {
	var messages []provider.Message

	history, err := r.store.RecentHistory(ctx, userID, r.historyTurns)
	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to load history, running without context")
	} else {
		for _, turn := range history {
			messages = append(messages, provider.Message{Role: turn.Role, Content: turn.Content})
		}
	}

	messages = append(messages, provider.Message{Role: "user", Content: text})
	return trimToTokenBudget(messages, r.executor.PrimaryModel(), contextTokenBudget)
}

// trimToTokenBudget drops the oldest turns until the estimated window fits.
// The current message is always kept, even when it alone exceeds the budget.
func trimToTokenBudget(messages []provider.Message, model string, budget int) []provider.Message {
	for len(messages) > 1 && estimateWindow(messages, model) > budget {
		messages = messages[1:]
	}
	return messages
}

func estimateWindow(messages []provider.Message, model string) int {
	window := make([]modelpolicy.Message, len(messages))
	for i, msg := range messages {
		window[i] = modelpolicy.Message{Role: msg.Role, Content: msg.Content}
	}
	return modelpolicy.EstimateMessagesTokens(window, model)
}

func (r *Router) reply(logger zerolog.Logger, chatID int64, text string) {
	if text == "" {
		return
	}
	if err := r.replier.SendMessage(chatID, text); err != nil {
		logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send reply")
	}
}

// HandleCommand implements telegram.UpdateHandler for /-commands.
func (r *Router) HandleCommand(_ context.Context, cmd telegram.Command) {
	ctx := tracing.NewRequestContext(context.Background())
	ctx = tracing.WithUserID(ctx, cmd.UserID)
	logger := tracing.LoggerFromContext(ctx, r.logger)

	switch cmd.Name {
	case "start":
		r.reply(logger, cmd.ChatID,
			"Hi! I'm Zana. Tell me what you want to commit to and I'll help you keep your promises.")
	case "help":
		r.reply(logger, cmd.ChatID,
			"Just talk to me: \"promise to run 3 times a week\", \"I read for an hour\", \"what did I promise?\". Use /status for a quick summary.")
	case "status":
		r.reply(logger, cmd.ChatID, r.statusText(ctx, cmd.UserID))
	default:
		r.reply(logger, cmd.ChatID, fmt.Sprintf("Unknown command: /%s", cmd.Name))
	}
}

func (r *Router) statusText(ctx context.Context, userID string) string {
	promises, err := r.store.ListPromises(ctx, userID, true)
	if err != nil {
		return errorReply
	}
	if len(promises) == 0 {
		return "You have no active promises. Tell me what you'd like to commit to!"
	}

	text := fmt.Sprintf("You have %d active promise(s):\n", len(promises))
	for _, p := range promises {
		text += "- " + p.Text + "\n"
	}
	return text
}

// Wait blocks until all in-flight lanes finish. Used during shutdown.
func (r *Router) Wait() {
	r.wg.Wait()
}
