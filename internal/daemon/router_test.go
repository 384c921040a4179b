package daemon

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zana-AI/zana-planner/internal/store"
	"github.com/zana-AI/zana-planner/internal/telegram"
	"github.com/zana-AI/zana-planner/pkg/agentloop"
	"github.com/zana-AI/zana-planner/pkg/coordinator"
	"github.com/zana-AI/zana-planner/pkg/modelpolicy"
	"github.com/zana-AI/zana-planner/pkg/provider"
	"github.com/zana-AI/zana-planner/pkg/tools"
)

type fakeReplier struct {
	mu       sync.Mutex
	messages []string
	chatIDs  []int64
	typing   int
}

func (f *fakeReplier) SendMessage(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	f.chatIDs = append(f.chatIDs, chatID)
	return nil
}

func (f *fakeReplier) SendTyping(int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing++
}

func (f *fakeReplier) lastMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

// routeTurn is the classification reply consumed before every run.
func routeTurn(mode string) provider.ScriptedTurn {
	return provider.ScriptedTurn{Response: &provider.Response{
		Content: `{"mode":"` + mode + `","confidence":"high","reason":"test"}`,
	}}
}

func newTestRouter(t *testing.T, turns ...provider.ScriptedTurn) (*Router, *store.Store, *fakeReplier, *provider.ScriptedProvider) {
	t.Helper()

	st, err := store.Open(store.Config{
		Path:   filepath.Join(t.TempDir(), "test.db"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	registry, err := tools.NewRegistry(st, zerolog.Nop())
	require.NoError(t, err)

	scripted := provider.NewScriptedProvider(turns...)
	executor, err := agentloop.New(scripted, modelpolicy.New(zerolog.Nop()), registry.Guards(), agentloop.Config{
		Models: []string{"m1"},
	}, nil, zerolog.Nop())
	require.NoError(t, err)

	coord := coordinator.New(coordinator.Config{}, zerolog.Nop())
	replier := &fakeReplier{}
	router := NewRouter(coord, executor, st, replier, 10, zerolog.Nop())
	return router, st, replier, scripted
}

func inboundMessage(text string) telegram.Inbound {
	return telegram.Inbound{
		UserID:     "123456",
		ChatID:     123456,
		MessageID:  1,
		Text:       text,
		ReceivedAt: time.Now(),
	}
}

func TestRouterFullCycle(t *testing.T) {
	router, st, replier, scripted := newTestRouter(t,
		routeTurn("engagement"),
		provider.ScriptedTurn{Response: &provider.Response{Content: "Noted, keep it up!"}},
	)

	router.HandleMessage(context.Background(), inboundMessage("I went running today"))
	router.Wait()

	assert.Equal(t, "Noted, keep it up!", replier.lastMessage())
	assert.GreaterOrEqual(t, replier.typing, 1)

	// The classification call precedes the run and carries no tools.
	require.Equal(t, 2, scripted.Calls())
	assert.Empty(t, scripted.Requests[0].Tools)
	assert.Contains(t, scripted.Requests[1].SystemPrompt, "conversation")

	history, err := st.RecentHistory(context.Background(), "123456", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Contains(t, history[0].Content, "I went running today")
	assert.Equal(t, "assistant", history[1].Role)
}

func TestRouterHeuristicRouteOnUnparsableClassification(t *testing.T) {
	// The classification reply is prose, so the heuristic takes over:
	// "add a promise" phrasing resolves to engagement handling.
	router, _, replier, scripted := newTestRouter(t,
		provider.ScriptedTurn{Response: &provider.Response{Content: "sure, happy to help"}},
		provider.ScriptedTurn{Response: &provider.Response{Content: "Promise added!"}},
	)

	router.HandleMessage(context.Background(), inboundMessage("add a promise to run every morning"))
	router.Wait()

	assert.Equal(t, "Promise added!", replier.lastMessage())
	require.Equal(t, 2, scripted.Calls())
	assert.Contains(t, scripted.Requests[1].SystemPrompt, "conversation")
}

func TestRouterRepliesOnTerminalFailure(t *testing.T) {
	// An exhausted script makes the provider fail: classification falls back
	// to the heuristic, and the run itself fails terminally.
	router, _, replier, _ := newTestRouter(t)

	router.HandleMessage(context.Background(), inboundMessage("hello"))
	router.Wait()

	assert.Equal(t, errorReply, replier.lastMessage())
}

func TestRouterUsesHistoryAsContext(t *testing.T) {
	router, st, _, _ := newTestRouter(t,
		routeTurn("operator"),
		provider.ScriptedTurn{Response: &provider.Response{Content: "ok"}},
	)
	require.NoError(t, st.AppendHistory(context.Background(), "123456", "user", "earlier message"))
	require.NoError(t, st.AppendHistory(context.Background(), "123456", "assistant", "earlier reply"))

	router.HandleMessage(context.Background(), inboundMessage("and now this"))
	router.Wait()

	messages := router.contextMessages(context.Background(), "123456", "next turn")
	require.GreaterOrEqual(t, len(messages), 3)
	assert.Equal(t, "earlier message", messages[0].Content)
}

func TestContextMessagesBoundedByTokens(t *testing.T) {
	router, st, _, _ := newTestRouter(t)

	// Each turn estimates well over a quarter of the budget, so only the
	// newest few survive.
	big := strings.Repeat("a", 8000)
	for i := 0; i < 8; i++ {
		require.NoError(t, st.AppendHistory(context.Background(), "123456", "user", big))
	}

	messages := router.contextMessages(context.Background(), "123456", "current question")
	require.NotEmpty(t, messages)
	assert.Equal(t, "current question", messages[len(messages)-1].Content)
	assert.Less(t, len(messages), 9)
	assert.LessOrEqual(t, estimateWindow(messages, "m1"), contextTokenBudget)
}

func TestTrimToTokenBudgetKeepsCurrentMessage(t *testing.T) {
	oversized := []provider.Message{
		{Role: "user", Content: strings.Repeat("b", 50000)},
	}
	trimmed := trimToTokenBudget(oversized, "m1", contextTokenBudget)
	require.Len(t, trimmed, 1)
	assert.Equal(t, oversized[0].Content, trimmed[0].Content)
}

func TestInjectReminderRunsPipeline(t *testing.T) {
	router, _, replier, _ := newTestRouter(t,
		routeTurn("engagement"),
		provider.ScriptedTurn{Response: &provider.Response{Content: "Don't forget your run!"}},
	)

	require.NoError(t, router.InjectReminder(context.Background(), "123456", "nightly reminder"))
	router.Wait()

	assert.Equal(t, "Don't forget your run!", replier.lastMessage())
}

func TestInjectReminderRejectsBadUserID(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	err := router.InjectReminder(context.Background(), "not-a-number", "text")
	require.Error(t, err)
}

func TestHandleCommandStatus(t *testing.T) {
	router, st, replier, _ := newTestRouter(t)

	require.NoError(t, st.CreatePromise(context.Background(), &store.Promise{
		ID: "p_1", UserID: "123456", Text: "run every morning",
	}))

	router.HandleCommand(context.Background(), telegram.Command{
		UserID: "123456", ChatID: 123456, Name: "status",
	})

	assert.Contains(t, replier.lastMessage(), "1 active promise")
	assert.Contains(t, replier.lastMessage(), "run every morning")
}

func TestHandleCommandUnknown(t *testing.T) {
	router, _, replier, _ := newTestRouter(t)

	router.HandleCommand(context.Background(), telegram.Command{
		UserID: "123456", ChatID: 123456, Name: "dance",
	})

	assert.Contains(t, replier.lastMessage(), "Unknown command: /dance")
}
