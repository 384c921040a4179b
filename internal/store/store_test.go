package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(Config{
		Path:   filepath.Join(t.TempDir(), "test.db"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{Logger: zerolog.Nop()})
	require.Error(t, err)
}

func TestPromiseCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &Promise{
		ID:           "p_1",
		UserID:       "100",
		Text:         "run 30 minutes every morning",
		HoursPerWeek: 3.5,
		Recurrence:   "daily",
	}
	require.NoError(t, s.CreatePromise(ctx, p))
	assert.True(t, p.Active)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := s.GetPromise(ctx, "100", "p_1")
	require.NoError(t, err)
	assert.Equal(t, "run 30 minutes every morning", got.Text)
	assert.InDelta(t, 3.5, got.HoursPerWeek, 0.001)
	assert.True(t, got.Active)

	got.Text = "run 45 minutes every morning"
	got.Active = false
	require.NoError(t, s.UpdatePromise(ctx, got))

	updated, err := s.GetPromise(ctx, "100", "p_1")
	require.NoError(t, err)
	assert.Equal(t, "run 45 minutes every morning", updated.Text)
	assert.False(t, updated.Active)

	require.NoError(t, s.DeletePromise(ctx, "100", "p_1"))
	_, err = s.GetPromise(ctx, "100", "p_1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPromiseScopedToUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePromise(ctx, &Promise{ID: "p_1", UserID: "100", Text: "read"}))

	_, err := s.GetPromise(ctx, "200", "p_1")
	require.ErrorIs(t, err, ErrNotFound)

	err = s.DeletePromise(ctx, "200", "p_1")
	require.ErrorIs(t, err, ErrNotFound)

	promises, err := s.ListPromises(ctx, "200", false)
	require.NoError(t, err)
	assert.Empty(t, promises)
}

func TestListPromisesActiveOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePromise(ctx, &Promise{ID: "p_1", UserID: "100", Text: "read"}))
	require.NoError(t, s.CreatePromise(ctx, &Promise{ID: "p_2", UserID: "100", Text: "run"}))

	done, err := s.GetPromise(ctx, "100", "p_1")
	require.NoError(t, err)
	done.Active = false
	require.NoError(t, s.UpdatePromise(ctx, done))

	active, err := s.ListPromises(ctx, "100", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "p_2", active[0].ID)

	all, err := s.ListPromises(ctx, "100", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSearchPromises(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePromise(ctx, &Promise{ID: "p_1", UserID: "100", Text: "go to the GYM twice a week"}))
	require.NoError(t, s.CreatePromise(ctx, &Promise{ID: "p_2", UserID: "100", Text: "read every night"}))

	results, err := s.SearchPromises(ctx, "100", "gym", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p_1", results[0].ID)

	// LIKE wildcards in user input are literal, not patterns.
	results, err = s.SearchPromises(ctx, "100", "%", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDuePromises(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.CreatePromise(ctx, &Promise{ID: "p_open", UserID: "100", Text: "open ended"}))
	require.NoError(t, s.CreatePromise(ctx, &Promise{
		ID: "p_expired", UserID: "100", Text: "expired",
		EndDate: now.Add(-24 * time.Hour),
	}))
	require.NoError(t, s.CreatePromise(ctx, &Promise{
		ID: "p_running", UserID: "200", Text: "still running",
		EndDate: now.Add(24 * time.Hour),
	}))

	due, err := s.DuePromises(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)

	ids := []string{due[0].ID, due[1].ID}
	assert.Contains(t, ids, "p_open")
	assert.Contains(t, ids, "p_running")
}

func TestActionsAndHours(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.LogAction(ctx, &Action{
		ID: "a_1", UserID: "100", PromiseID: "p_1", Kind: "time_spent", Hours: 1.5,
		LoggedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, s.LogAction(ctx, &Action{
		ID: "a_2", UserID: "100", PromiseID: "p_1", Kind: "time_spent", Hours: 2,
		LoggedAt: now,
	}))
	require.NoError(t, s.LogAction(ctx, &Action{
		ID: "a_old", UserID: "100", PromiseID: "p_1", Kind: "time_spent", Hours: 10,
		LoggedAt: now.Add(-10 * 24 * time.Hour),
	}))

	actions, err := s.ListActions(ctx, "100", "p_1", now.Add(-2*time.Hour))
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "a_2", actions[0].ID)

	total, err := s.HoursSince(ctx, "100", "p_1", now.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 3.5, total, 0.001)
}

func TestSettingsDefaultsAndUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	settings, err := s.GetSettings(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, DefaultReminderHour, settings.ReminderHour)
	assert.Equal(t, DefaultTimezone, settings.Timezone)
	assert.Equal(t, DefaultLanguage, settings.Language)

	settings.ReminderHour = 8
	settings.Timezone = "Europe/Paris"
	settings.Language = "fr"
	require.NoError(t, s.UpsertSettings(ctx, settings))

	got, err := s.GetSettings(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 8, got.ReminderHour)
	assert.Equal(t, "Europe/Paris", got.Timezone)
	assert.Equal(t, "fr", got.Language)
}

func TestUpsertSettingsValidatesHour(t *testing.T) {
	s := newTestStore(t)

	err := s.UpsertSettings(context.Background(), &Settings{UserID: "100", ReminderHour: 24})
	require.Error(t, err)
}

func TestHistoryRoundTripAndPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, turn := range []struct{ role, content string }{
		{"user", "add a promise"},
		{"assistant", "Which habit?"},
		{"user", "running"},
	} {
		require.NoError(t, s.AppendHistory(ctx, "100", turn.role, turn.content))
	}

	messages, err := s.RecentHistory(ctx, "100", 10)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "add a promise", messages[0].Content)
	assert.Equal(t, "running", messages[2].Content)

	messages, err = s.RecentHistory(ctx, "100", 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "Which habit?", messages[0].Content)

	require.NoError(t, s.PruneHistory(ctx, "100", 1))
	messages, err = s.RecentHistory(ctx, "100", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "running", messages[0].Content)
}
