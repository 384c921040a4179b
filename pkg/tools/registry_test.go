package tools

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zana-AI/zana-planner/internal/store"
	"github.com/zana-AI/zana-planner/internal/tracing"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()

	st, err := store.Open(store.Config{
		Path:   filepath.Join(t.TempDir(), "test.db"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	registry, err := NewRegistry(st, zerolog.Nop())
	require.NoError(t, err)
	return registry, st
}

func userCtx() context.Context {
	return tracing.WithUserID(context.Background(), "100")
}

func TestRegistryExposesAllTools(t *testing.T) {
	registry, _ := newTestRegistry(t)

	for _, name := range []string{
		"add_promise", "list_promises", "update_promise", "delete_promise",
		"search_promises", "log_action", "get_settings", "update_settings",
	} {
		assert.Contains(t, registry.Guards(), name)
	}
	assert.Len(t, registry.Names(), 8)
}

func TestAddAndListPromise(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := userCtx()

	result, err := registry.Guards()["add_promise"].Invoke(ctx, map[string]interface{}{
		"text":           "meditate every morning",
		"hours_per_week": float64(2),
		"recurrence":     "daily",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	output := result.Output.(map[string]interface{})
	promiseID := output["promise_id"].(string)
	assert.NotEmpty(t, promiseID)

	result, err = registry.Guards()["list_promises"].Invoke(ctx, nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 1, result.Output.(map[string]interface{})["count"])
}

func TestUpdatePromise(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := userCtx()

	result, err := registry.Guards()["add_promise"].Invoke(ctx, map[string]interface{}{
		"text": "read nightly",
	})
	require.NoError(t, err)
	promiseID := result.Output.(map[string]interface{})["promise_id"].(string)

	result, err = registry.Guards()["update_promise"].Invoke(ctx, map[string]interface{}{
		"promise_id": promiseID,
		"text":       "read for 30 minutes nightly",
		"active":     false,
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	output := result.Output.(map[string]interface{})
	assert.Equal(t, "read for 30 minutes nightly", output["text"])
	assert.Equal(t, false, output["active"])
}

func TestUpdateUnknownPromiseFailsInsideResult(t *testing.T) {
	registry, _ := newTestRegistry(t)

	result, err := registry.Guards()["update_promise"].Invoke(userCtx(), map[string]interface{}{
		"promise_id": "p_missing",
		"text":       "whatever",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not found")
}

func TestDeletePromise(t *testing.T) {
	registry, st := newTestRegistry(t)
	ctx := userCtx()

	result, err := registry.Guards()["add_promise"].Invoke(ctx, map[string]interface{}{
		"text": "call grandma weekly",
	})
	require.NoError(t, err)
	promiseID := result.Output.(map[string]interface{})["promise_id"].(string)

	result, err = registry.Guards()["delete_promise"].Invoke(ctx, map[string]interface{}{
		"promise_id": promiseID,
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	_, err = st.GetPromise(context.Background(), "100", promiseID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSearchPromisesSingleMatchConvenience(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := userCtx()

	_, err := registry.Guards()["add_promise"].Invoke(ctx, map[string]interface{}{
		"text": "go to the gym twice a week",
	})
	require.NoError(t, err)

	result, err := registry.Guards()["search_promises"].Invoke(ctx, map[string]interface{}{
		"query": "gym",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	output := result.Output.(map[string]interface{})
	assert.Equal(t, 1, output["count"])
	assert.NotEmpty(t, output["promise_id"])
}

func TestLogAction(t *testing.T) {
	registry, st := newTestRegistry(t)
	ctx := userCtx()

	result, err := registry.Guards()["log_action"].Invoke(ctx, map[string]interface{}{
		"promise_id": "p_x",
		"hours":      float64(1.5),
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "time_spent", result.Output.(map[string]interface{})["kind"])

	actions, err := st.ListActions(context.Background(), "100", "p_x", time.Time{})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.InDelta(t, 1.5, actions[0].Hours, 0.001)
}

func TestSettingsRoundTrip(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := userCtx()

	result, err := registry.Guards()["get_settings"].Invoke(ctx, nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, store.DefaultReminderHour, result.Output.(map[string]interface{})["reminder_hour"])

	result, err = registry.Guards()["update_settings"].Invoke(ctx, map[string]interface{}{
		"reminder_hour": float64(7),
		"language":      "fr",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	result, err = registry.Guards()["get_settings"].Invoke(ctx, nil)
	require.NoError(t, err)
	output := result.Output.(map[string]interface{})
	assert.Equal(t, 7, output["reminder_hour"])
	assert.Equal(t, "fr", output["language"])
}

func TestUpdateSettingsRejectsBadTimezone(t *testing.T) {
	registry, _ := newTestRegistry(t)

	result, err := registry.Guards()["update_settings"].Invoke(userCtx(), map[string]interface{}{
		"timezone": "Mars/Olympus",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "timezone")
}

func TestAddPromiseRejectsBadEndDate(t *testing.T) {
	registry, _ := newTestRegistry(t)

	result, err := registry.Guards()["add_promise"].Invoke(userCtx(), map[string]interface{}{
		"text":     "short lived",
		"end_date": "next tuesday",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "end_date")
}
