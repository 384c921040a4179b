package toolguard

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zana-AI/zana-planner/internal/tracing"
)

func testSchema(handler Handler) Schema {
	return Schema{
		Name:        "log_action",
		Description: "Log a completed action against a promise",
		Parameters: []Parameter{
			{Name: "a", Type: "string", Required: true},
			{Name: "b", Type: "string", Required: true},
			{Name: "note", Type: "string", Required: false},
		},
		Handler: handler,
	}
}

func TestSanitizeUserID(t *testing.T) {
	got, err := SanitizeUserID("123")
	require.NoError(t, err)
	assert.Equal(t, "123", got)

	got, err = SanitizeUserID(456)
	require.NoError(t, err)
	assert.Equal(t, "456", got)

	_, err = SanitizeUserID("abc")
	assert.Error(t, err)

	_, err = SanitizeUserID("1../2")
	assert.Error(t, err)

	_, err = SanitizeUserID("")
	assert.Error(t, err)

	_, err = SanitizeUserID(1.5)
	assert.Error(t, err)
}

func TestInvoke_NoIdentity(t *testing.T) {
	g, err := New(testSchema(func(ctx context.Context, userID string, args map[string]interface{}) (interface{}, error) {
		t.Fatal("handler must not run without identity")
		return nil, nil
	}), zerolog.Nop())
	require.NoError(t, err)

	_, err = g.Invoke(context.Background(), map[string]interface{}{"a": "x", "b": "y"})
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestInvoke_InvalidIdentity(t *testing.T) {
	g, err := New(testSchema(func(ctx context.Context, userID string, args map[string]interface{}) (interface{}, error) {
		t.Fatal("handler must not run with invalid identity")
		return nil, nil
	}), zerolog.Nop())
	require.NoError(t, err)

	ctx := tracing.WithUserID(context.Background(), "1../2")
	_, err = g.Invoke(ctx, map[string]interface{}{"a": "x", "b": "y"})
	assert.Error(t, err)
}

func TestInvoke_MissingRequired(t *testing.T) {
	called := false
	g, err := New(testSchema(func(ctx context.Context, userID string, args map[string]interface{}) (interface{}, error) {
		called = true
		return nil, nil
	}), zerolog.Nop())
	require.NoError(t, err)

	ctx := tracing.WithUserID(context.Background(), "123")
	result, err := g.Invoke(ctx, map[string]interface{}{"a": "x"})
	require.NoError(t, err)

	assert.False(t, called)
	assert.False(t, result.Success)
	assert.Contains(t, result.Output, "Missing required arguments")
	assert.Contains(t, result.Output, "b")
}

func TestInvoke_UnknownArgsDropped(t *testing.T) {
	var seenArgs map[string]interface{}
	g, err := New(testSchema(func(ctx context.Context, userID string, args map[string]interface{}) (interface{}, error) {
		seenArgs = args
		return "ok", nil
	}), zerolog.Nop())
	require.NoError(t, err)

	ctx := tracing.WithUserID(context.Background(), "123")
	result, err := g.Invoke(ctx, map[string]interface{}{
		"a":           "x",
		"b":           "y",
		"hallucinate": "extra",
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "ok", result.Output)
	assert.NotContains(t, seenArgs, "hallucinate")
	assert.Equal(t, "x", seenArgs["a"])
}

func TestInvoke_ModelSuppliedIdentityDiscarded(t *testing.T) {
	var seenUserID string
	var seenArgs map[string]interface{}
	g, err := New(testSchema(func(ctx context.Context, userID string, args map[string]interface{}) (interface{}, error) {
		seenUserID = userID
		seenArgs = args
		return "ok", nil
	}), zerolog.Nop())
	require.NoError(t, err)

	ctx := tracing.WithUserID(context.Background(), "123")
	_, err = g.Invoke(ctx, map[string]interface{}{
		"a":       "x",
		"b":       "y",
		"user_id": "999",
	})
	require.NoError(t, err)

	assert.Equal(t, "123", seenUserID)
	assert.NotContains(t, seenArgs, "user_id")
}

func TestInvoke_HandlerError(t *testing.T) {
	g, err := New(testSchema(func(ctx context.Context, userID string, args map[string]interface{}) (interface{}, error) {
		return nil, errors.New("db locked")
	}), zerolog.Nop())
	require.NoError(t, err)

	ctx := tracing.WithUserID(context.Background(), "123")
	result, err := g.Invoke(ctx, map[string]interface{}{"a": "x", "b": "y"})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "db locked", result.Error)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Schema{Name: ""}, zerolog.Nop())
	assert.Error(t, err)

	_, err = New(Schema{Name: "x"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestInputSchema(t *testing.T) {
	s := testSchema(func(ctx context.Context, userID string, args map[string]interface{}) (interface{}, error) {
		return nil, nil
	})

	schema := s.InputSchema()
	assert.Equal(t, "object", schema["type"])
	assert.ElementsMatch(t, []string{"a", "b"}, schema["required"])

	properties := schema["properties"].(map[string]interface{})
	assert.Contains(t, properties, "note")
}
