package agentloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zana-AI/zana-planner/pkg/toolguard"
)

func TestIsFromSearchPlaceholder(t *testing.T) {
	assert.True(t, IsFromSearchPlaceholder("from_search"))
	assert.True(t, IsFromSearchPlaceholder("FROM SEARCH"))
	assert.True(t, IsFromSearchPlaceholder("  from_search result"))
	assert.False(t, IsFromSearchPlaceholder("research from last week"))
	assert.False(t, IsFromSearchPlaceholder("searching"))
}

func TestParseFromToolPlaceholder(t *testing.T) {
	tool, field, ok := ParseFromToolPlaceholder("from tool : search_promises : promise_id")
	require.True(t, ok)
	assert.Equal(t, "search_promises", tool)
	assert.Equal(t, "promise_id", field)

	tool, field, ok = ParseFromToolPlaceholder("FROM_TOOL:List_Promises:ID")
	require.True(t, ok)
	assert.Equal(t, "list_promises", tool)
	assert.Equal(t, "id", field)

	_, _, ok = ParseFromToolPlaceholder("just a normal value")
	assert.False(t, ok)
}

func TestResolveArgsFromSearch(t *testing.T) {
	executed := []toolguard.Result{
		{ToolName: "search_promises", Success: true, Output: "promise #42"},
	}

	resolved := ResolveArgs(map[string]interface{}{
		"promise": "from_search",
		"note":    "keep as is",
	}, executed)

	assert.Equal(t, "promise #42", resolved["promise"])
	assert.Equal(t, "keep as is", resolved["note"])
}

func TestResolveArgsPrefersLatestSearch(t *testing.T) {
	executed := []toolguard.Result{
		{ToolName: "search_promises", Success: true, Output: "old"},
		{ToolName: "search_promises", Success: true, Output: "new"},
	}

	resolved := ResolveArgs(map[string]interface{}{"promise": "from_search"}, executed)
	assert.Equal(t, "new", resolved["promise"])
}

func TestResolveArgsSkipsFailedSearch(t *testing.T) {
	executed := []toolguard.Result{
		{ToolName: "search_promises", Success: true, Output: "good"},
		{ToolName: "search_promises", Success: false, Error: "timeout"},
	}

	resolved := ResolveArgs(map[string]interface{}{"promise": "from_search"}, executed)
	assert.Equal(t, "good", resolved["promise"])
}

func TestResolveArgsFromToolField(t *testing.T) {
	executed := []toolguard.Result{
		{
			ToolName: "add_promise",
			Success:  true,
			Output:   map[string]interface{}{"Promise_ID": "p_123", "text": "run daily"},
		},
	}

	resolved := ResolveArgs(map[string]interface{}{
		"promise_id": "from tool : add_promise : promise_id",
	}, executed)

	assert.Equal(t, "p_123", resolved["promise_id"])
}

func TestResolveArgsUnresolvableKeepsLiteral(t *testing.T) {
	resolved := ResolveArgs(map[string]interface{}{
		"promise": "from_search",
		"id":      "from tool : add_promise : id",
	}, nil)

	assert.Equal(t, "from_search", resolved["promise"])
	assert.Equal(t, "from tool : add_promise : id", resolved["id"])
}

func TestResolveArgsNonStringValuesUntouched(t *testing.T) {
	resolved := ResolveArgs(map[string]interface{}{
		"count":   float64(3),
		"enabled": true,
	}, nil)

	assert.Equal(t, float64(3), resolved["count"])
	assert.Equal(t, true, resolved["enabled"])
}
