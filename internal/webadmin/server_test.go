package webadmin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zana-AI/zana-planner/pkg/modelpolicy"
)

func newTestServer(t *testing.T) (*Server, *modelpolicy.Policy) {
	t.Helper()

	policy := modelpolicy.New(zerolog.Nop())
	server, err := NewServer(Config{
		Host:   "127.0.0.1",
		Port:   8090,
		Quota:  policy,
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return server, policy
}

func TestNewServerValidates(t *testing.T) {
	_, err := NewServer(Config{Port: 0, Quota: modelpolicy.New(zerolog.Nop())})
	require.Error(t, err)

	_, err = NewServer(Config{Port: 8090})
	require.Error(t, err)
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	server.started = time.Now()

	rec := httptest.NewRecorder()
	server.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestQuotaEndpoint(t *testing.T) {
	server, policy := newTestServer(t)
	policy.MarkRateLimited("anthropic", "claude-sonnet-4", time.Minute, "")
	policy.UpdateFromResponseMetadata("anthropic", "claude-opus-4", modelpolicy.ResponseMetadata{
		"x-ratelimit-remaining-requests": "41",
	})

	rec := httptest.NewRecorder()
	server.handleQuota(rec, httptest.NewRequest(http.MethodGet, "/api/quota", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Snapshots map[string]json.RawMessage `json:"snapshots"`
		Blocks    map[string]json.RawMessage `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Snapshots, "anthropic/claude-opus-4")
	assert.Contains(t, body.Blocks, "anthropic/claude-sonnet-4")
}
