// Package provider defines the narrow chat-model contract the agent loop
// depends on, plus adapters for the Anthropic and OpenAI APIs. Adapters
// surface rate-limit response metadata so the model policy can track quota,
// and return a typed RateLimitedError on 429 so callers can block the model
// and fall back.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/zana-AI/zana-planner/pkg/modelpolicy"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// Message is one conversation turn in provider-neutral shape.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolSpec is the declared surface of one tool bound to a model call.
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Request contains the parameters for one model invocation.
type Request struct {
	Model        string
	Messages     []Message
	Tools        []ToolSpec
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// TokenUsage tracks token consumption reported by the provider.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the provider-neutral model reply. RateLimit carries whatever
// x-ratelimit-* response headers the provider returned.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *TokenUsage
	RateLimit modelpolicy.ResponseMetadata
}

// LLMProvider is the chat-model contract consumed by the agent loop.
type LLMProvider interface {
	// Invoke makes one model call. It may block on network I/O and honors
	// context cancellation.
	Invoke(ctx context.Context, request Request) (*Response, error)

	// Name returns the provider name ("anthropic", "openai").
	Name() string
}

// RateLimitedError is the recognizable rate-limit condition adapters raise
// on HTTP 429.
type RateLimitedError struct {
	Provider   string
	Model      string
	RetryAfter time.Duration
	ResetHint  string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s model %s rate limited (retry after %s)", e.Provider, e.Model, e.RetryAfter)
}

// rateLimitHeaders is the set of response headers the policy understands.
var rateLimitHeaders = []string{
	"x-ratelimit-limit-requests",
	"x-ratelimit-limit-tokens",
	"x-ratelimit-remaining-requests",
	"x-ratelimit-remaining-tokens",
	"x-ratelimit-reset-requests",
	"x-ratelimit-reset-tokens",
}

// metadataFromHeaders extracts rate-limit headers into policy metadata.
// Absent headers are omitted so the policy never overwrites known state.
func metadataFromHeaders(h http.Header) modelpolicy.ResponseMetadata {
	if h == nil {
		return nil
	}
	md := modelpolicy.ResponseMetadata{}
	for _, name := range rateLimitHeaders {
		if v := h.Get(name); v != "" {
			md[name] = v
		}
	}
	if len(md) == 0 {
		return nil
	}
	return md
}

// retryAfterFromHeaders parses a Retry-After seconds value, zero when absent.
func retryAfterFromHeaders(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	raw := h.Get("retry-after")
	if raw == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// resetHintFromHeaders picks the request-window reset header when present.
func resetHintFromHeaders(h http.Header) string {
	if h == nil {
		return ""
	}
	if v := h.Get("x-ratelimit-reset-requests"); v != "" {
		return v
	}
	return h.Get("x-ratelimit-reset-tokens")
}
