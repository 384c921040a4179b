package agentloop

import (
	"context"
	"errors"
	"strings"

	"github.com/zana-AI/zana-planner/internal/observability"
	"github.com/zana-AI/zana-planner/internal/tracing"
	"github.com/zana-AI/zana-planner/pkg/provider"
)

// routePrompt asks the model for the lightweight route payload. The reply is
// parsed with the same three-tier extraction as plans.
const routePrompt = `Classify the user's message before any planning happens.
Reply with only a JSON object: {"mode": "operator" or "engagement", "confidence": "low"|"medium"|"high", "reason": "..."}.
Use "operator" for transactional requests that map directly onto tools and "engagement" for conversation, advice, or encouragement.`

// routeMaxTokens caps the classification reply; the payload is tiny.
const routeMaxTokens = 200

// fallbackReason marks route decisions produced by the heuristic classifier
// instead of a parsed model payload.
const fallbackReason = "parsing_failed_fallback"

var transactionalPhrases = []string{
	"add a promise",
	"add a task",
	"new promise",
	"track my",
	"log my",
	"remind me",
	"delete my",
	"update my",
	"mark as done",
}

var advicePhrases = []string{
	"should i",
	"how do i",
	"how can i",
	"what do you think",
	"any advice",
	"help me decide",
}

var socialPhrases = []string{
	"everyone",
	"community",
	"other people",
	"my friends",
	"accountability buddy",
}

// FallbackRoute classifies raw text heuristically when route parsing fails.
// Transactional, advice-seeking, and social phrasing all resolve to
// engagement handling; anything else defaults to operator with low
// confidence. It never fails.
func FallbackRoute(text string) RouteDecision {
	lowered := strings.ToLower(text)

	for _, phrases := range [][]string{transactionalPhrases, advicePhrases, socialPhrases} {
		for _, phrase := range phrases {
			if strings.Contains(lowered, phrase) {
				return RouteDecision{
					Mode:       RouteModeEngagement,
					Confidence: "medium",
					Reason:     fallbackReason,
				}
			}
		}
	}

	return RouteDecision{
		Mode:       RouteModeOperator,
		Confidence: "low",
		Reason:     fallbackReason,
	}
}

// Classify asks the model how to route text before planning. It never fails:
// an unavailable model, a provider error, or an unparsable payload all fall
// back to the heuristic classifier.
func (e *Executor) Classify(ctx context.Context, text string) RouteDecision {
	logger := tracing.LoggerFromContext(ctx, e.logger)

	model := e.policy.PickFirstAvailable(e.provider.Name(), e.candidateModels())
	if model == "" {
		logger.Warn().Str("provider", e.provider.Name()).Msg("No model available for routing, using heuristic")
		return FallbackRoute(text)
	}

	resp, err := e.provider.Invoke(ctx, provider.Request{
		Model:        model,
		Messages:     []provider.Message{{Role: "user", Content: text}},
		MaxTokens:    routeMaxTokens,
		SystemPrompt: routePrompt,
	})
	if err != nil {
		var rle *provider.RateLimitedError
		if errors.As(err, &rle) {
			e.policy.MarkRateLimited(rle.Provider, rle.Model, rle.RetryAfter, rle.ResetHint)
		}
		logger.Warn().Err(err).Msg("Route classification call failed, using heuristic")
		return FallbackRoute(text)
	}
	if resp.RateLimit != nil {
		e.policy.UpdateFromResponseMetadata(e.provider.Name(), model, resp.RateLimit)
	}

	decision, parseErr := ParseRouteDecision(resp.Content, nil)
	if parseErr != nil {
		observability.RecordParseFailure("route")
		logger.Debug().Err(parseErr).Msg("Route payload unparsable, using heuristic")
		return FallbackRoute(text)
	}
	return *decision
}

// routeInstruction is appended to the system prompt for a routed run.
func routeInstruction(mode string) string {
	switch mode {
	case RouteModeEngagement:
		return "\nHandle this as conversation: lead with encouragement and keep tool use to what the user explicitly asked for."
	case RouteModeOperator:
		return "\nHandle this as a transactional request: do the work with tools and reply briefly."
	}
	return ""
}
