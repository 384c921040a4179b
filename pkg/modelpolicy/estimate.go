package modelpolicy

import "strings"

// Message is the minimal conversation-turn shape the policy needs for token
// estimation.
type Message struct {
	Role    string
	Content string
}

// messageOverheadTokens covers role markers and separators per turn.
const messageOverheadTokens = 4

// charsPerToken returns the heuristic character-per-token ratio for a model
// family. The values only need to be stable and roughly right; selection and
// compaction decisions tolerate wide error.
func charsPerToken(modelID string) int {
	id := strings.ToLower(modelID)
	switch {
	case strings.Contains(id, "claude"):
		return 3
	case strings.Contains(id, "gpt"), strings.Contains(id, "o1"), strings.Contains(id, "o3"):
		return 4
	default:
		return 4
	}
}

// EstimateTokens returns a deterministic token estimate for text under the
// given model. The estimate is positive and monotonic non-decreasing in input
// length.
func EstimateTokens(text string, modelID string) int {
	per := charsPerToken(modelID)
	n := (len(text) + per - 1) / per
	if n < 1 {
		n = 1
	}
	return n
}

// EstimateMessagesTokens estimates tokens for a whole conversation, adding a
// fixed per-message overhead.
func EstimateMessagesTokens(messages []Message, modelID string) int {
	total := 0
	for _, msg := range messages {
		total += EstimateTokens(msg.Content, modelID) + messageOverheadTokens
	}
	if total < 1 {
		total = 1
	}
	return total
}
