package agentloop

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseError is the structured failure returned when model output cannot be
// parsed into the expected payload. It never wraps a raw decoder error into
// user-visible text.
type ParseError struct {
	Payload string // "plan" or "route"
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse %s payload: %s", e.Payload, e.Reason)
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// reasonNoPayload distinguishes "the model answered in prose" from a payload
// that looked like JSON but failed to parse; only the latter counts as a
// parse failure.
const reasonNoPayload = "no JSON payload found"

// extractJSON applies the fixed three-tier extraction order: the raw text as
// JSON, then a fenced code block, then a scan of content blocks where exactly
// one block's text is valid JSON. Each tier is total: it either yields a
// candidate or definitively does not match.
func extractJSON(content string, blocks []string) (string, bool) {
	// Tier 1: the whole payload is JSON.
	trimmed := strings.TrimSpace(content)
	if isJSONObject(trimmed) {
		return trimmed, true
	}

	// Tier 2: JSON fenced in a code block.
	if m := fencedJSONPattern.FindStringSubmatch(content); m != nil {
		candidate := strings.TrimSpace(m[1])
		if isJSONObject(candidate) {
			return candidate, true
		}
	}

	// Tier 3: exactly one content block holds JSON.
	var found string
	matches := 0
	for _, block := range blocks {
		candidate := strings.TrimSpace(block)
		if isJSONObject(candidate) {
			found = candidate
			matches++
		}
	}
	if matches == 1 {
		return found, true
	}

	return "", false
}

func isJSONObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var obj map[string]interface{}
	return json.Unmarshal([]byte(s), &obj) == nil
}

// rawPlan mirrors the loose JSON shape models produce for plans.
type rawPlan struct {
	Steps []struct {
		Kind     string                 `json:"kind"`
		Type     string                 `json:"type"` // some models emit "type" instead of "kind"
		Response string                 `json:"response"`
		Tool     string                 `json:"tool"`
		ToolName string                 `json:"tool_name"`
		Args     map[string]interface{} `json:"args"`
	} `json:"steps"`
	DetectedIntent       string  `json:"detected_intent"`
	IntentConfidence     float64 `json:"intent_confidence"`
	RequiresConfirmation bool    `json:"requires_confirmation"`
}

// ParsePlan parses model output into a Plan using the three-tier extraction
// order. A nil error guarantees a non-empty, well-formed step list.
func ParsePlan(content string, blocks []string) (*Plan, error) {
	payload, ok := extractJSON(content, blocks)
	if !ok {
		return nil, &ParseError{Payload: "plan", Reason: reasonNoPayload}
	}

	var raw rawPlan
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, &ParseError{Payload: "plan", Reason: "payload is not a plan object"}
	}
	if len(raw.Steps) == 0 {
		return nil, &ParseError{Payload: "plan", Reason: "plan has no steps"}
	}

	plan := &Plan{
		DetectedIntent:       raw.DetectedIntent,
		IntentConfidence:     raw.IntentConfidence,
		RequiresConfirmation: raw.RequiresConfirmation,
	}

	for i, step := range raw.Steps {
		kind := step.Kind
		if kind == "" {
			kind = step.Type
		}
		tool := step.Tool
		if tool == "" {
			tool = step.ToolName
		}

		switch StepKind(kind) {
		case StepRespond:
			plan.Steps = append(plan.Steps, PlanStep{Kind: StepRespond, Response: step.Response})
		case StepTool:
			if tool == "" {
				return nil, &ParseError{Payload: "plan", Reason: fmt.Sprintf("step %d has no tool name", i+1)}
			}
			plan.Steps = append(plan.Steps, PlanStep{Kind: StepTool, Tool: tool, Args: step.Args})
		default:
			return nil, &ParseError{Payload: "plan", Reason: fmt.Sprintf("step %d has unknown kind %q", i+1, kind)}
		}
	}

	return plan, nil
}

// ParseRouteDecision parses the lighter route payload with the same
// three-tier extraction order.
func ParseRouteDecision(content string, blocks []string) (*RouteDecision, error) {
	payload, ok := extractJSON(content, blocks)
	if !ok {
		return nil, &ParseError{Payload: "route", Reason: reasonNoPayload}
	}

	var decision RouteDecision
	if err := json.Unmarshal([]byte(payload), &decision); err != nil {
		return nil, &ParseError{Payload: "route", Reason: "payload is not a route decision"}
	}

	switch decision.Mode {
	case RouteModeOperator, RouteModeEngagement:
	default:
		return nil, &ParseError{Payload: "route", Reason: fmt.Sprintf("unknown mode %q", decision.Mode)}
	}

	return &decision, nil
}
