package agentloop

import (
	"github.com/zana-AI/zana-planner/pkg/provider"
	"github.com/zana-AI/zana-planner/pkg/toolguard"
)

// State is the executor's position in the plan/act cycle.
type State string

const (
	StatePlanning State = "planning"
	StateActing   State = "acting"
	StateDone     State = "done"
)

// StepKind tags a plan step variant.
type StepKind string

const (
	// StepRespond is terminal and carries a response hint.
	StepRespond StepKind = "respond"
	// StepTool carries a tool name and argument mapping.
	StepTool StepKind = "tool"
)

// PlanStep is one step of a model-produced plan.
type PlanStep struct {
	Kind     StepKind               `json:"kind"`
	Response string                 `json:"response,omitempty"`
	Tool     string                 `json:"tool,omitempty"`
	Args     map[string]interface{} `json:"args,omitempty"`
}

// Plan is the model's structured description of what to do next: an ordered,
// non-empty sequence of steps plus optional intent metadata.
type Plan struct {
	Steps                []PlanStep `json:"steps"`
	DetectedIntent       string     `json:"detected_intent,omitempty"`
	IntentConfidence     float64    `json:"intent_confidence,omitempty"`
	RequiresConfirmation bool       `json:"requires_confirmation,omitempty"`
}

// RouteDecision classifies how a message should be handled before planning.
type RouteDecision struct {
	Mode       string `json:"mode"`       // "operator" or "engagement"
	Confidence string `json:"confidence"` // "low", "medium", "high"
	Reason     string `json:"reason"`
}

const (
	RouteModeOperator   = "operator"
	RouteModeEngagement = "engagement"
)

// RunParams is the input for one agent run.
type RunParams struct {
	Messages []provider.Message

	// Route carries the pre-planning classification. A nil route runs with
	// the unmodified system prompt.
	Route *RouteDecision

	// PendingClarification marks that the previous run asked the user a
	// clarifying question; the mutation contract then never rewrites the
	// response.
	PendingClarification bool
}

// RunResult is the final agent state handed to the response-formatting
// layer: the full message history, the audit trail of executed tool calls,
// and the user-visible reply.
type RunResult struct {
	Messages        []provider.Message `json:"messages"`
	ExecutedActions []toolguard.Result `json:"executed_actions"`
	Response        string             `json:"response"`
	Iteration       int                `json:"iteration"`
	DetectedIntent  string             `json:"detected_intent,omitempty"`
}
