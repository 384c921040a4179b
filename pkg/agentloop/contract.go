package agentloop

import (
	"strings"

	"github.com/zana-AI/zana-planner/pkg/toolguard"
)

// Messages used when the mutation-execution contract rewrites a reply. A
// response may claim a state change only when a matching tool call actually
// succeeded this run.
const (
	msgNoChangeConfirmed = "I couldn't confirm any change was made. Nothing has been saved yet — could you try that again?"
	msgActionFailed      = "The action did not complete successfully, so nothing was changed. Please try again in a moment."
)

var mutationIntentMarkers = []string{"create", "add", "update", "edit", "delete", "remove", "log", "complete", "set"}

// intentImpliesMutation reports whether a detected intent names a state
// change.
func intentImpliesMutation(intent string) bool {
	lowered := strings.ToLower(intent)
	for _, marker := range mutationIntentMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// EnforceMutationContract applies the mutation-execution contract to a final
// response. mutatingTools is the set of tool names that change persisted
// state. When strict mode is off the original response is always kept; a
// pending clarification likewise always preserves the original text.
func EnforceMutationContract(
	response string,
	detectedIntent string,
	executed []toolguard.Result,
	mutatingTools map[string]bool,
	pendingClarification bool,
	strict bool,
) string {
	if !strict || pendingClarification {
		return response
	}
	if !intentImpliesMutation(detectedIntent) {
		return response
	}

	attempted := 0
	for _, result := range executed {
		if !mutatingTools[result.ToolName] {
			continue
		}
		attempted++
		if result.Success {
			return response
		}
	}

	if attempted == 0 {
		return msgNoChangeConfirmed
	}
	return msgActionFailed
}
