package agentloop

import "context"

// ProgressSink receives lifecycle events during an agent run. Implementations
// must be cheap; the executor calls them synchronously.
type ProgressSink interface {
	// AgentStep fires before each model invocation.
	AgentStep(ctx context.Context, iteration int)
	// ToolStep fires before each tool execution.
	ToolStep(ctx context.Context, toolName string)
}

// nopSink is used when no sink is injected; progress reporting is then a
// no-op, never an error.
type nopSink struct{}

func (nopSink) AgentStep(context.Context, int) {}
func (nopSink) ToolStep(context.Context, string) {}
