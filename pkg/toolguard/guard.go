// Package toolguard wraps tool handlers so every invocation is scoped to the
// authenticated user carried on the context. Model-supplied identity is
// discarded, unknown arguments are dropped, and missing required arguments
// come back as a friendly tool result instead of an error.
package toolguard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/zana-AI/zana-planner/internal/observability"
	"github.com/zana-AI/zana-planner/internal/tracing"
)

// ErrNoIdentity is returned when no acting user id is present on the context.
var ErrNoIdentity = fmt.Errorf("no acting user identity on context")

// identityArg is the reserved argument name models sometimes hallucinate;
// whatever they send under it is thrown away.
const identityArg = "user_id"

// Result is the outcome of one guarded tool invocation.
type Result struct {
	ToolName string                 `json:"tool_name"`
	Args     map[string]interface{} `json:"args"`
	Success  bool                   `json:"success"`
	Output   interface{}            `json:"output,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// Guard scopes a single tool to the ambient user identity.
type Guard struct {
	schema Schema
	logger zerolog.Logger
}

// New wraps a tool schema in a guard.
func New(schema Schema, logger zerolog.Logger) (*Guard, error) {
	if schema.Name == "" {
		return nil, fmt.Errorf("tool schema requires a name")
	}
	if schema.Handler == nil {
		return nil, fmt.Errorf("tool %s has no handler", schema.Name)
	}

	observability.EnsureRegistered()

	return &Guard{
		schema: schema,
		logger: logger.With().Str("component", "toolguard").Str("tool", schema.Name).Logger(),
	}, nil
}

// Schema returns the wrapped tool schema.
func (g *Guard) Schema() Schema {
	return g.schema
}

// SanitizeUserID accepts only values that render as a string of ASCII digits.
// Anything else, including path-traversal-looking strings, is rejected so the
// identity can never be abused to build filesystem paths.
func SanitizeUserID(value interface{}) (string, error) {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case int:
		s = fmt.Sprintf("%d", v)
	case int64:
		s = fmt.Sprintf("%d", v)
	case float64:
		if v != float64(int64(v)) {
			return "", fmt.Errorf("invalid user id %v", value)
		}
		s = fmt.Sprintf("%d", int64(v))
	default:
		return "", fmt.Errorf("invalid user id type %T", value)
	}

	if s == "" {
		return "", fmt.Errorf("empty user id")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("invalid user id %q", s)
		}
	}
	return s, nil
}

// Invoke executes the wrapped tool on behalf of the context's user. The
// error return is reserved for identity failures; everything the agent loop
// can recover from (missing arguments, handler failures) comes back inside
// the Result.
func (g *Guard) Invoke(ctx context.Context, args map[string]interface{}) (Result, error) {
	rawID := tracing.GetUserID(ctx)
	if rawID == "" {
		return Result{}, ErrNoIdentity
	}
	userID, err := SanitizeUserID(rawID)
	if err != nil {
		return Result{}, fmt.Errorf("tool %s: %w", g.schema.Name, err)
	}

	filtered := g.filterArgs(args)

	if missing := g.missingRequired(filtered); len(missing) > 0 {
		g.logger.Debug().Strs("missing", missing).Msg("Tool call missing required arguments")
		return Result{
			ToolName: g.schema.Name,
			Args:     filtered,
			Success:  false,
			Output: fmt.Sprintf("Missing required arguments for %s: %s",
				g.schema.Name, strings.Join(missing, ", ")),
		}, nil
	}

	logger := tracing.LoggerFromContext(ctx, g.logger)
	start := time.Now()

	output, err := g.schema.Handler(ctx, userID, filtered)
	duration := time.Since(start)
	observability.RecordToolExecution(g.schema.Name, duration, err == nil)

	if err != nil {
		logger.Warn().Err(err).Dur("duration", duration).Msg("Tool execution failed")
		return Result{
			ToolName: g.schema.Name,
			Args:     filtered,
			Success:  false,
			Error:    err.Error(),
		}, nil
	}

	logger.Debug().Dur("duration", duration).Msg("Tool executed")
	return Result{
		ToolName: g.schema.Name,
		Args:     filtered,
		Success:  true,
		Output:   output,
	}, nil
}

// filterArgs keeps only declared parameters and always strips the identity
// argument, no matter what the model sent.
func (g *Guard) filterArgs(args map[string]interface{}) map[string]interface{} {
	filtered := make(map[string]interface{}, len(args))
	for name, value := range args {
		if name == identityArg {
			continue
		}
		if g.schema.HasParameter(name) {
			filtered[name] = value
		}
	}
	return filtered
}

func (g *Guard) missingRequired(args map[string]interface{}) []string {
	var missing []string
	for _, name := range g.schema.RequiredNames() {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
