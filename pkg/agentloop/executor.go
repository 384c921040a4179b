// Package agentloop runs the bounded plan-execute cycle that turns a
// conversation into zero or more guarded tool invocations and a final reply.
// Model choice goes through the model policy on every round; every tool call
// goes through its invocation guard.
package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/zana-AI/zana-planner/internal/observability"
	"github.com/zana-AI/zana-planner/internal/tracing"
	"github.com/zana-AI/zana-planner/pkg/modelpolicy"
	"github.com/zana-AI/zana-planner/pkg/provider"
	"github.com/zana-AI/zana-planner/pkg/toolguard"
)

// ErrAllModelsBlocked is the terminal failure when every candidate model for
// the provider is rate limited. Callers surface it; the loop never retries
// past it.
var ErrAllModelsBlocked = errors.New("all candidate models are rate limited")

// DefaultMaxIterations bounds the plan/act cycle when config leaves it unset.
const DefaultMaxIterations = 6

// Config tunes one executor instance.
type Config struct {
	// Models is the ordered candidate list, primary model first.
	Models []string
	// MaxIterations caps model invocations per run.
	MaxIterations int
	Temperature   float64
	MaxTokens     int
	SystemPrompt  string
	// StrictMutation toggles the mutation-execution contract.
	StrictMutation bool
}

// Executor is the bounded state machine over {messages, iteration}. One
// Executor serves many concurrent runs; per-run state lives on the stack.
type Executor struct {
	provider provider.LLMProvider
	policy   *modelpolicy.Policy
	guards   map[string]*toolguard.Guard
	cfg      Config
	sink     ProgressSink
	logger   zerolog.Logger

	modelsMu sync.RWMutex
	models   []string

	toolSpecs []provider.ToolSpec
	mutating  map[string]bool
}

// New creates an executor. A nil sink disables progress reporting.
func New(
	p provider.LLMProvider,
	policy *modelpolicy.Policy,
	guards map[string]*toolguard.Guard,
	cfg Config,
	sink ProgressSink,
	logger zerolog.Logger,
) (*Executor, error) {
	if p == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if policy == nil {
		return nil, fmt.Errorf("model policy is required")
	}
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("at least one candidate model is required")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if sink == nil {
		sink = nopSink{}
	}

	observability.EnsureRegistered()

	e := &Executor{
		provider: p,
		policy:   policy,
		guards:   guards,
		cfg:      cfg,
		sink:     sink,
		logger:   logger.With().Str("component", "agentloop").Logger(),
		models:   append([]string(nil), cfg.Models...),
		mutating: make(map[string]bool),
	}

	names := make([]string, 0, len(guards))
	for name := range guards {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		schema := guards[name].Schema()
		e.toolSpecs = append(e.toolSpecs, provider.ToolSpec{
			Name:        schema.Name,
			Description: schema.Description,
			InputSchema: schema.InputSchema(),
		})
		if schema.Mutating {
			e.mutating[schema.Name] = true
		}
	}

	return e, nil
}

// SetModels swaps the candidate model list; in-flight runs pick it up on
// their next round. Used by config hot reload.
func (e *Executor) SetModels(models []string) {
	if len(models) == 0 {
		return
	}
	e.modelsMu.Lock()
	e.models = append([]string(nil), models...)
	e.modelsMu.Unlock()
}

func (e *Executor) candidateModels() []string {
	e.modelsMu.RLock()
	defer e.modelsMu.RUnlock()
	return e.models
}

// PrimaryModel returns the current first-choice model. Callers use it to
// size context windows before a run.
func (e *Executor) PrimaryModel() string {
	return e.candidateModels()[0]
}

// Run executes one bounded plan/act cycle. It returns the final state for
// the response-formatting layer; only identity failures, provider failures
// other than rate limits, and full model exhaustion are terminal errors.
func (e *Executor) Run(ctx context.Context, params RunParams) (*RunResult, error) {
	if tracing.GetRunID(ctx) == "" {
		ctx = tracing.WithRunID(ctx, tracing.NewRunID())
	}
	logger := tracing.LoggerFromContext(ctx, e.logger)
	start := time.Now()

	result, err := e.run(ctx, logger, params)

	observability.RecordAgentRun(e.provider.Name(), time.Since(start), err == nil)
	if result != nil {
		observability.RecordAgentIterations(result.Iteration)
	}
	return result, err
}

func (e *Executor) run(ctx context.Context, logger zerolog.Logger, params RunParams) (*RunResult, error) {
	messages := make([]provider.Message, len(params.Messages))
	copy(messages, params.Messages)

	var executed []toolguard.Result
	var response string
	var detectedIntent string
	var lastContent string
	iteration := 0
	state := StatePlanning

	systemPrompt := e.cfg.SystemPrompt
	if params.Route != nil {
		systemPrompt += routeInstruction(params.Route.Mode)
	}

	for state != StateDone && iteration < e.cfg.MaxIterations {
		e.sink.AgentStep(ctx, iteration+1)
		iteration++

		model := e.policy.PickFirstAvailable(e.provider.Name(), e.candidateModels())
		if model == "" {
			logger.Error().Str("provider", e.provider.Name()).Msg("All candidate models blocked")
			return nil, ErrAllModelsBlocked
		}

		resp, err := e.provider.Invoke(ctx, provider.Request{
			Model:        model,
			Messages:     messages,
			Tools:        e.toolSpecs,
			Temperature:  e.cfg.Temperature,
			MaxTokens:    e.cfg.MaxTokens,
			SystemPrompt: systemPrompt,
		})
		if err != nil {
			var rle *provider.RateLimitedError
			if errors.As(err, &rle) {
				e.policy.MarkRateLimited(rle.Provider, rle.Model, rle.RetryAfter, rle.ResetHint)
				logger.Warn().Str("model", model).Msg("Model rate limited, trying fallback")
				continue
			}
			return nil, fmt.Errorf("model invocation failed: %w", err)
		}

		if resp.RateLimit != nil {
			e.policy.UpdateFromResponseMetadata(e.provider.Name(), model, resp.RateLimit)
		}

		lastContent = resp.Content
		toolCalls := resp.ToolCalls
		respondHint := ""
		hasRespond := false

		if len(toolCalls) == 0 {
			plan, planErr := ParsePlan(resp.Content, nil)
			if planErr != nil {
				var pe *ParseError
				if errors.As(planErr, &pe) && pe.Reason != reasonNoPayload {
					// The model emitted JSON that is not a valid plan.
					observability.RecordParseFailure("plan")
				}
				// Plain text reply: the model answered directly.
				messages = append(messages, provider.Message{Role: "assistant", Content: resp.Content})
				response = resp.Content
				state = StateDone
				break
			}

			if plan.DetectedIntent != "" {
				detectedIntent = plan.DetectedIntent
			}
			for _, step := range plan.Steps {
				switch step.Kind {
				case StepTool:
					id, idErr := gonanoid.New()
					if idErr != nil {
						return nil, fmt.Errorf("failed to generate call id: %w", idErr)
					}
					toolCalls = append(toolCalls, provider.ToolCall{
						ID:   id,
						Name: step.Tool,
						Args: step.Args,
					})
				case StepRespond:
					respondHint = step.Response
					hasRespond = true
				}
			}
		}

		messages = append(messages, provider.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: toolCalls,
		})

		if len(toolCalls) == 0 {
			response = respondHint
			if response == "" {
				response = resp.Content
			}
			state = StateDone
			break
		}

		// The iteration cap is checked before tool execution: tool calls in
		// a capped final response are never executed.
		if iteration >= e.cfg.MaxIterations && !hasRespond {
			logger.Warn().Int("iteration", iteration).Msg("Iteration cap reached with pending tool calls")
			break
		}
		if iteration >= e.cfg.MaxIterations && hasRespond {
			response = respondHint
			break
		}

		state = StateActing
		for _, call := range toolCalls {
			e.sink.ToolStep(ctx, call.Name)

			result, callErr := e.executeToolCall(ctx, call, executed)
			if callErr != nil {
				return nil, callErr
			}
			executed = append(executed, result)
			messages = append(messages, provider.Message{
				Role:       "tool",
				Content:    renderResult(result),
				ToolCallID: call.ID,
			})
		}

		if hasRespond {
			response = respondHint
			state = StateDone
			break
		}
		state = StatePlanning
	}

	if response == "" {
		if lastContent != "" && state == StateDone {
			response = lastContent
		} else {
			response = "I wasn't able to finish working on that. Could you try again?"
		}
	}

	response = EnforceMutationContract(
		response,
		detectedIntent,
		executed,
		e.mutating,
		params.PendingClarification,
		e.cfg.StrictMutation,
	)

	logger.Debug().
		Int("iterations", iteration).
		Int("executed_actions", len(executed)).
		Msg("Agent run finished")

	return &RunResult{
		Messages:        messages,
		ExecutedActions: executed,
		Response:        response,
		Iteration:       iteration,
		DetectedIntent:  detectedIntent,
	}, nil
}

// executeToolCall resolves placeholders and runs one call through its guard.
// Unknown tools become a failed result fed back to the next planning round.
func (e *Executor) executeToolCall(ctx context.Context, call provider.ToolCall, executed []toolguard.Result) (toolguard.Result, error) {
	guard, ok := e.guards[call.Name]
	if !ok {
		return toolguard.Result{
			ToolName: call.Name,
			Args:     call.Args,
			Success:  false,
			Error:    fmt.Sprintf("unknown tool: %s", call.Name),
		}, nil
	}

	args := ResolveArgs(call.Args, executed)
	return guard.Invoke(ctx, args)
}

// renderResult flattens a tool result into tool-message content.
func renderResult(result toolguard.Result) string {
	if result.Error != "" {
		return result.Error
	}
	if result.Output == nil {
		return "ok"
	}
	if s, ok := result.Output.(string); ok {
		return s
	}
	if encoded, err := json.Marshal(result.Output); err == nil {
		return string(encoded)
	}
	return fmt.Sprintf("%v", result.Output)
}
