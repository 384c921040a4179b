package provider

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedTurn configures one model turn in a scripted sequence.
type ScriptedTurn struct {
	Response *Response
	Err      error
}

// ScriptedProvider is a deterministic provider for tests: it plays back a
// fixed sequence of turns and records every request it received.
type ScriptedProvider struct {
	mu       sync.Mutex
	name     string
	index    int
	turns    []ScriptedTurn
	Requests []Request
}

// NewScriptedProvider creates a scripted provider named "scripted".
func NewScriptedProvider(turns ...ScriptedTurn) *ScriptedProvider {
	cloned := make([]ScriptedTurn, len(turns))
	copy(cloned, turns)
	return &ScriptedProvider{name: "scripted", turns: cloned}
}

var _ LLMProvider = (*ScriptedProvider)(nil)

// Name returns the provider name.
func (p *ScriptedProvider) Name() string {
	return p.name
}

// Invoke plays back the next scripted turn.
func (p *ScriptedProvider) Invoke(_ context.Context, request Request) (*Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Requests = append(p.Requests, request)

	if p.index >= len(p.turns) {
		return nil, fmt.Errorf("script exhausted at turn %d", p.index+1)
	}
	current := p.turns[p.index]
	p.index++

	if current.Err != nil {
		return nil, current.Err
	}
	return current.Response, nil
}

// Calls returns how many invocations the provider has served.
func (p *ScriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}
