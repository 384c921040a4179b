// Package coordinator serializes inbound message processing per key and
// batches messages that arrive while a run is in flight or during a debounce
// window. Keys look like "<platform>:<user_id>"; at most one runner is active
// per key at any time.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zana-AI/zana-planner/internal/observability"
)

// DropPolicy is the rule applied when a key's pending queue exceeds capacity.
type DropPolicy string

const (
	// DropSummarize keeps the most recently enqueued messages up to cap and
	// surfaces a "N messages dropped" summary in the next batch.
	DropSummarize DropPolicy = "summarize"
	// DropOldest keeps the most recent messages up to cap and drops the
	// oldest silently.
	DropOldest DropPolicy = "drop-oldest"
)

// Config holds coordinator tuning.
type Config struct {
	// Cap bounds the per-key pending queue. Zero means a default of 20.
	Cap int
	// Policy is applied when the queue would exceed Cap.
	Policy DropPolicy
	// Debounce is how long the first message of an idle key waits before
	// becoming a batch, so closely spaced messages coalesce into one run.
	// Zero disables first-message coalescing.
	Debounce time.Duration
}

type keyState struct {
	active  bool
	pending []Message
	dropped int
	// resetCh wakes the debounce wait when another message lands during the
	// window. Nil outside the window.
	resetCh chan struct{}
}

// Coordinator owns the key-state map for the lifetime of the process. It
// holds no durable state; restarting with empty maps is safe.
type Coordinator struct {
	mu     sync.Mutex
	keys   map[string]*keyState
	cfg    Config
	logger zerolog.Logger
	active int
}

// New creates a coordinator.
func New(cfg Config, logger zerolog.Logger) *Coordinator {
	observability.EnsureRegistered()

	if cfg.Cap <= 0 {
		cfg.Cap = 20
	}
	if cfg.Policy == "" {
		cfg.Policy = DropSummarize
	}

	return &Coordinator{
		keys:   make(map[string]*keyState),
		cfg:    cfg,
		logger: logger.With().Str("component", "coordinator").Logger(),
	}
}

// BeginOrEnqueue gates one inbound message. When no runner is active for the
// key it marks one active, waits out the debounce window (restarted by any
// further arrivals), and returns the first batch with started=true; the
// caller must process it and call DrainOrFinish when done. When a runner is
// already active the message joins that key's pending queue and the call
// returns started=false immediately.
//
// An empty key is a caller programming error and panics.
func (c *Coordinator) BeginOrEnqueue(ctx context.Context, key string, msg Message) (*Batch, bool) {
	if key == "" {
		panic("coordinator: empty key")
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}

	c.mu.Lock()
	state := c.keys[key]
	if state == nil {
		state = &keyState{}
		c.keys[key] = state
	}

	if state.active {
		c.enqueueLocked(key, state, msg)
		depth := len(state.pending)
		if state.resetCh != nil {
			select {
			case state.resetCh <- struct{}{}:
			default:
			}
		}
		c.mu.Unlock()

		observability.RecordEnqueue("queued")
		observability.SetPendingDepth(key, depth)
		c.logger.Debug().Str("key", key).Int("pending", depth).Msg("Message enqueued behind active runner")
		return nil, false
	}

	state.active = true
	c.active++
	activeNow := c.active

	var resetCh chan struct{}
	if c.cfg.Debounce > 0 {
		resetCh = make(chan struct{}, 1)
		state.resetCh = resetCh
	}
	c.mu.Unlock()

	observability.RecordEnqueue("started")
	observability.SetActiveRunners(activeNow)

	if resetCh != nil {
		c.waitDebounce(ctx, resetCh)
	}

	c.mu.Lock()
	state.resetCh = nil
	messages := append([]Message{msg}, state.pending...)
	dropped := state.dropped
	state.pending = nil
	state.dropped = 0
	c.mu.Unlock()

	batch := &Batch{Key: key, Messages: messages, Summary: dropSummary(dropped)}

	observability.SetPendingDepth(key, 0)
	observability.RecordBatch("first", len(batch.Messages))
	c.logger.Debug().
		Str("key", key).
		Int("size", len(batch.Messages)).
		Int("dropped", dropped).
		Msg("First batch formed")

	return batch, true
}

// waitDebounce blocks for the debounce window, restarting it whenever
// another message arrives. Context cancellation cuts the wait short; the
// batch is still formed from whatever has arrived.
func (c *Coordinator) waitDebounce(ctx context.Context, resetCh chan struct{}) {
	timer := time.NewTimer(c.cfg.Debounce)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return
		case <-resetCh:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(c.cfg.Debounce)
		case <-ctx.Done():
			return
		}
	}
}

// enqueueLocked appends to the pending queue and applies the drop policy.
func (c *Coordinator) enqueueLocked(key string, state *keyState, msg Message) {
	state.pending = append(state.pending, msg)
	if len(state.pending) <= c.cfg.Cap {
		return
	}

	excess := len(state.pending) - c.cfg.Cap
	state.pending = state.pending[excess:]

	switch c.cfg.Policy {
	case DropOldest:
		// Oldest messages go silently.
	default:
		state.dropped += excess
	}

	observability.RecordDropped(string(c.cfg.Policy), excess)
	c.logger.Warn().
		Str("key", key).
		Int("dropped", excess).
		Str("policy", string(c.cfg.Policy)).
		Msg("Pending queue over capacity")
}

// DrainOrFinish is called when the current run for a key completes. A
// non-empty pending queue becomes the next batch (runner stays active and
// the caller must process it); an empty queue releases the runner and
// returns nil.
func (c *Coordinator) DrainOrFinish(key string) *Batch {
	if key == "" {
		panic("coordinator: empty key")
	}

	c.mu.Lock()
	state := c.keys[key]
	if state == nil || !state.active {
		c.mu.Unlock()
		return nil
	}

	if len(state.pending) == 0 {
		state.active = false
		delete(c.keys, key)
		c.active--
		activeNow := c.active
		c.mu.Unlock()

		observability.SetActiveRunners(activeNow)
		observability.SetPendingDepth(key, 0)
		c.logger.Debug().Str("key", key).Msg("Runner released")
		return nil
	}

	messages := state.pending
	dropped := state.dropped
	state.pending = nil
	state.dropped = 0
	c.mu.Unlock()

	batch := &Batch{Key: key, Messages: messages, Summary: dropSummary(dropped)}

	observability.SetPendingDepth(key, 0)
	observability.RecordBatch("drained", len(batch.Messages))
	c.logger.Debug().
		Str("key", key).
		Int("size", len(batch.Messages)).
		Msg("Pending queue drained into batch")

	return batch
}

// PendingDepth returns the pending queue depth for a key.
func (c *Coordinator) PendingDepth(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state := c.keys[key]; state != nil {
		return len(state.pending)
	}
	return 0
}

// ActiveCount returns how many keys have an active runner.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
