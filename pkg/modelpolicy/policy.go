// Package modelpolicy tracks approximate quota state per provider+model pair
// and chooses the next usable model when one is rate limited. State is an
// explicit container constructed per instance; nothing here is process-global,
// so concurrent agent runs share one injected Policy and tests build their
// own.
package modelpolicy

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zana-AI/zana-planner/internal/observability"
)

// DefaultBlockDuration is used when a rate-limit event carries neither a
// retry-after value nor a parseable reset hint.
const DefaultBlockDuration = 60 * time.Second

// Policy tracks quota snapshots and rate-limit blocks for provider+model
// pairs. All methods are safe for concurrent use; cardinality is low (a
// handful of models), so a single mutex guards both maps.
type Policy struct {
	mu      sync.Mutex
	quotas  map[string]*QuotaSnapshot
	blocks  map[string]RateLimitBlock
	logger  zerolog.Logger
	now     func() time.Time
	defBloc time.Duration
}

// New creates an empty policy.
func New(logger zerolog.Logger) *Policy {
	observability.EnsureRegistered()

	return &Policy{
		quotas:  make(map[string]*QuotaSnapshot),
		blocks:  make(map[string]RateLimitBlock),
		logger:  logger.With().Str("component", "modelpolicy").Logger(),
		now:     time.Now,
		defBloc: DefaultBlockDuration,
	}
}

func pairKey(provider, model string) string {
	return provider + "/" + model
}

// UpdateFromResponseMetadata ingests rate-limit headers from a provider
// response. Missing headers never overwrite previously observed fields.
func (p *Policy) UpdateFromResponseMetadata(provider, model string, metadata ResponseMetadata) {
	if len(metadata) == 0 {
		return
	}

	normalized := make(map[string]string, len(metadata))
	for k, v := range metadata {
		normalized[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	key := pairKey(provider, model)
	snap := p.quotas[key]
	if snap == nil {
		snap = &QuotaSnapshot{}
		p.quotas[key] = snap
	}
	snap.ObservedAt = now

	if v, ok := parseIntHeader(normalized, "x-ratelimit-limit-requests"); ok {
		snap.LimitRequests = &v
	}
	if v, ok := parseIntHeader(normalized, "x-ratelimit-limit-tokens"); ok {
		snap.LimitTokens = &v
	}
	if v, ok := parseIntHeader(normalized, "x-ratelimit-remaining-requests"); ok {
		snap.RemainingRequests = &v
	}
	if v, ok := parseIntHeader(normalized, "x-ratelimit-remaining-tokens"); ok {
		snap.RemainingTokens = &v
	}
	if t, ok := parseResetHeader(normalized, "x-ratelimit-reset-requests", now); ok {
		snap.ResetRequestsAt = &t
	}
	if t, ok := parseResetHeader(normalized, "x-ratelimit-reset-tokens", now); ok {
		snap.ResetTokensAt = &t
	}

	p.logger.Debug().
		Str("provider", provider).
		Str("model", model).
		Msg("Quota snapshot updated")
}

func parseIntHeader(headers map[string]string, name string) (int, bool) {
	raw, ok := headers[name]
	if !ok || raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseResetHeader(headers map[string]string, name string, now time.Time) (time.Time, bool) {
	raw, ok := headers[name]
	if !ok || raw == "" {
		return time.Time{}, false
	}
	seconds, err := ParseResetDuration(raw)
	if err != nil {
		return time.Time{}, false
	}
	return now.Add(time.Duration(seconds * float64(time.Second))), true
}

// MarkRateLimited sets a block for the pair. retryAfter wins when positive;
// otherwise the block duration is derived from resetHint, falling back to
// DefaultBlockDuration when the hint does not parse.
func (p *Policy) MarkRateLimited(provider, model string, retryAfter time.Duration, resetHint string) {
	blockFor := retryAfter
	if blockFor <= 0 {
		blockFor = p.defBloc
		if resetHint != "" {
			if seconds, err := ParseResetDuration(resetHint); err == nil {
				blockFor = time.Duration(seconds * float64(time.Second))
			}
		}
	}

	until := p.now().Add(blockFor)

	p.mu.Lock()
	p.blocks[pairKey(provider, model)] = RateLimitBlock{BlockedUntil: until}
	p.mu.Unlock()

	observability.RecordRateLimited(provider, model)
	observability.SetModelBlocked(provider, model, true)

	p.logger.Warn().
		Str("provider", provider).
		Str("model", model).
		Time("blocked_until", until).
		Msg("Model rate limited")
}

// IsBlocked reports whether the pair is currently blocked. Blocks expire by
// time comparison only.
func (p *Policy) IsBlocked(provider, model string) bool {
	return p.IsBlockedAt(provider, model, p.now())
}

// IsBlockedAt reports whether the pair is blocked relative to the given time.
func (p *Policy) IsBlockedAt(provider, model string, now time.Time) bool {
	p.mu.Lock()
	block, exists := p.blocks[pairKey(provider, model)]
	p.mu.Unlock()

	if !exists {
		return false
	}
	blocked := now.Before(block.BlockedUntil)
	if !blocked {
		observability.SetModelBlocked(provider, model, false)
	}
	return blocked
}

// PickFirstAvailable returns the first model in the candidate list that is
// not currently blocked for the provider. Order is caller-significant: the
// primary model comes first, fallbacks after. Empty string means every
// candidate is blocked.
func (p *Policy) PickFirstAvailable(provider string, candidates []string) string {
	now := p.now()
	for _, model := range candidates {
		if !p.IsBlockedAt(provider, model, now) {
			return model
		}
	}
	return ""
}

// Snapshot returns a read-only copy of the quota snapshot for the pair, or
// nil when nothing has been observed yet.
func (p *Policy) Snapshot(provider, model string) *QuotaSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quotas[pairKey(provider, model)].clone()
}

// Snapshots returns copies of every tracked quota snapshot keyed by
// "provider/model", for the admin quota dashboard.
func (p *Policy) Snapshots() map[string]*QuotaSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]*QuotaSnapshot, len(p.quotas))
	for key, snap := range p.quotas {
		out[key] = snap.clone()
	}
	return out
}

// Blocks returns the currently active blocks keyed by "provider/model".
func (p *Policy) Blocks() map[string]RateLimitBlock {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]RateLimitBlock)
	for key, block := range p.blocks {
		if now.Before(block.BlockedUntil) {
			out[key] = block
		}
	}
	return out
}
