package modelpolicy

import (
	"time"
)

// QuotaSnapshot holds the last-known rate-limit counters for one
// provider+model pair. All fields are unknown until observed from response
// metadata, so everything is a pointer.
type QuotaSnapshot struct {
	LimitRequests     *int       `json:"limit_requests,omitempty"`
	LimitTokens       *int       `json:"limit_tokens,omitempty"`
	RemainingRequests *int       `json:"remaining_requests,omitempty"`
	RemainingTokens   *int       `json:"remaining_tokens,omitempty"`
	ResetRequestsAt   *time.Time `json:"reset_requests_at,omitempty"`
	ResetTokensAt     *time.Time `json:"reset_tokens_at,omitempty"`
	ObservedAt        time.Time  `json:"observed_at"`
}

// clone returns a copy so callers cannot mutate tracked state.
func (q *QuotaSnapshot) clone() *QuotaSnapshot {
	if q == nil {
		return nil
	}
	out := &QuotaSnapshot{ObservedAt: q.ObservedAt}
	out.LimitRequests = copyInt(q.LimitRequests)
	out.LimitTokens = copyInt(q.LimitTokens)
	out.RemainingRequests = copyInt(q.RemainingRequests)
	out.RemainingTokens = copyInt(q.RemainingTokens)
	out.ResetRequestsAt = copyTime(q.ResetRequestsAt)
	out.ResetTokensAt = copyTime(q.ResetTokensAt)
	return out
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// RateLimitBlock marks a provider+model pair as unusable until the block
// expires. Expiry is a pure time comparison; blocks are never removed
// explicitly.
type RateLimitBlock struct {
	BlockedUntil time.Time `json:"blocked_until"`
}

// ResponseMetadata carries rate-limit fields surfaced by a provider adapter
// after a model call. Header names follow the common x-ratelimit-* scheme;
// lookup is case-insensitive and missing keys leave prior state unchanged.
type ResponseMetadata map[string]string
