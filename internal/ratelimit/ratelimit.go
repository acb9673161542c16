// Package ratelimit throttles reconnect attempts so a session flapping
// against a dead counterparty cannot spin the reconnect loop faster than
// operators intend. It never substitutes for the mandatory fixed reconnect
// delay (spec.md §4.4 S5) — it only caps bursts once that delay has already
// elapsed. The "never shorten, only further restrain" shaping mirrors the
// teacher's internal/circuitbreaker retry-guard pattern; golang.org/x/time/rate
// itself rides in as a transitive dependency of the teacher's go.mod and is
// given its first direct caller here.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Reconnector wraps a token-bucket limiter around the reconnect scheduler.
// Wait blocks until a token is available or ctx is cancelled; callers invoke
// it only after the mandatory fixed delay has already fired.
type Reconnector struct {
	limiter *rate.Limiter
}

// NewReconnector builds a limiter allowing burst reconnect attempts up to
// burst, refilling at ratePerMinute tokens per minute. A ratePerMinute of 0
// disables throttling (every Wait returns immediately).
func NewReconnector(ratePerMinute float64, burst int) *Reconnector {
	if ratePerMinute <= 0 {
		return &Reconnector{limiter: rate.NewLimiter(rate.Inf, burst)}
	}
	return &Reconnector{
		limiter: rate.NewLimiter(rate.Limit(ratePerMinute/60.0), burst),
	}
}

// Wait blocks until the next reconnect attempt is permitted or ctx is done.
func (r *Reconnector) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow reports whether an attempt may proceed right now without blocking,
// consuming a token if so.
func (r *Reconnector) Allow() bool {
	return r.limiter.Allow()
}

// ReserveDelay returns how long the caller must additionally wait beyond the
// mandatory fixed delay before the next token is available. A non-positive
// result means an attempt may proceed immediately.
func (r *Reconnector) ReserveDelay() time.Duration {
	res := r.limiter.Reserve()
	if !res.OK() {
		return 0
	}
	d := res.Delay()
	if d <= 0 {
		res.Cancel()
	}
	return d
}
