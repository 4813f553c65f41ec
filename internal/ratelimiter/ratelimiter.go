package ratelimiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter bounds how many datagrams per second the server processes.
//
// This wraps golang.org/x/time/rate's token bucket:
//  1. Tokens refill at a constant rate (packets per second)
//  2. Each datagram consumes one token
//  3. When the bucket is empty the datagram is dropped (Allow) or the caller
//     waits (Wait)
//  4. Burst is the bucket capacity
//
// A nil *RateLimiter allows everything, so callers can keep the limiter
// optional without branching.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter with the given sustained rate and burst.
//
// packetsPerSecond = 0 disables limiting and returns nil. burst = 0 defaults
// to packetsPerSecond.
func New(packetsPerSecond, burst uint) *RateLimiter {
	if packetsPerSecond == 0 {
		return nil
	}
	if burst == 0 {
		burst = packetsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(packetsPerSecond), int(burst)),
	}
}

// Allow consumes a token if one is available. It never blocks.
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.Allow()
}

// AllowAt is Allow with an explicit clock, used by tests.
func (r *RateLimiter) AllowAt(now time.Time) bool {
	if r == nil {
		return true
	}
	return r.limiter.AllowN(now, 1)
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

// SetLimit changes the sustained rate. 0 removes the limit.
func (r *RateLimiter) SetLimit(packetsPerSecond uint) {
	if r == nil {
		return
	}
	if packetsPerSecond == 0 {
		r.limiter.SetLimit(rate.Inf)
		return
	}
	r.limiter.SetLimit(rate.Limit(packetsPerSecond))
}

// Tokens returns the tokens currently in the bucket. Unlimited limiters report
// +Inf.
func (r *RateLimiter) Tokens() float64 {
	if r == nil {
		return float64(rate.Inf)
	}
	return r.limiter.Tokens()
}
