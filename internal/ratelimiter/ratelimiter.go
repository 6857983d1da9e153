package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter bounds the rate at which new transfer sessions are admitted.
//
// It wraps golang.org/x/time/rate's token bucket: tokens accrue at a
// sustained rate, each admitted session consumes one, and the burst size
// caps how many sessions can be admitted back to back. Incoming requests
// beyond the budget are rejected rather than queued, so a flood of read
// requests cannot pile up goroutines waiting for tokens.
//
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter admitting sessionsPerSecond sustained with the
// given burst capacity.
//
// sessionsPerSecond = 0 disables limiting (every request is admitted).
func New(sessionsPerSecond, burst uint) *RateLimiter {
	if sessionsPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = sessionsPerSecond
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(sessionsPerSecond), int(burst)),
	}
}

// Allow reports whether one more session may start now, consuming a token
// when it does. It never blocks.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the number of tokens currently in the bucket. Useful for
// monitoring; the value can change immediately after the call.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
