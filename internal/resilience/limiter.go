// Package resilience provides availability guards for the cache
// service: fixed-window rate limiting (local and Redis-backed) and a
// circuit breaker for flaky upstreams.
package resilience

import (
	"context"
	"time"
)

// LimitResult is the outcome of a rate limit check.
type LimitResult struct {
	Allowed   bool
	Current   int64
	Remaining int64
	ResetAt   int64 // unix timestamp when the window resets
}

// Limiter checks and increments a fixed request window per identity.
// The window's expiry is set on the first increment and never refreshed
// by later increments: with limit N, requests 1..N are allowed and
// request N+1 is blocked until the window lapses.
type Limiter interface {
	CheckAllow(ctx context.Context, identity string, limit int64, window time.Duration) (LimitResult, error)
}
