package resilience

import (
	"context"
	"sync"
	"time"
)

// LocalLimiter is an in-process fixed-window Limiter for single
// instance deployments or as a fallback when Redis is unreachable.
type LocalLimiter struct {
	mu      sync.Mutex
	windows map[string]*localWindow
}

type localWindow struct {
	start int64
	count int64
}

// NewLocalLimiter creates an empty LocalLimiter.
func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{windows: make(map[string]*localWindow)}
}

// CheckAllow increments the identity's window counter and compares it
// to the limit. The window start is fixed at the first increment.
func (l *LocalLimiter) CheckAllow(ctx context.Context, identity string, limit int64, window time.Duration) (LimitResult, error) {
	if window <= 0 {
		window = time.Minute
	}

	now := time.Now().Unix()
	windowSize := int64(window.Seconds())

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[identity]
	if w == nil || now-w.start >= windowSize {
		w = &localWindow{start: now, count: 0}
		l.windows[identity] = w
	}
	w.count++

	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}

	return LimitResult{
		Allowed:   w.count <= limit,
		Current:   w.count,
		Remaining: remaining,
		ResetAt:   w.start + windowSize,
	}, nil
}

// Sweep drops lapsed windows. Intended to be called periodically from
// a background goroutine.
func (l *LocalLimiter) Sweep() {
	now := time.Now().Unix()

	l.mu.Lock()
	defer l.mu.Unlock()
	for identity, w := range l.windows {
		// A window older than an hour is certainly lapsed.
		if now-w.start >= 3600 {
			delete(l.windows, identity)
		}
	}
}
