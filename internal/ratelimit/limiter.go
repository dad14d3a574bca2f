package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a per-user sliding-window request limiter. State is held in
// process memory only: a restart resets every window, which is acceptable
// for advisory throttling.
type Limiter struct {
	window   time.Duration
	capacity int

	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

// New returns a limiter admitting at most capacity requests per user
// within the trailing window.
func New(window time.Duration, capacity int) *Limiter {
	return &Limiter{
		window:   window,
		capacity: capacity,
		windows:  make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow records a request for userID if the user has capacity left in the
// trailing window and reports whether it was admitted. Timestamps older
// than the window are pruned on every call, so per-user state stays
// bounded by capacity.
func (l *Limiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.windows[userID][:0]
	for _, ts := range l.windows[userID] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.capacity {
		l.windows[userID] = recent
		return false
	}

	l.windows[userID] = append(recent, now)
	return true
}
