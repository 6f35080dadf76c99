/*
Package ratelimit - sliding-window per-key rate limiter

Generalized from this codebase's middleware/ratelimit.go (mutex + map of
per-key entries) into a true sliding window: instead of resetting a fixed
window, each key keeps its own slice of recent-event timestamps and old
entries are dropped lazily on every Check call, so there is no background
cleanup goroutine and no per-IP HTTP coupling.
*/
package ratelimit

import (
	"sync"
	"time"
)

// Limiter enforces at most Max events per Window duration, independently
// per key.
type Limiter struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	events   map[string][]time.Time
	nowFunc  func() time.Time
}

func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  window,
		events:  make(map[string][]time.Time),
		nowFunc: time.Now,
	}
}

// Check drops timestamps older than now-window for key, then reports
// whether a new event is allowed. If allowed, the event is recorded.
// resetMs is the number of milliseconds until the oldest recorded event
// falls out of the window (0 when allowed with room to spare isn't
// meaningful and the caller should not wait).
func (l *Limiter) Check(key string) (allowed bool, remaining int, resetMs int64) {
	now := l.nowFunc()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	events := l.events[key]
	kept := events[:0]
	for _, t := range events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) < l.max {
		kept = append(kept, now)
		l.events[key] = kept
		return true, l.max - len(kept), 0
	}

	l.events[key] = kept
	oldest := kept[0]
	resetMs = oldest.Add(l.window).Sub(now).Milliseconds()
	if resetMs < 0 {
		resetMs = 0
	}
	return false, 0, resetMs
}
