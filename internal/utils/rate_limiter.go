package utils

import (
	"sync"
	"time"
)

type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window}
}

// Allow records a hit at now unless limit hits already fall inside the window.
// Rejected hits are not recorded.
func (w *SlidingWindow) Allow(now time.Time, limit int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.expire(now)
	if limit > 0 && len(w.hits) >= limit {
		return false
	}
	w.hits = append(w.hits, now)
	return true
}

func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.expire(now)
	return len(w.hits)
}

func (w *SlidingWindow) expire(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	w.hits = w.hits[idx:]
}

// RateLimiter keeps one sliding window per key.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*SlidingWindow
}

// NewRateLimiter allows limit hits per key inside window. A non-positive limit disables limiting.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*SlidingWindow),
	}
}

func (l *RateLimiter) Enabled() bool {
	return l != nil && l.limit > 0 && l.window > 0
}

func (l *RateLimiter) Allow(key string, now time.Time) bool {
	if !l.Enabled() {
		return true
	}
	return l.get(key).Allow(now, l.limit)
}

// Prune drops windows with no hits left and returns how many remain.
func (l *RateLimiter) Prune(now time.Time) int {
	if !l.Enabled() {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, window := range l.windows {
		if window.Count(now) == 0 {
			delete(l.windows, key)
		}
	}
	return len(l.windows)
}

func (l *RateLimiter) get(key string) *SlidingWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	window := l.windows[key]
	if window == nil {
		window = NewSlidingWindow(l.window)
		l.windows[key] = window
	}
	return window
}
