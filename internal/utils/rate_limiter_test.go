package utils

import (
	"testing"
	"time"
)

func TestSlidingWindowAllow(t *testing.T) {
	window := NewSlidingWindow(2 * time.Second)
	now := time.Now()
	if !window.Allow(now, 2) || !window.Allow(now.Add(500*time.Millisecond), 2) {
		t.Fatalf("expected first two hits to be allowed")
	}
	if window.Allow(now.Add(time.Second), 2) {
		t.Fatalf("expected third hit inside window to be rejected")
	}
	if count := window.Count(now.Add(time.Second)); count != 2 {
		t.Fatalf("expected rejected hit not to be recorded, got %d", count)
	}
	if !window.Allow(now.Add(3*time.Second), 2) {
		t.Fatalf("expected hit after window to be allowed")
	}
}

func TestRateLimiterPerKey(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	now := time.Now()

	if !limiter.Allow("g1:u1", now) {
		t.Fatalf("expected first hit allowed")
	}
	if limiter.Allow("g1:u1", now.Add(time.Second)) {
		t.Fatalf("expected second hit for same key rejected")
	}
	if !limiter.Allow("g1:u2", now.Add(time.Second)) {
		t.Fatalf("expected other key to have its own window")
	}
	if remaining := limiter.Prune(now.Add(2 * time.Minute)); remaining != 0 {
		t.Fatalf("expected idle windows pruned, got %d", remaining)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(0, time.Minute)
	now := time.Now()
	for i := 0; i < 100; i++ {
		if !limiter.Allow("k", now) {
			t.Fatalf("disabled limiter must allow every hit")
		}
	}
	var nilLimiter *RateLimiter
	if !nilLimiter.Allow("k", now) {
		t.Fatalf("nil limiter must allow")
	}
}
