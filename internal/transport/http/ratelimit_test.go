package http

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.allow() || !rl.allow() {
		t.Fatalf("first two messages should pass")
	}
	if rl.allow() {
		t.Fatalf("third message in the window should be limited")
	}

	now = now.Add(time.Minute)
	if !rl.allow() {
		t.Fatalf("new window should reset the counter")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newRateLimiter(0, time.Minute)
	for i := 0; i < 1000; i++ {
		if !rl.allow() {
			t.Fatalf("zero limit must allow everything")
		}
	}

	var nilLimiter *rateLimiter
	if !nilLimiter.allow() {
		t.Fatalf("nil limiter must allow")
	}
}
