// Package ratelimit provides in-process send throttling using a fixed-window
// counter per key. The server enforces the real limits and answers
// RATE_LIMITED when they trip; the local throttle keeps chatty senders
// (typing indicators above all) from getting there in the first place.
package ratelimit

import (
	"sync"
	"time"
)

// Rule defines a throttling policy: the maximum number of sends allowed per
// key in the window.
type Rule struct {
	Limit  int           // max count in the window
	Window time.Duration // time window
}

// RuleTyping allows 4 typing events per 4 seconds per dialog. That is
// frequent enough to keep a 5-second typing indicator alive while a user
// types continuously.
var RuleTyping = Rule{Limit: 4, Window: 4 * time.Second}

// Limiter performs throttling checks in memory.
type Limiter struct {
	rule Rule

	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time // test hook
}

type window struct {
	start time.Time
	count int
}

// NewLimiter creates a Limiter enforcing the given rule.
func NewLimiter(rule Rule) *Limiter {
	return &Limiter{
		rule:    rule,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow checks whether the given key is within the rate limit, counting the
// call against the current window. A fresh window opens once the previous
// one has elapsed.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.rule.Window {
		l.windows[key] = &window{start: now, count: 1}
		return true
	}

	w.count++
	return w.count <= l.rule.Limit
}

// Remaining returns the number of sends the key has left in the current
// window. Returns the full limit when no window is open.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || l.now().Sub(w.start) >= l.rule.Window {
		return l.rule.Limit
	}

	remaining := l.rule.Limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Reset forgets the key's current window.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	delete(l.windows, key)
	l.mu.Unlock()
}
