package ws

import "time"

// MaxReconnectDelay caps the exponential backoff.
const MaxReconnectDelay = 30 * time.Second

// Scheduler computes exponential backoff delays for reconnect attempts and
// tracks the attempt count. It is owned by the Manager and not goroutine-safe
// on its own; the Manager serializes access.
type Scheduler struct {
	baseDelay   time.Duration
	maxAttempts int
	attempts    int
}

// NewScheduler creates a Scheduler with the given base delay and attempt
// ceiling.
func NewScheduler(baseDelay time.Duration, maxAttempts int) *Scheduler {
	return &Scheduler{baseDelay: baseDelay, maxAttempts: maxAttempts}
}

// Next increments the attempt count and returns the delay to wait before
// that attempt: min(base * 2^(attempt-1), MaxReconnectDelay). It returns
// false when the ceiling is reached, meaning no retry should be scheduled.
func (s *Scheduler) Next() (time.Duration, bool) {
	if s.attempts >= s.maxAttempts {
		return 0, false
	}
	s.attempts++
	return s.delayFor(s.attempts), true
}

// delayFor returns the backoff delay for the given 1-based attempt number.
func (s *Scheduler) delayFor(attempt int) time.Duration {
	shift := uint(attempt - 1)
	// Past 62 doublings the shift itself overflows; the cap applies anyway.
	if shift > 62 {
		return MaxReconnectDelay
	}
	d := s.baseDelay << shift
	if d <= 0 || d > MaxReconnectDelay {
		return MaxReconnectDelay
	}
	return d
}

// Attempts returns how many attempts have been consumed.
func (s *Scheduler) Attempts() int {
	return s.attempts
}

// Exhausted reports whether the attempt ceiling has been reached.
func (s *Scheduler) Exhausted() bool {
	return s.attempts >= s.maxAttempts
}

// Reset clears the attempt count. Called whenever a connection is
// successfully established or the client disconnects explicitly.
func (s *Scheduler) Reset() {
	s.attempts = 0
}
