package typing

import (
	"testing"
	"time"
)

// fixedClock returns a now-func pinned to base plus a settable offset.
type fixedClock struct {
	base   time.Time
	offset time.Duration
}

func (c *fixedClock) now() time.Time {
	return c.base.Add(c.offset)
}

func newTestStore() (*Store, *fixedClock) {
	clk := &fixedClock{base: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore()
	s.now = clk.now
	return s, clk
}

func TestStartAndTypingUsers(t *testing.T) {
	s, _ := newTestStore()

	s.Start("d1", "u1", "Alice")
	s.Start("d1", "u2", "Bob")
	s.Start("d2", "u3", "Carol")

	users := s.TypingUsers("d1")
	if len(users) != 2 {
		t.Fatalf("TypingUsers(d1) = %v, want 2 users", users)
	}
	if names := s.TypingUserNames("d2"); len(names) != 1 || names[0] != "Carol" {
		t.Errorf("TypingUserNames(d2) = %v, want [Carol]", names)
	}
	if users := s.TypingUsers("d3"); len(users) != 0 {
		t.Errorf("TypingUsers(d3) = %v, want empty", users)
	}
}

func TestTypingUsers_OrderedByStartTime(t *testing.T) {
	s, clk := newTestStore()

	s.Start("d1", "u2", "Bob")
	clk.offset = 1 * time.Second
	s.Start("d1", "u1", "Alice")

	users := s.TypingUsers("d1")
	if len(users) != 2 || users[0] != "u2" || users[1] != "u1" {
		t.Errorf("TypingUsers = %v, want [u2 u1] (oldest first)", users)
	}
}

func TestStop_RemovesImmediately(t *testing.T) {
	s, _ := newTestStore()

	s.Start("d1", "u1", "Alice")
	s.Stop("d1", "u1")

	if users := s.TypingUsers("d1"); len(users) != 0 {
		t.Errorf("TypingUsers after Stop = %v, want empty", users)
	}

	// Stopping an absent entry is a no-op.
	s.Stop("d1", "u9")
	s.Stop("d9", "u9")
}

func TestTypingUsers_LazyExpiry(t *testing.T) {
	s, clk := newTestStore()

	s.Start("d1", "u1", "Alice")
	clk.offset = 2 * time.Second
	s.Start("d1", "u2", "Bob")

	// u1 is now 5s old (>= TTL), u2 only 3s. No sweep has run.
	clk.offset = 5 * time.Second
	users := s.TypingUsers("d1")
	if len(users) != 1 || users[0] != "u2" {
		t.Errorf("TypingUsers = %v, want [u2]", users)
	}
}

func TestStart_RefreshesEntry(t *testing.T) {
	s, clk := newTestStore()

	s.Start("d1", "u1", "Alice")
	clk.offset = 4 * time.Second
	s.Start("d1", "u1", "Alice") // refresh just before expiry

	clk.offset = 8 * time.Second // 4s after refresh
	if users := s.TypingUsers("d1"); len(users) != 1 {
		t.Errorf("refreshed entry expired early: %v", users)
	}
}

func TestSweep_RemovesExpiredAcrossDialogs(t *testing.T) {
	s, clk := newTestStore()

	s.Start("d1", "u1", "Alice")
	s.Start("d2", "u2", "Bob")
	clk.offset = 3 * time.Second
	s.Start("d2", "u3", "Carol")

	clk.offset = 6 * time.Second
	if n := s.Sweep(); n != 2 {
		t.Errorf("Sweep removed %d entries, want 2", n)
	}

	if users := s.TypingUsers("d1"); len(users) != 0 {
		t.Errorf("d1 should be empty after sweep, got %v", users)
	}
	if users := s.TypingUsers("d2"); len(users) != 1 || users[0] != "u3" {
		t.Errorf("TypingUsers(d2) = %v, want [u3]", users)
	}

	// Second sweep finds nothing new.
	if n := s.Sweep(); n != 0 {
		t.Errorf("second Sweep removed %d entries, want 0", n)
	}
}
