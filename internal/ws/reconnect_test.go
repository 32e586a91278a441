package ws

import (
	"testing"
	"time"
)

func TestScheduler_ExponentialDelays(t *testing.T) {
	s := NewScheduler(1000*time.Millisecond, 10)

	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
	}
	for i, w := range want {
		delay, ok := s.Next()
		if !ok {
			t.Fatalf("attempt %d: Next reported exhaustion", i+1)
		}
		if delay != w {
			t.Errorf("attempt %d: delay = %s, want %s", i+1, delay, w)
		}
		if s.Attempts() != i+1 {
			t.Errorf("attempt %d: Attempts = %d", i+1, s.Attempts())
		}
	}
}

func TestScheduler_DelayNeverExceedsCap(t *testing.T) {
	s := NewScheduler(1000*time.Millisecond, 100)

	for i := 0; i < 100; i++ {
		delay, ok := s.Next()
		if !ok {
			t.Fatalf("attempt %d: unexpected exhaustion", i+1)
		}
		if delay > MaxReconnectDelay {
			t.Fatalf("attempt %d: delay %s exceeds cap %s", i+1, delay, MaxReconnectDelay)
		}
	}
}

func TestScheduler_Exhaustion(t *testing.T) {
	s := NewScheduler(time.Millisecond, 3)

	for i := 0; i < 3; i++ {
		if _, ok := s.Next(); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if !s.Exhausted() {
		t.Error("scheduler should be exhausted after 3 attempts")
	}
	if _, ok := s.Next(); ok {
		t.Error("Next should refuse once the ceiling is reached")
	}
	if s.Attempts() != 3 {
		t.Errorf("Attempts = %d, want 3 (no increment past the ceiling)", s.Attempts())
	}
}

func TestScheduler_Reset(t *testing.T) {
	s := NewScheduler(1000*time.Millisecond, 5)

	s.Next()
	s.Next()
	s.Reset()

	if s.Attempts() != 0 {
		t.Errorf("Attempts after Reset = %d, want 0", s.Attempts())
	}
	delay, ok := s.Next()
	if !ok || delay != 1000*time.Millisecond {
		t.Errorf("first delay after Reset = %s, %v; want 1s, true", delay, ok)
	}
}
