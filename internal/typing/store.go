// Package typing tracks which users are composing a message in which dialog.
// Entries are ephemeral: they expire after a fixed TTL so that peers who stop
// typing without sending an explicit stop event (e.g. due to disconnection)
// do not linger forever.
package typing

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"
)

const (
	// TTL is how long a typing indicator stays valid without a refresh.
	TTL = 5 * time.Second

	// SweepInterval is how often expired entries are proactively removed.
	SweepInterval = 5 * time.Second
)

type entry struct {
	userName   string
	observedAt time.Time
}

// Store is a goroutine-safe map of (dialog, user) -> last-typing timestamp.
// Reads filter out expired entries lazily; RunSweeper bounds growth between
// reads.
type Store struct {
	mu      sync.RWMutex
	dialogs map[string]map[string]entry // dialogID -> userID -> entry
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates an empty typing store with the default TTL.
func NewStore() *Store {
	return &Store{
		dialogs: make(map[string]map[string]entry),
		ttl:     TTL,
		now:     time.Now,
	}
}

// Start records or refreshes a typing indicator for the user in the dialog.
func (s *Store) Start(dialogID, userID, userName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.dialogs[dialogID]
	if !ok {
		users = make(map[string]entry)
		s.dialogs[dialogID] = users
	}
	users[userID] = entry{userName: userName, observedAt: s.now()}
}

// Stop removes the user's typing indicator for the dialog, if present.
func (s *Store) Stop(dialogID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if users, ok := s.dialogs[dialogID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(s.dialogs, dialogID)
		}
	}
}

// TypingUsers returns the IDs of users currently typing in the dialog,
// ordered by when they started typing (oldest first). Entries older than the
// TTL are excluded even if the sweeper has not removed them yet.
func (s *Store) TypingUsers(dialogID string) []string {
	return s.collect(dialogID, func(userID string, e entry) string { return userID })
}

// TypingUserNames returns the display names of users currently typing in the
// dialog, in the same order as TypingUsers.
func (s *Store) TypingUserNames(dialogID string) []string {
	return s.collect(dialogID, func(userID string, e entry) string { return e.userName })
}

func (s *Store) collect(dialogID string, pick func(string, entry) string) []string {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	users, ok := s.dialogs[dialogID]
	if !ok {
		return nil
	}

	type active struct {
		userID string
		entry  entry
	}
	live := make([]active, 0, len(users))
	for userID, e := range users {
		if now.Sub(e.observedAt) < s.ttl {
			live = append(live, active{userID: userID, entry: e})
		}
	}

	sort.Slice(live, func(i, j int) bool {
		if !live[i].entry.observedAt.Equal(live[j].entry.observedAt) {
			return live[i].entry.observedAt.Before(live[j].entry.observedAt)
		}
		return live[i].userID < live[j].userID
	})

	out := make([]string, len(live))
	for i, a := range live {
		out[i] = pick(a.userID, a.entry)
	}
	return out
}

// Sweep removes all expired entries across all dialogs and returns how many
// were removed.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for dialogID, users := range s.dialogs {
		for userID, e := range users {
			if now.Sub(e.observedAt) >= s.ttl {
				delete(users, userID)
				removed++
			}
		}
		if len(users) == 0 {
			delete(s.dialogs, dialogID)
		}
	}
	return removed
}

// RunSweeper periodically removes expired entries until the context is
// cancelled. It blocks; run it in its own goroutine.
func (s *Store) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Printf("[typing] sweep removed %d stale entries", n)
			}
		}
	}
}
