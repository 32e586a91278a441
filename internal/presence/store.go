// Package presence tracks the last-known status and last-seen time of users,
// derived from presence:update events. Updates are last-write-wins: the store
// does not consult event timestamps to reject out-of-order deliveries.
package presence

import (
	"sync"
	"time"

	"github.com/minitel/chat-client/internal/protocol"
)

// Entry is the stored presence for one user.
type Entry struct {
	Status   string
	LastSeen time.Time // zero if the server never reported one
}

// Store is a goroutine-safe map of userID -> presence entry.
type Store struct {
	mu    sync.RWMutex
	users map[string]Entry
}

// NewStore creates an empty presence store.
func NewStore() *Store {
	return &Store{users: make(map[string]Entry)}
}

// Update upserts the user's presence. A zero lastSeen keeps no timestamp.
func (s *Store) Update(userID, status string, lastSeen time.Time) {
	s.mu.Lock()
	s.users[userID] = Entry{Status: status, LastSeen: lastSeen}
	s.mu.Unlock()
}

// IsOnline reports whether the user's last-known status is online.
func (s *Store) IsOnline(userID string) bool {
	return s.Status(userID) == protocol.StatusOnline
}

// Status returns the user's last-known status, defaulting to offline for
// unknown users.
func (s *Store) Status(userID string) string {
	s.mu.RLock()
	e, ok := s.users[userID]
	s.mu.RUnlock()

	if !ok {
		return protocol.StatusOffline
	}
	return e.Status
}

// LastSeen returns the user's last-seen time and whether one is known.
func (s *Store) LastSeen(userID string) (time.Time, bool) {
	s.mu.RLock()
	e, ok := s.users[userID]
	s.mu.RUnlock()

	if !ok || e.LastSeen.IsZero() {
		return time.Time{}, false
	}
	return e.LastSeen, true
}

// OnlineCount returns how many tracked users are currently online.
func (s *Store) OnlineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.users {
		if e.Status == protocol.StatusOnline {
			n++
		}
	}
	return n
}
