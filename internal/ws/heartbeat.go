package ws

import (
	"sync"
	"time"
)

// HeartbeatConfig holds heartbeat tuning parameters.
type HeartbeatConfig struct {
	Interval time.Duration // how often to send a keep-alive ping
	Timeout  time.Duration // extra grace beyond Interval before a silent connection counts as dead; 0 disables the check
}

// heartbeat periodically invokes sendPing while started and watches for
// half-open connections: if no inbound activity has been recorded within
// Interval + Timeout when a tick fires, onStale is invoked instead of a ping.
// The original best-effort behavior (ping without verifying replies) is
// available by setting Timeout to 0.
type heartbeat struct {
	config HeartbeatConfig

	mu      sync.Mutex
	last    time.Time // last inbound activity of any kind
	stopCh  chan struct{}
	running bool
}

func newHeartbeat(config HeartbeatConfig) *heartbeat {
	return &heartbeat{config: config}
}

// Start begins the periodic ping loop, replacing any previous loop. Both
// callbacks are invoked from the heartbeat goroutine.
func (h *heartbeat) Start(sendPing func(), onStale func(age time.Duration)) {
	h.Stop()

	h.mu.Lock()
	h.last = time.Now()
	h.stopCh = make(chan struct{})
	h.running = true
	stopCh := h.stopCh
	h.mu.Unlock()

	go func() {
		ticker := time.NewTicker(h.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				if h.config.Timeout > 0 {
					if age := time.Since(h.lastActivity()); age > h.config.Interval+h.config.Timeout {
						onStale(age)
						return
					}
				}
				sendPing()
			}
		}
	}()
}

// Stop halts the ping loop. Safe to call when not running.
func (h *heartbeat) Stop() {
	h.mu.Lock()
	if h.running {
		close(h.stopCh)
		h.running = false
	}
	h.mu.Unlock()
}

// Touch records inbound activity, deferring the staleness deadline.
func (h *heartbeat) Touch() {
	h.mu.Lock()
	h.last = time.Now()
	h.mu.Unlock()
}

func (h *heartbeat) lastActivity() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}
