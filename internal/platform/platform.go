// Package platform defines the narrow collaborator interfaces for host
// lifecycle signals (page/window visibility, network reachability) and binds
// them to outbound presence updates. The connection core never touches host
// globals directly; a thin adapter outside the core implements these
// interfaces.
package platform

import (
	"sync"

	"github.com/minitel/chat-client/internal/protocol"
)

// VisibilityObserver reports whether the application surface is visible to
// the user. The callback fires with true on becoming visible.
type VisibilityObserver interface {
	OnChange(fn func(visible bool))
}

// NetworkObserver reports host network reachability. The callback fires with
// true on regaining connectivity.
type NetworkObserver interface {
	OnChange(fn func(online bool))
}

// Conn is the slice of the connection manager the binder drives.
type Conn interface {
	SendPresence(status string) bool
	Reconnect()
	IsConnected() bool
}

// Bind wires lifecycle signals to presence updates for the local user:
// hidden -> away, visible -> online, network lost -> offline, network back
// -> online (plus a reconnect if the connection dropped meanwhile). Either
// observer may be nil. Presence flows outbound only; the local presence
// store updates when the server round-trips the event.
func Bind(conn Conn, visibility VisibilityObserver, network NetworkObserver) {
	if visibility != nil {
		visibility.OnChange(func(visible bool) {
			if visible {
				conn.SendPresence(protocol.StatusOnline)
			} else {
				conn.SendPresence(protocol.StatusAway)
			}
		})
	}

	if network != nil {
		network.OnChange(func(online bool) {
			if online {
				if !conn.IsConnected() {
					conn.Reconnect()
				}
				conn.SendPresence(protocol.StatusOnline)
			} else {
				conn.SendPresence(protocol.StatusOffline)
			}
		})
	}
}

// Shutdown announces that the local user is going away. Call it before
// disconnecting on process exit.
func Shutdown(conn Conn) {
	conn.SendPresence(protocol.StatusOffline)
}

// SignalObserver is a channel-free observer implementation driven by
// explicit Emit calls. It backs headless adapters and tests.
type SignalObserver struct {
	mu        sync.Mutex
	callbacks []func(bool)
}

// OnChange implements both VisibilityObserver and NetworkObserver.
func (o *SignalObserver) OnChange(fn func(bool)) {
	o.mu.Lock()
	o.callbacks = append(o.callbacks, fn)
	o.mu.Unlock()
}

// Emit delivers a signal to every registered callback.
func (o *SignalObserver) Emit(value bool) {
	o.mu.Lock()
	callbacks := make([]func(bool), len(o.callbacks))
	copy(callbacks, o.callbacks)
	o.mu.Unlock()

	for _, fn := range callbacks {
		fn(value)
	}
}
