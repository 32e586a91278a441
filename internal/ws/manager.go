package ws

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/minitel/chat-client/internal/bus"
	"github.com/minitel/chat-client/internal/metrics"
	"github.com/minitel/chat-client/internal/notify"
	"github.com/minitel/chat-client/internal/presence"
	"github.com/minitel/chat-client/internal/protocol"
	"github.com/minitel/chat-client/internal/ratelimit"
	"github.com/minitel/chat-client/internal/token"
	"github.com/minitel/chat-client/internal/typing"
)

// Config holds tunable parameters for the connection manager.
type Config struct {
	URL                  string        // WebSocket endpoint
	MaxReconnectAttempts int           // retry ceiling before giving up
	ReconnectDelay       time.Duration // base backoff delay
	HeartbeatInterval    time.Duration // keep-alive ping period
	HeartbeatTimeout     time.Duration // extra grace before a silent connection counts as dead; 0 disables
	ConnectTimeout       time.Duration // max time for a connection attempt to open
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		URL:                  "ws://localhost:3000/ws",
		MaxReconnectAttempts: 10,
		ReconnectDelay:       1000 * time.Millisecond,
		HeartbeatInterval:    30 * time.Second,
		HeartbeatTimeout:     10 * time.Second,
		ConnectTimeout:       10 * time.Second,
	}
}

// Manager owns the single logical connection: it dials transports, drives
// the state machine, decodes and fans out inbound frames, maintains the
// derived typing and presence state, and schedules reconnects with
// exponential backoff.
//
// All mutable state is guarded by mu; transport and timer callbacks
// re-acquire it, so the effect is one state transition at a time.
type Manager struct {
	config   Config
	dialer   Dialer
	events   *bus.Bus
	typing   *typing.Store
	presence *presence.Store
	tokens   token.Store
	notifier notify.Notifier
	throttle *ratelimit.Limiter // per-dialog outbound typing throttle

	mu             sync.Mutex
	state          ConnectionState
	transport      Transport
	gen            int // connection generation; stale callbacks carry an older value and are ignored
	authToken      string
	scheduler      *Scheduler
	hb             *heartbeat
	reconnectTimer *time.Timer
	connectTimer   *time.Timer
	connectedAt    time.Time
	listeners      []func(ConnectionState)
	userID         string
	userName       string
	closed         bool
}

// NewManager creates a Manager wired to its collaborators. The zero value of
// each store is acceptable for callers that do not consume derived state.
func NewManager(config Config, dialer Dialer, events *bus.Bus, typingStore *typing.Store, presenceStore *presence.Store, tokens token.Store, notifier notify.Notifier) *Manager {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	m := &Manager{
		config:    config,
		dialer:    dialer,
		events:    events,
		typing:    typingStore,
		presence:  presenceStore,
		tokens:    tokens,
		notifier:  notifier,
		throttle:  ratelimit.NewLimiter(ratelimit.RuleTyping),
		scheduler: NewScheduler(config.ReconnectDelay, config.MaxReconnectAttempts),
		hb: newHeartbeat(HeartbeatConfig{
			Interval: config.HeartbeatInterval,
			Timeout:  config.HeartbeatTimeout,
		}),
	}
	metrics.SetConnectionState(m.state.Status.String())
	return m
}

// SetIdentity records the local user's identity, used by the convenience
// senders to stamp outbound typing and presence events.
func (m *Manager) SetIdentity(userID, userName string) {
	m.mu.Lock()
	m.userID = userID
	m.userName = userName
	m.mu.Unlock()
}

// OnStateChange registers a listener invoked with a state snapshot after
// every mutation. Listeners run on the goroutine that caused the transition.
func (m *Manager) OnStateChange(fn func(ConnectionState)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// State returns a snapshot of the current connection state.
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the connection is open and ready for sends.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Status == StatusConnected
}

// Connect opens a new connection with the given auth token attached as a
// query parameter. Any prior transport is force-closed first so at most one
// transport is ever live. It returns immediately; the outcome arrives
// through state-change listeners. A no-op when already connected or after
// Close.
func (m *Manager) Connect(authToken string) {
	m.mu.Lock()
	if m.closed || m.state.Status == StatusConnected {
		m.mu.Unlock()
		return
	}

	m.cleanupLocked()
	m.authToken = authToken
	m.gen++
	gen := m.gen

	m.setStatusLocked(StatusConnecting)
	m.state.ReconnectAttempts = m.scheduler.Attempts()

	if m.config.ConnectTimeout > 0 {
		m.connectTimer = time.AfterFunc(m.config.ConnectTimeout, func() {
			m.handleConnectionError(gen, "connection timeout")
		})
	}

	endpoint := m.config.URL
	if authToken != "" {
		endpoint += "?token=" + url.QueryEscape(authToken)
	}
	m.mu.Unlock()

	m.notifyStateChange()
	go m.dial(gen, endpoint)
}

// Disconnect closes the connection gracefully (code 1000), cancels every
// pending timer and resets the reconnect attempt count. No reconnect will be
// scheduled.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++ // invalidate in-flight dials and transport callbacks
	m.cleanupLocked()
	m.scheduler.Reset()
	m.setStatusLocked(StatusDisconnected)
	m.state.ReconnectAttempts = 0
	m.state.LastError = ""
	m.mu.Unlock()

	m.notifyStateChange()
	log.Printf("[ws] disconnected")
}

// Reconnect is a no-op when connected; otherwise it discards the current
// transport and immediately redials using the stored token.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	if m.closed || m.state.Status == StatusConnected {
		m.mu.Unlock()
		return
	}
	remembered := m.authToken
	m.mu.Unlock()

	authToken := remembered
	if m.tokens != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if stored, err := m.tokens.Get(ctx, token.KeyAccessToken); err == nil && stored != "" {
			authToken = stored
		}
		cancel()
	}

	m.Disconnect()
	m.Connect(authToken)
}

// Close disconnects and permanently disposes the manager. Subsequent
// Connect/Reconnect calls are no-ops.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.Disconnect()
}

// Send serializes and transmits an event of the given type, stamping it with
// the current time. It reports failure (rather than panicking or queuing)
// when the connection is not in the connected state or the write fails.
func (m *Manager) Send(eventType string, payload interface{}) bool {
	m.mu.Lock()
	transport := m.transport
	connected := m.state.Status == StatusConnected
	m.mu.Unlock()

	if !connected || transport == nil {
		log.Printf("[ws] not connected; cannot send %q event", eventType)
		return false
	}

	frame, err := protocol.NewFrame(eventType, payload)
	if err != nil {
		log.Printf("[ws] failed to encode %q event: %v", eventType, err)
		return false
	}
	if err := transport.Send(frame); err != nil {
		log.Printf("[ws] failed to send %q event: %v", eventType, err)
		return false
	}
	return true
}

// SendTyping reports the local user's typing state for a dialog. Repeated
// typing:start calls are throttled per dialog; a suppressed refresh still
// reports success since the indicator is already live on the server.
// typing:stop always goes through and reopens the throttle window.
func (m *Manager) SendTyping(dialogID string, isTyping bool) bool {
	eventType := protocol.TypeTypingStart
	if !isTyping {
		eventType = protocol.TypeTypingStop
		m.throttle.Reset(dialogID)
	} else if !m.throttle.Allow(dialogID) {
		return true
	}

	m.mu.Lock()
	userID, userName := m.userID, m.userName
	m.mu.Unlock()

	return m.Send(eventType, protocol.Typing{
		UserID:   userID,
		UserName: userName,
		DialogID: dialogID,
	})
}

// SendMessageRead reports that the local user has read a message.
func (m *Manager) SendMessageRead(messageID, dialogID string) bool {
	m.mu.Lock()
	userID := m.userID
	m.mu.Unlock()

	return m.Send(protocol.TypeMessageRead, protocol.MessageRead{
		MessageID: messageID,
		DialogID:  dialogID,
		UserID:    userID,
		ReadAt:    time.Now().UTC().Format(time.RFC3339),
	})
}

// SendPresence reports the local user's presence status. The local presence
// store is not mutated directly; like every other presence update it is
// applied when the server round-trips the event.
func (m *Manager) SendPresence(status string) bool {
	m.mu.Lock()
	userID := m.userID
	m.mu.Unlock()

	return m.Send(protocol.TypePresenceUpdate, protocol.Presence{
		UserID:   userID,
		Status:   status,
		IsOnline: status == protocol.StatusOnline,
		LastSeen: time.Now().UTC().Format(time.RFC3339),
	})
}

// ---------------------------------------------------------------------------
// Connection lifecycle
// ---------------------------------------------------------------------------

// dial opens the transport off the caller's goroutine. The generation value
// ties the resulting callbacks to the connect cycle that started them.
func (m *Manager) dial(gen int, endpoint string) {
	ctx := context.Background()
	if m.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.ConnectTimeout)
		defer cancel()
	}

	transport, err := m.dialer.Dial(ctx, endpoint, Callbacks{
		OnMessage: func(data []byte) { m.onMessage(gen, data) },
		OnClose:   func(code int, reason string) { m.onClose(gen, code, reason) },
		OnError:   func(err error) { m.handleConnectionError(gen, err.Error()) },
	})
	if err != nil {
		m.handleConnectionError(gen, err.Error())
		return
	}
	m.onOpen(gen, transport)
}

// onOpen completes the transition into the connected state.
func (m *Manager) onOpen(gen int, transport Transport) {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		transport.Close(CloseNormal, "client disconnect")
		return
	}

	m.transport = transport
	m.cancelConnectTimerLocked()
	m.scheduler.Reset()

	now := time.Now()
	m.connectedAt = now
	m.setStatusLocked(StatusConnected)
	m.state.LastConnectedAt = now
	m.state.ReconnectAttempts = 0
	m.state.LastError = ""

	m.hb.Start(
		func() { m.sendPing() },
		func(age time.Duration) {
			log.Printf("[ws] heartbeat timeout, no activity for %s", age.Round(time.Second))
			m.handleConnectionError(gen, fmt.Sprintf("heartbeat timeout after %s", age.Round(time.Second)))
		},
	)
	m.mu.Unlock()

	log.Printf("[ws] connected to %s", m.config.URL)
	m.notifyStateChange()

	// Announce the local user; the store updates when the event round-trips.
	m.SendPresence(protocol.StatusOnline)
}

// onMessage decodes one inbound frame, updates derived state and publishes
// the event. Malformed or invalid frames are dropped without touching the
// connection.
func (m *Manager) onMessage(gen int, data []byte) {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.hb.Touch()

	ev, err := protocol.Decode(data)
	if err != nil {
		log.Printf("[ws] dropping frame: %v", err)
		metrics.FramesTotal.WithLabelValues("dropped").Inc()
		return
	}
	if ev == nil {
		// Keep-alive reply; already accounted for by the Touch above.
		metrics.FramesTotal.WithLabelValues("keepalive").Inc()
		return
	}

	metrics.FramesTotal.WithLabelValues("ok").Inc()
	metrics.EventsTotal.WithLabelValues(ev.Type).Inc()

	// Derived state first, then the synchronous bus publish, so subscribers
	// observe already-updated typing/presence state.
	m.handleInternalEvent(*ev)
	if m.events != nil {
		m.events.Publish(*ev)
	}
}

// handleInternalEvent applies events that feed the derived state stores or
// require user-visible handling.
func (m *Manager) handleInternalEvent(ev protocol.Event) {
	switch data := ev.Data.(type) {
	case protocol.Typing:
		if m.typing == nil {
			return
		}
		if ev.Type == protocol.TypeTypingStart {
			m.typing.Start(data.DialogID, data.UserID, data.UserName)
		} else {
			m.typing.Stop(data.DialogID, data.UserID)
		}

	case protocol.Presence:
		if m.presence == nil {
			return
		}
		var lastSeen time.Time
		if data.LastSeen != "" {
			if ts, err := time.Parse(time.RFC3339, data.LastSeen); err == nil {
				lastSeen = ts
			}
		}
		m.presence.Update(data.UserID, data.Status, lastSeen)

	case protocol.ConnectionStatus:
		// Informational only: a server frame never drives the local state
		// machine.
		log.Printf("[ws] server reports connection status %q", data.Status)

	case protocol.ServerError:
		m.handleServerError(data)
	}
}

// handleServerError surfaces a server-reported application error. It never
// closes the connection.
func (m *Manager) handleServerError(e protocol.ServerError) {
	log.Printf("[ws] server error code=%s message=%q", e.Code, e.Message)

	switch e.Code {
	case protocol.ErrCodeAuthInvalid:
		m.notifier.Notify(notify.SeverityError, "Authentication failed. Please log in again.")
	case protocol.ErrCodeRateLimited:
		m.notifier.Notify(notify.SeverityWarning, "Too many requests. Please slow down.")
	default:
		m.notifier.Notify(notify.SeverityError, "Server error: "+e.Message)
	}
}

// onClose handles the transport closing. Code 1000 is the graceful path and
// never schedules a reconnect; anything else goes through the backoff
// scheduler.
func (m *Manager) onClose(gen int, code int, reason string) {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return
	}

	log.Printf("[ws] connection closed code=%d reason=%q", code, reason)
	m.gen++
	m.hb.Stop()
	m.transport = nil
	m.cancelConnectTimerLocked()
	m.observeConnectionEndLocked()

	if code == CloseNormal {
		m.setStatusLocked(StatusDisconnected)
		m.mu.Unlock()
		m.notifyStateChange()
		return
	}

	m.scheduleReconnectLocked(fmt.Sprintf("connection closed: code=%d reason=%q", code, reason))
	m.mu.Unlock()
	m.notifyStateChange()
}

// handleConnectionError is the single funnel for dial failures, open
// timeouts, heartbeat staleness and transport-level errors. It tears down
// the current transport and consults the reconnect scheduler.
func (m *Manager) handleConnectionError(gen int, cause string) {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return
	}

	log.Printf("[ws] connection error: %s", cause)
	m.gen++
	m.hb.Stop()
	m.cancelConnectTimerLocked()
	if m.transport != nil {
		transport := m.transport
		m.transport = nil
		go transport.Close(CloseNormal, "client disconnect")
	}
	m.observeConnectionEndLocked()

	m.scheduleReconnectLocked(cause)
	m.mu.Unlock()
	m.notifyStateChange()
}

// scheduleReconnectLocked arms exactly one retry timer, or settles in the
// terminal disconnected state when attempts are exhausted. Callers hold mu.
func (m *Manager) scheduleReconnectLocked(cause string) {
	m.state.LastError = cause

	delay, ok := m.scheduler.Next()
	if !ok {
		m.setStatusLocked(StatusDisconnected)
		metrics.ReconnectsTotal.WithLabelValues("exhausted").Inc()
		log.Printf("[ws] reconnect attempts exhausted after %d tries", m.scheduler.Attempts())
		m.notifier.Notify(notify.SeverityError, "Connection lost. Please retry.")
		return
	}

	m.setStatusLocked(StatusReconnecting)
	m.state.ReconnectAttempts = m.scheduler.Attempts()
	metrics.ReconnectsTotal.WithLabelValues("scheduled").Inc()
	log.Printf("[ws] reconnecting in %s (attempt %d/%d)", delay, m.scheduler.Attempts(), m.config.MaxReconnectAttempts)

	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
	}
	m.reconnectTimer = time.AfterFunc(delay, m.retry)
}

// retry fires when the reconnect timer elapses.
func (m *Manager) retry() {
	m.mu.Lock()
	if m.closed || m.state.Status != StatusReconnecting {
		m.mu.Unlock()
		return
	}
	authToken := m.authToken
	m.mu.Unlock()

	m.Connect(authToken)
}

// sendPing emits one keep-alive frame; write failures are routed through the
// transport's own error reporting on the next read.
func (m *Manager) sendPing() {
	m.mu.Lock()
	transport := m.transport
	connected := m.state.Status == StatusConnected
	m.mu.Unlock()

	if !connected || transport == nil {
		return
	}
	if err := transport.Send(protocol.NewPingFrame()); err != nil {
		log.Printf("[ws] heartbeat ping failed: %v", err)
		return
	}
	metrics.HeartbeatsTotal.Inc()
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

// cleanupLocked cancels every pending timer and force-closes the transport.
// Callers hold mu.
func (m *Manager) cleanupLocked() {
	m.hb.Stop()
	m.cancelConnectTimerLocked()
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	if m.transport != nil {
		transport := m.transport
		m.transport = nil
		go transport.Close(CloseNormal, "client disconnect")
	}
	m.observeConnectionEndLocked()
}

func (m *Manager) cancelConnectTimerLocked() {
	if m.connectTimer != nil {
		m.connectTimer.Stop()
		m.connectTimer = nil
	}
}

func (m *Manager) observeConnectionEndLocked() {
	if !m.connectedAt.IsZero() {
		metrics.ConnectionDuration.Observe(time.Since(m.connectedAt).Seconds())
		m.connectedAt = time.Time{}
	}
}

func (m *Manager) setStatusLocked(status Status) {
	m.state.Status = status
	metrics.SetConnectionState(status.String())
}

// notifyStateChange invokes every listener with a snapshot, outside the lock.
func (m *Manager) notifyStateChange() {
	m.mu.Lock()
	snapshot := m.state
	listeners := make([]func(ConnectionState), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
