package platform

import (
	"testing"

	"github.com/minitel/chat-client/internal/protocol"
)

type fakeConn struct {
	presence   []string
	reconnects int
	connected  bool
}

func (c *fakeConn) SendPresence(status string) bool {
	c.presence = append(c.presence, status)
	return true
}

func (c *fakeConn) Reconnect() { c.reconnects++ }

func (c *fakeConn) IsConnected() bool { return c.connected }

func TestBind_VisibilityDrivesPresence(t *testing.T) {
	conn := &fakeConn{connected: true}
	visibility := &SignalObserver{}
	Bind(conn, visibility, nil)

	visibility.Emit(false)
	visibility.Emit(true)

	want := []string{protocol.StatusAway, protocol.StatusOnline}
	if len(conn.presence) != len(want) {
		t.Fatalf("presence sends = %v, want %v", conn.presence, want)
	}
	for i := range want {
		if conn.presence[i] != want[i] {
			t.Errorf("presence[%d] = %q, want %q", i, conn.presence[i], want[i])
		}
	}
}

func TestBind_NetworkLossAndRecovery(t *testing.T) {
	conn := &fakeConn{connected: true}
	network := &SignalObserver{}
	Bind(conn, nil, network)

	network.Emit(false)
	if len(conn.presence) != 1 || conn.presence[0] != protocol.StatusOffline {
		t.Fatalf("presence after loss = %v, want [offline]", conn.presence)
	}

	network.Emit(true)
	if conn.reconnects != 0 {
		t.Error("should not reconnect while still connected")
	}
	if conn.presence[len(conn.presence)-1] != protocol.StatusOnline {
		t.Errorf("last presence = %q, want online", conn.presence[len(conn.presence)-1])
	}
}

func TestBind_NetworkRecoveryReconnectsWhenDown(t *testing.T) {
	conn := &fakeConn{connected: false}
	network := &SignalObserver{}
	Bind(conn, nil, network)

	network.Emit(true)
	if conn.reconnects != 1 {
		t.Errorf("reconnects = %d, want 1", conn.reconnects)
	}
}

func TestShutdown_AnnouncesOffline(t *testing.T) {
	conn := &fakeConn{connected: true}
	Shutdown(conn)
	if len(conn.presence) != 1 || conn.presence[0] != protocol.StatusOffline {
		t.Errorf("presence = %v, want [offline]", conn.presence)
	}
}
