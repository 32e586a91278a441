// Package ws implements the client side of the messaging WebSocket
// connection: a message-oriented transport built on gobwas/ws, the connection
// manager state machine, the reconnect scheduler, and the heartbeat monitor.
package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Reserved close codes.
const (
	// CloseNormal means an intentional client-initiated close; it suppresses
	// reconnection. Any other code is treated as an abnormal disruption.
	CloseNormal = 1000

	// CloseAbnormal is reported when the connection drops without a close
	// handshake.
	CloseAbnormal = 1006
)

// Callbacks are invoked by a Transport from its read goroutine, one at a
// time. Exactly one of OnClose or OnError fires per connection lifetime,
// after which no further callbacks are delivered.
type Callbacks struct {
	OnMessage func(data []byte)
	OnClose   func(code int, reason string)
	OnError   func(err error)
}

// Transport is one live bidirectional message connection. Send and Close are
// goroutine-safe.
type Transport interface {
	Send(data []byte) error
	Close(code int, reason string) error
}

// Dialer opens transports. A successful Dial means the connection is open
// and the read loop is running.
type Dialer interface {
	Dial(ctx context.Context, url string, cb Callbacks) (Transport, error)
}

// GobwasDialer dials WebSocket connections with gobwas/ws.
type GobwasDialer struct{}

// Dial implements Dialer.
func (GobwasDialer) Dial(ctx context.Context, url string, cb Callbacks) (Transport, error) {
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", url, err)
	}

	t := &gobwasTransport{
		conn: conn,
		cb:   cb,
		done: make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

// gobwasTransport wraps a dialed connection with a write mutex for
// serializing outbound frames and a background read loop.
type gobwasTransport struct {
	conn      net.Conn
	cb        Callbacks
	writeMu   sync.Mutex // serializes writes to this connection
	done      chan struct{}
	closeOnce sync.Once
}

// Send writes a text frame. The write mutex ensures concurrent goroutines do
// not interleave frame bytes.
func (t *gobwasTransport) Send(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return wsutil.WriteClientMessage(t.conn, ws.OpText, data)
}

// Close performs the closing handshake with the given code and reason, then
// closes the underlying network connection. Safe to call multiple times; the
// read loop stops without reporting a close event.
func (t *gobwasTransport) Close(code int, reason string) error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)

		frame := ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusCode(code), reason))
		t.writeMu.Lock()
		_ = ws.WriteFrame(t.conn, ws.MaskFrameInPlace(frame))
		t.writeMu.Unlock()

		err = t.conn.Close()
	})
	return err
}

// readLoop reads server frames until the connection ends, then reports the
// terminal condition through exactly one callback.
func (t *gobwasTransport) readLoop() {
	for {
		data, op, err := wsutil.ReadServerData(t.conn)
		if err != nil {
			select {
			case <-t.done:
				// Intentionally closed by this side; no callback.
				return
			default:
			}

			t.conn.Close()

			var closed wsutil.ClosedError
			switch {
			case errors.As(err, &closed):
				t.cb.OnClose(int(closed.Code), closed.Reason)
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
				// The peer vanished without a close handshake.
				t.cb.OnClose(CloseAbnormal, err.Error())
			default:
				t.cb.OnError(err)
			}
			return
		}

		if op == ws.OpText {
			t.cb.OnMessage(data)
		}
	}
}
