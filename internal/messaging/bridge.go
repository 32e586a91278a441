// Package messaging republishes validated chat events onto NATS so sibling
// processes (indexers, notification daemons, bots) can consume the same
// stream the client sees, without each holding its own WebSocket.
package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/minitel/chat-client/internal/bus"
	"github.com/minitel/chat-client/internal/protocol"
)

// SubjectPrefix roots every bridge subject. Event types map underneath it,
// e.g. message:new -> chat.events.message.new.
const SubjectPrefix = "chat.events"

// BridgeConfig holds NATS connection settings for the event bridge.
type BridgeConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultBridgeConfig returns sensible defaults.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		URL:           "nats://localhost:4222",
		Name:          "chat-client-" + uuid.NewString()[:8],
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// Bridge forwards every event published on the local bus to a NATS subject
// derived from the event type. Events flow one way, bus to NATS; nothing is
// read back.
type Bridge struct {
	conn *nats.Conn
	sub  *bus.Subscription
}

// NewBridge connects to NATS and attaches to the event bus. It returns an
// error if the initial connection fails.
func NewBridge(config BridgeConfig, events *bus.Bus) (*Bridge, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	b := &Bridge{conn: nc}
	b.sub = events.Subscribe(b.forward)
	return b, nil
}

// Subject maps an event type to its NATS subject. Colons become dots so the
// type hierarchy lines up with NATS subject tokens.
func Subject(eventType string) string {
	return SubjectPrefix + "." + strings.ReplaceAll(eventType, ":", ".")
}

// forward republishes a single bus event. Marshal or publish failures are
// logged and dropped; the bridge never stalls local delivery.
func (b *Bridge) forward(ev protocol.Event) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		log.Printf("[nats] marshal %s: %v", ev.Type, err)
		return
	}
	envelope := protocol.Envelope{
		Type:      ev.Type,
		Data:      data,
		Timestamp: ev.Timestamp.Format(time.RFC3339),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("[nats] marshal envelope %s: %v", ev.Type, err)
		return
	}
	if err := b.conn.Publish(Subject(ev.Type), payload); err != nil {
		log.Printf("[nats] publish %s: %v", ev.Type, err)
	}
}

// Close detaches from the bus and drains the NATS connection.
func (b *Bridge) Close() {
	b.sub.Unsubscribe()
	if err := b.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}
	log.Printf("[nats] bridge closed")
}
