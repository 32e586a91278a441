package protocol

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	// MaxContentBytes is the maximum byte length of a message body.
	MaxContentBytes = 4096

	// MaxContentChars is the maximum character count of a message body.
	MaxContentChars = 2000
)

// validStatus reports whether s is one of the four presence status values.
func validStatus(s string) bool {
	switch s {
	case StatusOnline, StatusOffline, StatusAway, StatusBusy:
		return true
	}
	return false
}

// NewFrame builds the wire bytes for an outbound event of the given type,
// stamping the envelope with the current UTC time.
func NewFrame(eventType string, payload interface{}) ([]byte, error) {
	return newFrameAt(eventType, payload, time.Now().UTC())
}

func newFrameAt(eventType string, payload interface{}, ts time.Time) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
		}
		raw = data
	}

	out, err := json.Marshal(Envelope{
		Type:      eventType,
		Data:      raw,
		Timestamp: ts.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal frame: %w", err)
	}
	return out, nil
}

// NewPingFrame builds the keep-alive frame sent by the heartbeat monitor.
func NewPingFrame() []byte {
	data, _ := json.Marshal(Envelope{
		Type:      TypePing,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return data
}

// Decode parses raw frame bytes into a validated Event.
//
// It returns (nil, nil) for pong keep-alive frames, which carry no
// application payload and must not be dispatched. Any error means the frame
// is malformed, carries an unknown type, or fails payload validation; the
// caller drops the frame and the connection is left untouched.
func Decode(data []byte) (*Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("protocol: failed to parse frame: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("protocol: missing or empty \"type\" field")
	}

	// Heartbeat reply — consumed silently.
	if env.Type == TypePong {
		return nil, nil
	}

	ts, err := time.Parse(time.RFC3339, env.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("protocol: invalid timestamp in %q frame: %w", env.Type, err)
	}

	payload, err := decodePayload(env.Type, env.Data)
	if err != nil {
		return nil, err
	}

	return &Event{Type: env.Type, Data: payload, Timestamp: ts}, nil
}

// decodePayload unmarshals and validates the payload for its declared tag.
// The tag fully determines the payload shape.
func decodePayload(eventType string, raw json.RawMessage) (interface{}, error) {
	unmarshal := func(v interface{}) error {
		if len(raw) == 0 {
			return fmt.Errorf("protocol: %q frame has no payload", eventType)
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("protocol: failed to decode %q payload: %w", eventType, err)
		}
		return nil
	}

	switch eventType {
	case TypeMessageNew, TypeMessageEdit:
		var m Message
		if err := unmarshal(&m); err != nil {
			return nil, err
		}
		return m, validateMessage(m)

	case TypeMessageDelete:
		var m MessageDelete
		if err := unmarshal(&m); err != nil {
			return nil, err
		}
		if m.MessageID == "" || m.DialogID == "" {
			return nil, fmt.Errorf("protocol: message:delete requires messageId and dialogId")
		}
		return m, nil

	case TypeMessageRead:
		var m MessageRead
		if err := unmarshal(&m); err != nil {
			return nil, err
		}
		if m.MessageID == "" || m.DialogID == "" || m.UserID == "" {
			return nil, fmt.Errorf("protocol: message:read requires messageId, dialogId and userId")
		}
		return m, nil

	case TypeTypingStart, TypeTypingStop:
		var t Typing
		if err := unmarshal(&t); err != nil {
			return nil, err
		}
		if t.UserID == "" || t.DialogID == "" {
			return nil, fmt.Errorf("protocol: %s requires userId and dialogId", eventType)
		}
		return t, nil

	case TypePresenceUpdate:
		var p Presence
		if err := unmarshal(&p); err != nil {
			return nil, err
		}
		if p.UserID == "" {
			return nil, fmt.Errorf("protocol: presence:update requires userId")
		}
		if !validStatus(p.Status) {
			return nil, fmt.Errorf("protocol: presence:update has invalid status %q", p.Status)
		}
		return p, nil

	case TypeDialogNew, TypeDialogUpdate, TypeDialogDelete:
		var d Dialog
		if err := unmarshal(&d); err != nil {
			return nil, err
		}
		if d.ID == "" {
			return nil, fmt.Errorf("protocol: %s requires id", eventType)
		}
		return d, nil

	case TypeUserUpdate:
		var u User
		if err := unmarshal(&u); err != nil {
			return nil, err
		}
		if u.ID == "" {
			return nil, fmt.Errorf("protocol: user:update requires id")
		}
		return u, nil

	case TypeNotificationNew:
		var n Notification
		if err := unmarshal(&n); err != nil {
			return nil, err
		}
		if n.ID == "" || n.Title == "" {
			return nil, fmt.Errorf("protocol: notification:new requires id and title")
		}
		return n, nil

	case TypeConnectionStatus:
		var c ConnectionStatus
		if err := unmarshal(&c); err != nil {
			return nil, err
		}
		if c.Status == "" {
			return nil, fmt.Errorf("protocol: connection:status requires status")
		}
		return c, nil

	case TypeError:
		var e ServerError
		if err := unmarshal(&e); err != nil {
			return nil, err
		}
		if e.Code == "" {
			return nil, fmt.Errorf("protocol: error frame requires code")
		}
		return e, nil

	default:
		return nil, fmt.Errorf("protocol: unknown event type %q", eventType)
	}
}

// validateMessage checks that a message payload has its required identity
// fields and that the content meets size requirements.
func validateMessage(m Message) error {
	if m.ID == "" || m.DialogID == "" || m.SenderID == "" {
		return fmt.Errorf("protocol: message requires id, dialogId and senderId")
	}
	if len(m.Content) > MaxContentBytes {
		return fmt.Errorf("protocol: message content exceeds %d byte limit", MaxContentBytes)
	}
	if utf8.RuneCountInString(m.Content) > MaxContentChars {
		return fmt.Errorf("protocol: message content exceeds %d character limit", MaxContentChars)
	}
	if !utf8.ValidString(m.Content) {
		return fmt.Errorf("protocol: message content contains invalid UTF-8")
	}
	return nil
}
