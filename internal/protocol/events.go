// Package protocol defines the WebSocket event types and structures exchanged
// between the messaging client and server. All frames are serialized as JSON
// and follow a consistent envelope format with a type discriminator and an
// ISO-8601 timestamp.
package protocol

import (
	"encoding/json"
	"time"
)

// ---------------------------------------------------------------------------
// Event type constants
// ---------------------------------------------------------------------------

// Application event types. The set is closed: any frame carrying a type
// outside this list is dropped at the decode boundary.
const (
	TypeMessageNew       = "message:new"
	TypeMessageEdit      = "message:edit"
	TypeMessageDelete    = "message:delete"
	TypeMessageRead      = "message:read"
	TypeTypingStart      = "typing:start"
	TypeTypingStop       = "typing:stop"
	TypePresenceUpdate   = "presence:update"
	TypeDialogNew        = "dialog:new"
	TypeDialogUpdate     = "dialog:update"
	TypeDialogDelete     = "dialog:delete"
	TypeUserUpdate       = "user:update"
	TypeNotificationNew  = "notification:new"
	TypeConnectionStatus = "connection:status"
	TypeError            = "error"
)

// Keep-alive frame types. Ping is client-initiated; the server answers with a
// payload-free pong that the codec consumes before dispatch.
const (
	TypePing = "ping"
	TypePong = "pong"
)

// User presence status values.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusAway    = "away"
	StatusBusy    = "busy"
)

// Server error codes carried by "error" events.
const (
	ErrCodeAuthInvalid = "AUTH_INVALID"
	ErrCodeRateLimited = "RATE_LIMITED"
)

// ---------------------------------------------------------------------------
// Envelope
// ---------------------------------------------------------------------------

// Envelope is the wire format shared by every frame: a type discriminator,
// a type-specific payload, and an ISO-8601 timestamp.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// Event is a validated inbound frame: the tag, its decoded payload (one of
// the concrete structs below, determined entirely by the tag), and the
// server-assigned timestamp.
type Event struct {
	Type      string
	Data      interface{}
	Timestamp time.Time
}

// ---------------------------------------------------------------------------
// Event payload structs
// ---------------------------------------------------------------------------

// Message is the payload of message:new and message:edit events.
type Message struct {
	ID         string `json:"id"`
	DialogID   string `json:"dialogId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Kind       string `json:"type,omitempty"` // text, image, file, voice, video
	Content    string `json:"content"`
	ReplyTo    string `json:"replyTo,omitempty"`
	IsEdited   bool   `json:"isEdited,omitempty"`
	CreatedAt  string `json:"createdAt"`
	EditedAt   string `json:"editedAt,omitempty"`
}

// MessageDelete is the payload of message:delete events.
type MessageDelete struct {
	MessageID string `json:"messageId"`
	DialogID  string `json:"dialogId"`
}

// MessageRead is the payload of message:read events.
type MessageRead struct {
	MessageID string `json:"messageId"`
	DialogID  string `json:"dialogId"`
	UserID    string `json:"userId"`
	ReadAt    string `json:"readAt"`
}

// Typing is the payload of typing:start and typing:stop events.
type Typing struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	DialogID string `json:"dialogId"`
}

// Presence is the payload of presence:update events.
type Presence struct {
	UserID   string `json:"userId"`
	Status   string `json:"status"` // online | offline | away | busy
	IsOnline bool   `json:"isOnline"`
	LastSeen string `json:"lastSeen,omitempty"`
}

// Dialog is the payload of dialog:new, dialog:update and dialog:delete events.
type Dialog struct {
	ID               string `json:"id"`
	Kind             string `json:"type"` // private | group | channel
	Title            string `json:"title"`
	ParticipantCount int    `json:"participantCount,omitempty"`
	UnreadCount      int    `json:"unreadCount,omitempty"`
	CreatedAt        string `json:"createdAt,omitempty"`
	UpdatedAt        string `json:"updatedAt,omitempty"`
}

// User is the payload of user:update events.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Status      string `json:"status,omitempty"`
	IsOnline    bool   `json:"isOnline,omitempty"`
	LastSeen    string `json:"lastSeen,omitempty"`
}

// Notification is the payload of notification:new events.
type Notification struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Icon      string `json:"icon,omitempty"`
	DialogID  string `json:"dialogId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

// ConnectionStatus is the payload of connection:status events.
type ConnectionStatus struct {
	Status string `json:"status"` // connecting | connected | disconnected | reconnecting
	Reason string `json:"reason,omitempty"`
}

// ServerError is the payload of error events.
type ServerError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
