package protocol

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDecode_ValidPresenceUpdate(t *testing.T) {
	frame := `{"type":"presence:update","data":{"userId":"u1","status":"away","isOnline":false},"timestamp":"2025-06-01T12:00:00Z"}`

	ev, err := Decode([]byte(frame))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if ev.Type != TypePresenceUpdate {
		t.Errorf("Type = %q, want %q", ev.Type, TypePresenceUpdate)
	}

	p, ok := ev.Data.(Presence)
	if !ok {
		t.Fatalf("Data has type %T, want Presence", ev.Data)
	}
	if p.UserID != "u1" || p.Status != StatusAway || p.IsOnline {
		t.Errorf("unexpected payload: %+v", p)
	}

	want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", ev.Timestamp, want)
	}
}

func TestDecode_ValidTyping(t *testing.T) {
	frame := `{"type":"typing:start","data":{"userId":"u1","userName":"Alice","dialogId":"d1"},"timestamp":"2025-06-01T12:00:00Z"}`

	ev, err := Decode([]byte(frame))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	typ, ok := ev.Data.(Typing)
	if !ok {
		t.Fatalf("Data has type %T, want Typing", ev.Data)
	}
	if typ.UserID != "u1" || typ.UserName != "Alice" || typ.DialogID != "d1" {
		t.Errorf("unexpected payload: %+v", typ)
	}
}

func TestDecode_PongConsumedSilently(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"pong"}`))
	if err != nil {
		t.Fatalf("pong frame should not error: %v", err)
	}
	if ev != nil {
		t.Errorf("pong frame should produce no event, got %+v", ev)
	}
}

func TestDecode_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"malformed json", `{not json`},
		{"empty type", `{"type":"","timestamp":"2025-06-01T12:00:00Z"}`},
		{"unknown type", `{"type":"match:found","data":{},"timestamp":"2025-06-01T12:00:00Z"}`},
		{"missing timestamp", `{"type":"typing:start","data":{"userId":"u1","dialogId":"d1"}}`},
		{"missing payload", `{"type":"typing:start","timestamp":"2025-06-01T12:00:00Z"}`},
		{"typing without dialog", `{"type":"typing:start","data":{"userId":"u1"},"timestamp":"2025-06-01T12:00:00Z"}`},
		{"presence bad status", `{"type":"presence:update","data":{"userId":"u1","status":"sleeping"},"timestamp":"2025-06-01T12:00:00Z"}`},
		{"presence without user", `{"type":"presence:update","data":{"status":"online"},"timestamp":"2025-06-01T12:00:00Z"}`},
		{"message without sender", `{"type":"message:new","data":{"id":"m1","dialogId":"d1","content":"hi"},"timestamp":"2025-06-01T12:00:00Z"}`},
		{"delete without message id", `{"type":"message:delete","data":{"dialogId":"d1"},"timestamp":"2025-06-01T12:00:00Z"}`},
		{"error without code", `{"type":"error","data":{"message":"boom"},"timestamp":"2025-06-01T12:00:00Z"}`},
		{"payload wrong shape", `{"type":"typing:start","data":"nope","timestamp":"2025-06-01T12:00:00Z"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.frame))
			if err == nil {
				t.Errorf("Decode(%s) should be rejected, got event %+v", tt.frame, ev)
			}
		})
	}
}

func TestDecode_MessageContentLimits(t *testing.T) {
	build := func(content string) string {
		data, _ := json.Marshal(Message{
			ID: "m1", DialogID: "d1", SenderID: "u1", SenderName: "Alice",
			Content: content, CreatedAt: "2025-06-01T12:00:00Z",
		})
		return `{"type":"message:new","data":` + string(data) + `,"timestamp":"2025-06-01T12:00:00Z"}`
	}

	if _, err := Decode([]byte(build("hello"))); err != nil {
		t.Errorf("normal message rejected: %v", err)
	}
	if _, err := Decode([]byte(build(strings.Repeat("x", MaxContentBytes+1)))); err == nil {
		t.Error("oversized message should be rejected")
	}
	// Multi-byte runes: under the byte limit but over the character limit.
	if _, err := Decode([]byte(build(strings.Repeat("é", MaxContentChars+1)))); err == nil {
		t.Error("message over the character limit should be rejected")
	}
}

func TestNewFrame_StampsTimestamp(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)

	data, err := NewFrame(TypeTypingStart, Typing{UserID: "u1", UserName: "Alice", DialogID: "d1"})
	if err != nil {
		t.Fatalf("NewFrame returned error: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("frame is not valid JSON: %v", err)
	}
	if env.Type != TypeTypingStart {
		t.Errorf("Type = %q, want %q", env.Type, TypeTypingStart)
	}

	ts, err := time.Parse(time.RFC3339, env.Timestamp)
	if err != nil {
		t.Fatalf("frame timestamp is not RFC 3339: %v", err)
	}
	if ts.Before(before) || ts.After(time.Now().UTC().Add(time.Second)) {
		t.Errorf("timestamp %v is not current", ts)
	}
}

func TestNewFrame_RoundTrip(t *testing.T) {
	data, err := NewFrame(TypePresenceUpdate, Presence{UserID: "u1", Status: StatusOnline, IsOnline: true})
	if err != nil {
		t.Fatalf("NewFrame returned error: %v", err)
	}

	ev, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode of own frame failed: %v", err)
	}
	p := ev.Data.(Presence)
	if p.UserID != "u1" || p.Status != StatusOnline || !p.IsOnline {
		t.Errorf("unexpected payload after round trip: %+v", p)
	}
}

func TestNewPingFrame(t *testing.T) {
	var env Envelope
	if err := json.Unmarshal(NewPingFrame(), &env); err != nil {
		t.Fatalf("ping frame is not valid JSON: %v", err)
	}
	if env.Type != TypePing {
		t.Errorf("Type = %q, want %q", env.Type, TypePing)
	}
	if env.Timestamp == "" {
		t.Error("ping frame should carry a timestamp")
	}
}
