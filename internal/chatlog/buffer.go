// Package chatlog keeps an in-memory tail of recent messages per dialog,
// fed from the event bus. It backs quick dialog previews and scrollback
// without any persistence.
package chatlog

import (
	"sync"

	"github.com/minitel/chat-client/internal/bus"
	"github.com/minitel/chat-client/internal/protocol"
)

// DefaultCapacity is the number of recent messages retained per dialog.
const DefaultCapacity = 50

// Buffer stores the last N messages per dialog in memory.
// It is goroutine-safe and uses a ring buffer internally.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	dialogs  map[string]*ring // dialogID -> ring buffer
	sub      *bus.Subscription
}

// ring is a fixed-size circular buffer of messages.
type ring struct {
	items []protocol.Message
	pos   int
	count int
}

// NewBuffer creates an empty Buffer. A capacity of 0 or less falls back to
// DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity: capacity,
		dialogs:  make(map[string]*ring),
	}
}

// Attach subscribes the buffer to message and dialog events on the bus.
func (b *Buffer) Attach(events *bus.Bus) {
	b.sub = events.Subscribe(b.apply,
		protocol.TypeMessageNew,
		protocol.TypeMessageEdit,
		protocol.TypeMessageDelete,
		protocol.TypeDialogDelete,
	)
}

// Detach removes the bus subscription. The buffered messages remain.
func (b *Buffer) Detach() {
	if b.sub != nil {
		b.sub.Unsubscribe()
		b.sub = nil
	}
}

func (b *Buffer) apply(ev protocol.Event) {
	switch payload := ev.Data.(type) {
	case protocol.Message:
		if ev.Type == protocol.TypeMessageEdit {
			b.Edit(payload)
		} else {
			b.Add(payload)
		}
	case protocol.MessageDelete:
		b.Delete(payload.DialogID, payload.MessageID)
	case protocol.Dialog:
		if ev.Type == protocol.TypeDialogDelete {
			b.Remove(payload.ID)
		}
	}
}

// Add appends a message to its dialog's ring buffer. If the buffer is full,
// the oldest message is overwritten.
func (b *Buffer) Add(msg protocol.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rb, ok := b.dialogs[msg.DialogID]
	if !ok {
		rb = &ring{items: make([]protocol.Message, b.capacity)}
		b.dialogs[msg.DialogID] = rb
	}

	rb.items[rb.pos] = msg
	rb.pos = (rb.pos + 1) % b.capacity
	if rb.count < b.capacity {
		rb.count++
	}
}

// Edit replaces the buffered copy of a message in place, matched by ID.
// A no-op when the message has already rotated out of the buffer.
func (b *Buffer) Edit(msg protocol.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rb, ok := b.dialogs[msg.DialogID]
	if !ok {
		return
	}
	for i := 0; i < rb.count; i++ {
		idx := b.indexOf(rb, i)
		if rb.items[idx].ID == msg.ID {
			rb.items[idx] = msg
			return
		}
	}
}

// Delete removes a message from its dialog's buffer, matched by ID,
// compacting the remaining entries.
func (b *Buffer) Delete(dialogID, messageID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rb, ok := b.dialogs[dialogID]
	if !ok {
		return
	}

	kept := make([]protocol.Message, 0, rb.count)
	for i := 0; i < rb.count; i++ {
		m := rb.items[b.indexOf(rb, i)]
		if m.ID != messageID {
			kept = append(kept, m)
		}
	}
	if len(kept) == rb.count {
		return
	}

	rb.items = make([]protocol.Message, b.capacity)
	copy(rb.items, kept)
	rb.pos = len(kept) % b.capacity
	rb.count = len(kept)
}

// Messages returns a dialog's buffered messages in chronological order
// (oldest first). Returns an empty slice for an unknown dialog.
func (b *Buffer) Messages(dialogID string) []protocol.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rb, ok := b.dialogs[dialogID]
	if !ok {
		return []protocol.Message{}
	}

	result := make([]protocol.Message, rb.count)
	for i := 0; i < rb.count; i++ {
		result[i] = rb.items[b.indexOf(rb, i)]
	}
	return result
}

// Remove deletes the buffer for a dialog (called when the dialog is deleted).
func (b *Buffer) Remove(dialogID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.dialogs, dialogID)
}

// indexOf maps a chronological offset (0 = oldest) to a slot in the ring.
func (b *Buffer) indexOf(rb *ring, i int) int {
	start := (rb.pos - rb.count + b.capacity) % b.capacity
	return (start + i) % b.capacity
}
