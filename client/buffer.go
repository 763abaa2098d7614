package client

import (
	"sort"

	"github.com/google/uuid"

	"reef-chat/domain/chat"
)

// Buffer is the rendered window of one room's history: ordered by
// CreatedAt, deduplicated by id. Only the Engine mutates it.
type Buffer struct {
	messages []chat.Message
	ids      map[uuid.UUID]struct{}
}

func NewBuffer() *Buffer {
	return &Buffer{ids: make(map[uuid.UUID]struct{})}
}

func (b *Buffer) Len() int {
	return len(b.messages)
}

// Messages returns a copy of the ordered window.
func (b *Buffer) Messages() []chat.Message {
	out := make([]chat.Message, len(b.messages))
	copy(out, b.messages)
	return out
}

func (b *Buffer) Contains(id uuid.UUID) bool {
	_, ok := b.ids[id]
	return ok
}

// Oldest returns the first buffered message, the pagination cursor source.
func (b *Buffer) Oldest() (chat.Message, bool) {
	if len(b.messages) == 0 {
		return chat.Message{}, false
	}
	return b.messages[0], true
}

// Append adds one message at the end if its id is new. Reports whether
// the buffer changed. Callers use it for live events, which arrive in
// creation order.
func (b *Buffer) Append(m chat.Message) bool {
	if b.Contains(m.ID) {
		return false
	}
	b.ids[m.ID] = struct{}{}
	b.messages = append(b.messages, m)
	return true
}

// Merge folds a fetched page into the window: unseen ids are inserted and
// the whole window is re-sorted by CreatedAt. Returns how many messages
// were actually added.
func (b *Buffer) Merge(page []chat.Message) int {
	added := 0
	for _, m := range page {
		if b.Contains(m.ID) {
			continue
		}
		b.ids[m.ID] = struct{}{}
		b.messages = append(b.messages, m)
		added++
	}
	if added > 0 {
		sort.SliceStable(b.messages, func(i, j int) bool {
			return b.messages[i].CreatedAt.Before(b.messages[j].CreatedAt)
		})
	}
	return added
}

// Remove filters a deleted message out. Applying it twice is a no-op, so
// a duplicate removed event cannot corrupt the window.
func (b *Buffer) Remove(id uuid.UUID) bool {
	if !b.Contains(id) {
		return false
	}
	delete(b.ids, id)
	for i, m := range b.messages {
		if m.ID == id {
			b.messages = append(b.messages[:i], b.messages[i+1:]...)
			break
		}
	}
	return true
}
