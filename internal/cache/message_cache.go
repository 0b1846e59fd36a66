package cache

import (
	"sync"

	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
)

// MessageCache holds the history of the selected room in arrival order.
type MessageCache struct {
	mu       sync.RWMutex
	roomID   string
	messages []domain.Message
}

func NewMessageCache() *MessageCache {
	return &MessageCache{}
}

// Load replaces the cache with the history of roomID.
func (c *MessageCache) Load(roomID string, msgs []domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
	c.messages = append([]domain.Message(nil), msgs...)
}

// RoomID is the room whose history is loaded, empty when none.
func (c *MessageCache) RoomID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

// Append adds msg at the end. No reordering is performed.
func (c *MessageCache) Append(msg domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

// UpdateContent sets the content of the message with messageID and marks it
// edited. It reports whether the message was found.
func (c *MessageCache) UpdateContent(messageID, content string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.messages {
		if c.messages[i].ID == messageID {
			c.messages[i].Content = content
			c.messages[i].Edited = true
			return true
		}
	}
	return false
}

// ReplaceMessage swaps the message with msg.ID for msg, keeping its position.
func (c *MessageCache) ReplaceMessage(msg domain.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.messages {
		if c.messages[i].ID == msg.ID {
			c.messages[i] = msg
			return true
		}
	}
	return false
}

func (c *MessageCache) Get(messageID string) (domain.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, m := range c.messages {
		if m.ID == messageID {
			return m, true
		}
	}
	return domain.Message{}, false
}

func (c *MessageCache) List() []domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Message(nil), c.messages...)
}

func (c *MessageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Reset discards the loaded history.
func (c *MessageCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = ""
	c.messages = nil
}
