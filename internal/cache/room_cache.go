package cache

import (
	"sync"

	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
)

// RoomCache holds the session's rooms in display order, most recent first.
// Rooms are keyed by id; every mutation is a last-write-wins rewrite of one
// room. Callers always receive copies.
type RoomCache struct {
	mu    sync.RWMutex
	rooms []domain.Room
	index map[string]int
}

func NewRoomCache() *RoomCache {
	return &RoomCache{index: make(map[string]int)}
}

// Replace swaps the whole cache for rooms, keeping their order. A room id
// listed twice keeps its first position and its last value.
func (c *RoomCache) Replace(rooms []domain.Room) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rooms = make([]domain.Room, 0, len(rooms))
	c.index = make(map[string]int, len(rooms))
	for _, r := range rooms {
		if i, ok := c.index[r.ID]; ok {
			c.rooms[i] = r.Clone()
			continue
		}
		c.index[r.ID] = len(c.rooms)
		c.rooms = append(c.rooms, r.Clone())
	}
}

// Prepend puts room at the top. A room already cached is replaced in place
// and false is returned.
func (c *RoomCache) Prepend(room domain.Room) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[room.ID]; ok {
		c.rooms[i] = room.Clone()
		return false
	}

	c.rooms = append([]domain.Room{room.Clone()}, c.rooms...)
	c.reindex()
	return true
}

func (c *RoomCache) Get(roomID string) (domain.Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[roomID]
	if !ok {
		return domain.Room{}, false
	}
	return c.rooms[i].Clone(), true
}

// FindByRecipient returns the dm room whose counterpart is recipientID.
func (c *RoomCache) FindByRecipient(recipientID string) (domain.Room, bool) {
	if recipientID == "" {
		return domain.Room{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, r := range c.rooms {
		if r.IsDM() && r.Recipient != nil && r.Recipient.ID == recipientID {
			return r.Clone(), true
		}
	}
	return domain.Room{}, false
}

// IncrementUnread adds one to the room's unread count and returns the new value.
func (c *RoomCache) IncrementUnread(roomID string) (int, error) {
	var n int
	err := c.update(roomID, func(r *domain.Room) {
		r.UnreadCount++
		n = r.UnreadCount
	})
	return n, err
}

// MarkRead zeroes the room's unread count.
func (c *RoomCache) MarkRead(roomID string) error {
	return c.update(roomID, func(r *domain.Room) {
		r.UnreadCount = 0
	})
}

// SetRecentMessage records msg as the room's latest message.
func (c *RoomCache) SetRecentMessage(roomID string, msg domain.Message) error {
	return c.update(roomID, func(r *domain.Room) {
		m := msg
		r.RecentMessage = &m
		if msg.CreatedAt.After(r.UpdatedAt) {
			r.UpdatedAt = msg.CreatedAt
		}
	})
}

func (c *RoomCache) List() []domain.Room {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Room, len(c.rooms))
	for i, r := range c.rooms {
		out[i] = r.Clone()
	}
	return out
}

func (c *RoomCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms)
}

func (c *RoomCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms = nil
	c.index = make(map[string]int)
}

func (c *RoomCache) update(roomID string, fn func(*domain.Room)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	fn(&c.rooms[i])
	return nil
}

func (c *RoomCache) reindex() {
	c.index = make(map[string]int, len(c.rooms))
	for i, r := range c.rooms {
		c.index[r.ID] = i
	}
}
