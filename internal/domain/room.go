package domain

import "time"

// Room types.
const (
	RoomTypeDM    = "dm"
	RoomTypeGroup = "group"
)

// UnknownUserName is shown for dm rooms whose counterpart is missing.
const UnknownUserName = "Unknown User"

// RoomDetails is the display information of a room.
type RoomDetails struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

// RawRoom is a room record exactly as returned by the chat service.
type RawRoom struct {
	ID            string       `json:"_id"`
	Type          string       `json:"type"`
	Users         []User       `json:"users"`
	UsersMeta     []UserMeta   `json:"users_meta,omitempty"`
	UnreadCount   *int         `json:"unread_count,omitempty"`
	RecentMessage *Message     `json:"recent_message,omitempty"`
	Details       *RoomDetails `json:"details,omitempty"`
	CreatedAt     time.Time    `json:"created"`
	UpdatedAt     time.Time    `json:"updated"`
}

// Room is the cached, client-side view of a room.
// Users and Participants never contain the session's own user.
type Room struct {
	ID            string
	Type          string
	Participants  []string
	Users         []User
	Recipient     *User
	RecipientMeta *UserMeta
	Blocked       bool
	UnreadCount   int
	RecentMessage *Message
	Details       RoomDetails
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsDM reports whether the room is a two-participant conversation.
func (r *Room) IsDM() bool {
	return r.Type == RoomTypeDM
}

// Clone returns a copy that shares no mutable state with r.
func (r Room) Clone() Room {
	out := r
	out.Participants = append([]string(nil), r.Participants...)
	out.Users = append([]User(nil), r.Users...)
	if r.Recipient != nil {
		recipient := *r.Recipient
		out.Recipient = &recipient
	}
	if r.RecipientMeta != nil {
		meta := *r.RecipientMeta
		out.RecipientMeta = &meta
	}
	if r.RecentMessage != nil {
		msg := *r.RecentMessage
		out.RecentMessage = &msg
	}
	return out
}
