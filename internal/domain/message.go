package domain

import "time"

// Message is a chat message belonging to exactly one room.
// A deleted message is a tombstone: its content is redacted by the server
// but it keeps its position in the room history.
type Message struct {
	ID        string    `json:"_id"`
	RoomID    string    `json:"room_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created"`
	Edited    bool      `json:"edited,omitempty"`
	Deleted   bool      `json:"deleted,omitempty"`
}

// MessageEdit is the edit record returned by the edit endpoint and relayed
// to the counterpart over the event channel.
type MessageEdit struct {
	MessageID string `json:"message_id"`
	RoomID    string `json:"room_id,omitempty"`
	Content   string `json:"content"`
}

// OutgoingMessage is the message body of a send_message event.
type OutgoingMessage struct {
	RoomID  string `json:"room_id"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
}
