package domain

import "encoding/json"

// APIResponse is the envelope of every chat service response.
type APIResponse struct {
	Status  bool            `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Requests

type ConfigRequest struct {
	AppID      string `json:"app_id"`
	DomainName string `json:"domain_name"`
}

type TokenConfigRequest struct {
	Token  string `json:"token"`
	AppID  string `json:"app_id"`
	Domain string `json:"domain"`
}

type InitUsersRequest struct {
	AppID     string     `json:"app_id"`
	User      EmbedUser  `json:"user"`
	Recipient *EmbedUser `json:"recipient"`
}

type UserRoomsRequest struct {
	UserID string `json:"user_id"`
	AppID  string `json:"app_id"`
}

type CreateRoomRequest struct {
	UserID      string `json:"user_id"`
	RecipientID string `json:"recipient_id"`
	AppID       string `json:"app_id"`
}

type RoomDetailsRequest struct {
	UserID string `json:"user_id"`
	RoomID string `json:"room_id"`
}

type EditMessageRequest struct {
	UserID    string `json:"user_id"`
	AppID     string `json:"app_id"`
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

type DeleteMessageRequest struct {
	UserID       string `json:"user_id"`
	MessageID    string `json:"message_id"`
	DeleteForAll bool   `json:"delete_for_all"`
}

type LastSeenRequest struct {
	UserID string `json:"user_id"`
	RoomID string `json:"room_id"`
	AppID  string `json:"app_id"`
}

// Results

// DecodedToken holds the identities carried by a bearer token.
type DecodedToken struct {
	User      User  `json:"user"`
	Recipient *User `json:"recipient,omitempty"`
}

type TokenConfig struct {
	Decoded   DecodedToken    `json:"decoded"`
	AppConfig json.RawMessage `json:"app_config"`
}

// InitUsersResult carries the server-canonical identities.
type InitUsersResult struct {
	User      User  `json:"user"`
	Recipient *User `json:"recipient,omitempty"`
}
