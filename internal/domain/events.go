package domain

import (
	"encoding/json"
	"fmt"
)

// Event types sent to the chat service.
const (
	EventJoinRoom    = "join_room"
	EventSendMessage = "send_message"
)

// Event types received from the chat service. edit_message, delete_message
// and new_room are also sent, relayed by the server to the counterpart.
const (
	EventReceiveMessage = "receive_message"
	EventEditMessage    = "edit_message"
	EventDeleteMessage  = "delete_message"
	EventNewRoom        = "new_room"
)

// Envelope is the frame of every event on the persistent channel.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into a typed frame.
func NewEnvelope(eventType string, payload interface{}) (*Envelope, error) {
	env := &Envelope{Type: eventType}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	env.Data = data
	return env, nil
}

// Outbound payloads

type SendMessagePayload struct {
	RoomID  string          `json:"room_id"`
	Message OutgoingMessage `json:"message"`
}

// RelayPayload addresses data to the delivery room of another user.
type RelayPayload struct {
	RoomID string      `json:"room_id"`
	Data   interface{} `json:"data"`
}

// Event is an inbound event decoded into one of its variants.
type Event interface {
	EventType() string
}

type ReceiveMessageEvent struct {
	Message Message
}

type EditMessageEvent struct {
	Edit MessageEdit
}

type DeleteMessageEvent struct {
	Message Message
}

// NewRoomEvent is a bare room id notification.
type NewRoomEvent struct {
	RoomID string
}

func (ReceiveMessageEvent) EventType() string { return EventReceiveMessage }
func (EditMessageEvent) EventType() string    { return EventEditMessage }
func (DeleteMessageEvent) EventType() string  { return EventDeleteMessage }
func (NewRoomEvent) EventType() string        { return EventNewRoom }

// InboundEventTypes lists every event type DecodeEvent understands.
var InboundEventTypes = []string{
	EventReceiveMessage,
	EventEditMessage,
	EventDeleteMessage,
	EventNewRoom,
}

// DecodeEvent turns the data of an inbound frame into its typed variant.
func DecodeEvent(eventType string, data []byte) (Event, error) {
	switch eventType {
	case EventReceiveMessage:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", eventType, err)
		}
		return ReceiveMessageEvent{Message: msg}, nil

	case EventEditMessage:
		var edit MessageEdit
		if err := json.Unmarshal(data, &edit); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", eventType, err)
		}
		return EditMessageEvent{Edit: edit}, nil

	case EventDeleteMessage:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", eventType, err)
		}
		return DeleteMessageEvent{Message: msg}, nil

	case EventNewRoom:
		roomID, err := decodeRoomID(data)
		if err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", eventType, err)
		}
		return NewRoomEvent{RoomID: roomID}, nil

	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
}

// decodeRoomID accepts a bare JSON string or a room-like object.
func decodeRoomID(data []byte) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		if id == "" {
			return "", fmt.Errorf("empty room id")
		}
		return id, nil
	}

	var obj struct {
		ID     string `json:"_id"`
		RoomID string `json:"room_id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", err
	}
	if obj.ID != "" {
		return obj.ID, nil
	}
	if obj.RoomID != "" {
		return obj.RoomID, nil
	}
	return "", fmt.Errorf("empty room id")
}
