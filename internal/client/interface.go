package client

import (
	"context"
	"encoding/json"

	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
)

// Endpoint paths of the chat service.
const (
	EndpointConfig         = "/teemboom_config"
	EndpointTokenConfig    = "/teemboom_token_config"
	EndpointInitUsers      = "/init_users"
	EndpointGetUserRooms   = "/get_user_rooms"
	EndpointCreateRoom     = "/create_room"
	EndpointGetRoomDetails = "/get_room_details"
	EndpointEditMessage    = "/edit_message"
	EndpointDeleteMessage  = "/delete_message"
	EndpointUpdateLastSeen = "/update_last_seen"
)

// API is the request/response side of the chat service.
// Failures are returned as *domain.TransportError, or *domain.ConfigurationError
// for the two configuration endpoints. Nothing is retried.
type API interface {
	LoadConfig(ctx context.Context, req domain.ConfigRequest) (json.RawMessage, error)
	LoadTokenConfig(ctx context.Context, req domain.TokenConfigRequest) (*domain.TokenConfig, error)
	InitUsers(ctx context.Context, req domain.InitUsersRequest) (*domain.InitUsersResult, error)
	GetUserRooms(ctx context.Context, req domain.UserRoomsRequest) ([]domain.RawRoom, error)
	CreateRoom(ctx context.Context, req domain.CreateRoomRequest) (*domain.RawRoom, error)
	GetRoomDetails(ctx context.Context, req domain.RoomDetailsRequest) (*domain.RawRoom, error)
	EditMessage(ctx context.Context, req domain.EditMessageRequest) (*domain.MessageEdit, error)
	DeleteMessage(ctx context.Context, req domain.DeleteMessageRequest) (*domain.Message, error)
	UpdateLastSeen(ctx context.Context, req domain.LastSeenRequest) error
}
