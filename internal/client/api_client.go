package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-sync/pkg/log"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 8 << 20

// Config holds configuration for an APIClient.
type Config struct {
	// BaseURL of the chat service, e.g. https://chat-api.teemboom.com.
	BaseURL string
	// HTTPClient is used for all requests. When nil a client with Timeout
	// and the logging transport is built.
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// APIClient implements API over HTTP+JSON.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ API = (*APIClient)(nil)

func NewAPIClient(cfg Config) (*APIClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("client: BaseURL is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("client: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: log.NewTransport(nil, cfg.Logger),
		}
	}

	return &APIClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}, nil
}

func (c *APIClient) LoadConfig(ctx context.Context, req domain.ConfigRequest) (json.RawMessage, error) {
	resp, err := c.post(ctx, EndpointConfig, req)
	if err != nil {
		return nil, asConfigurationError(err, "application not initialized; check the app id and that this domain is allowed")
	}
	return resp.Data, nil
}

func (c *APIClient) LoadTokenConfig(ctx context.Context, req domain.TokenConfigRequest) (*domain.TokenConfig, error) {
	resp, err := c.post(ctx, EndpointTokenConfig, req)
	if err != nil {
		return nil, asConfigurationError(err, "token rejected")
	}

	var cfg domain.TokenConfig
	if err := decodeData(EndpointTokenConfig, resp.Data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Decoded.User.IsZero() {
		return nil, &domain.ConfigurationError{Reason: "token carries no user"}
	}
	return &cfg, nil
}

func (c *APIClient) InitUsers(ctx context.Context, req domain.InitUsersRequest) (*domain.InitUsersResult, error) {
	resp, err := c.post(ctx, EndpointInitUsers, req)
	if err != nil {
		return nil, err
	}

	// Identities are returned at the top level of the envelope; newer
	// deployments nest them under data.
	var result domain.InitUsersResult
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			result = domain.InitUsersResult{}
		}
	}
	if result.User.IsZero() {
		if err := decodeData(EndpointInitUsers, resp.raw, &result); err != nil {
			return nil, err
		}
	}
	if result.User.ID == "" {
		return nil, &domain.TransportError{Endpoint: EndpointInitUsers, Message: "response carries no user id"}
	}
	return &result, nil
}

func (c *APIClient) GetUserRooms(ctx context.Context, req domain.UserRoomsRequest) ([]domain.RawRoom, error) {
	resp, err := c.post(ctx, EndpointGetUserRooms, req)
	if err != nil {
		return nil, err
	}
	var rooms []domain.RawRoom
	if err := decodeData(EndpointGetUserRooms, resp.Data, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *APIClient) CreateRoom(ctx context.Context, req domain.CreateRoomRequest) (*domain.RawRoom, error) {
	resp, err := c.post(ctx, EndpointCreateRoom, req)
	if err != nil {
		return nil, err
	}
	var room domain.RawRoom
	if err := decodeData(EndpointCreateRoom, resp.Data, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *APIClient) GetRoomDetails(ctx context.Context, req domain.RoomDetailsRequest) (*domain.RawRoom, error) {
	resp, err := c.post(ctx, EndpointGetRoomDetails, req)
	if err != nil {
		return nil, err
	}
	var room domain.RawRoom
	if err := decodeData(EndpointGetRoomDetails, resp.Data, &room); err != nil {
		return nil, err
	}
	if room.ID == "" {
		return nil, &domain.TransportError{Endpoint: EndpointGetRoomDetails, Message: "response carries no room id"}
	}
	return &room, nil
}

func (c *APIClient) EditMessage(ctx context.Context, req domain.EditMessageRequest) (*domain.MessageEdit, error) {
	resp, err := c.post(ctx, EndpointEditMessage, req)
	if err != nil {
		return nil, err
	}
	var edit domain.MessageEdit
	if err := decodeData(EndpointEditMessage, resp.Data, &edit); err != nil {
		return nil, err
	}
	if edit.MessageID == "" {
		edit.MessageID = req.MessageID
	}
	return &edit, nil
}

func (c *APIClient) DeleteMessage(ctx context.Context, req domain.DeleteMessageRequest) (*domain.Message, error) {
	resp, err := c.post(ctx, EndpointDeleteMessage, req)
	if err != nil {
		return nil, err
	}
	var msg domain.Message
	if err := decodeData(EndpointDeleteMessage, resp.Data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, &domain.TransportError{Endpoint: EndpointDeleteMessage, Message: "response carries no message id"}
	}
	return &msg, nil
}

func (c *APIClient) UpdateLastSeen(ctx context.Context, req domain.LastSeenRequest) error {
	_, err := c.post(ctx, EndpointUpdateLastSeen, req)
	return err
}

// envelope is a decoded response plus its raw body.
type envelope struct {
	domain.APIResponse
	raw []byte
}

// post sends body to endpoint and decodes the {status, data, message}
// envelope. A status of false is returned as a *domain.TransportError.
func (c *APIClient) post(ctx context.Context, endpoint string, body interface{}) (*envelope, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, &domain.TransportError{Endpoint: endpoint, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, &domain.TransportError{Endpoint: endpoint, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(log.HeaderRequestID, uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &domain.TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env.APIResponse); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &domain.TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return nil, &domain.TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	env.raw = raw

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: env.Message}
	}
	if !env.Status {
		msg := env.Message
		if msg == "" {
			msg = "status false"
		}
		return nil, &domain.TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: msg}
	}

	return &env, nil
}

func decodeData(endpoint string, data []byte, v interface{}) error {
	if len(data) == 0 {
		return &domain.TransportError{Endpoint: endpoint, Message: "response carries no data"}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &domain.TransportError{Endpoint: endpoint, Err: fmt.Errorf("failed to decode data: %w", err)}
	}
	return nil
}

// asConfigurationError turns a server-side rejection into a
// *domain.ConfigurationError. Network failures stay transport errors.
func asConfigurationError(err error, reason string) error {
	var te *domain.TransportError
	if errors.As(err, &te) && te.Err == nil {
		if te.Message != "" && te.Message != "status false" {
			reason = reason + ": " + te.Message
		}
		return &domain.ConfigurationError{Reason: reason, Err: err}
	}
	return err
}
