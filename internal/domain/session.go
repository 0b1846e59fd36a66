package domain

import (
	"encoding/json"
	"sync"
	"time"
)

// State is a step of the initialization protocol.
type State int

const (
	StateUninitialized State = iota
	StateConfigLoading
	StateUsersInitializing
	StateRoomsLoading
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateConfigLoading:
		return "CONFIG_LOADING"
	case StateUsersInitializing:
		return "USERS_INITIALIZING"
	case StateRoomsLoading:
		return "ROOMS_LOADING"
	case StateConnected:
		return "CONNECTED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Session is the client session of one widget instance.
type Session struct {
	Self           User
	Recipient      *User
	Authenticated  bool
	SelectedRoomID string
	State          State
	AppConfig      json.RawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
	mu             sync.RWMutex
}

func NewSession(self User, recipient *User) *Session {
	now := time.Now()
	return &Session{
		Self:      self,
		Recipient: recipient,
		State:     StateUninitialized,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetIdentity replaces self and recipient, e.g. with server-canonical versions.
func (s *Session) SetIdentity(self User, recipient *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Self = self
	s.Recipient = recipient
	s.UpdatedAt = time.Now()
}

func (s *Session) Identity() (User, *User) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Recipient == nil {
		return s.Self, nil
	}
	recipient := *s.Recipient
	return s.Self, &recipient
}

func (s *Session) SelfID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Self.ID
}

func (s *Session) SetAppConfig(cfg json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AppConfig = cfg
	s.UpdatedAt = time.Now()
}

func (s *Session) GetAppConfig() json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.AppConfig
}

func (s *Session) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
	if state != StateConnected {
		s.Authenticated = false
	}
	s.UpdatedAt = time.Now()
}

func (s *Session) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State
}

// Authenticate marks the session connected and usable.
func (s *Session) Authenticate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = StateConnected
	s.Authenticated = true
	s.UpdatedAt = time.Now()
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Authenticated
}

// Select points the session at roomID. It returns false when roomID is
// already selected.
func (s *Session) Select(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SelectedRoomID == roomID {
		return false
	}
	s.SelectedRoomID = roomID
	s.UpdatedAt = time.Now()
	return true
}

func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SelectedRoomID = ""
	s.UpdatedAt = time.Now()
}

func (s *Session) GetSelectedRoom() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SelectedRoomID
}

func (s *Session) IsSelected(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return roomID != "" && s.SelectedRoomID == roomID
}
