package service

import (
	"context"
	"encoding/json"

	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
)

// SyncEngine keeps the local room and message caches of one chat session in
// step with the chat service.
type SyncEngine interface {
	// Init runs the initialization protocol up to CONNECTED. On failure the
	// session is left FAILED and Init may be called again.
	Init(ctx context.Context, opts InitOptions) error
	// SwitchIdentity replaces self and recipient and re-initializes from scratch.
	SwitchIdentity(ctx context.Context, self domain.User, recipient *domain.User) error
	// ReloadRooms refetches the room list and replaces the Room Cache. A
	// selected room that is still listed is marked read and its history
	// reload is requested from the Presenter; otherwise it is deselected.
	ReloadRooms(ctx context.Context) error
	// Reconcile applies one inbound event to the caches.
	Reconcile(ctx context.Context, ev domain.Event) error

	SelectRoom(ctx context.Context, roomID string) error
	// SetMessages loads the history of roomID. It is ignored, returning
	// false, when roomID is no longer selected.
	SetMessages(roomID string, msgs []domain.Message) bool
	MarkRoomAsRead(ctx context.Context, roomID string) error
	IncrementUnread(roomID string) (int, error)

	SendMessage(ctx context.Context, roomID, content string) error
	// EditMessage persists msg.Content as the new content of msg.ID.
	// counterpartID addresses the relay; empty derives it from the dm room.
	EditMessage(ctx context.Context, msg domain.Message, counterpartID string) error
	DeleteMessage(ctx context.Context, msg domain.Message, deleteForEveryone bool, counterpartID string) error

	State() domain.State
	Identity() (domain.User, *domain.User)
	AppConfig() json.RawMessage
	SelectedRoom() string
	Rooms() []domain.Room
	Room(roomID string) (domain.Room, bool)
	Messages() []domain.Message

	Close() error
}

// InitOptions tune one Init run.
type InitOptions struct {
	// Reset clears the caches and the selection before rooms are loaded.
	Reset bool
}

// Presenter receives the side effects meant for the UI layer.
type Presenter interface {
	// ScrollToBottom is invoked after a message was appended to the
	// selected room.
	ScrollToBottom(roomID string)
	// ReloadHistory asks for the history of the selected room to be fetched
	// again and handed back through SetMessages.
	ReloadHistory(roomID string)
	ShowError(err error)
}

// Viewport reports the layout class of the host.
type Viewport interface {
	// IsNarrow is true for mobile-width layouts, where no room is
	// auto-selected.
	IsNarrow() bool
}

// StaticViewport classifies a fixed width against a breakpoint.
type StaticViewport struct {
	Width      int
	Breakpoint int
}

func (v StaticViewport) IsNarrow() bool {
	return v.Width > 0 && v.Width <= v.Breakpoint
}

type nopPresenter struct{}

func (nopPresenter) ScrollToBottom(string) {}
func (nopPresenter) ReloadHistory(string)  {}
func (nopPresenter) ShowError(error)       {}
