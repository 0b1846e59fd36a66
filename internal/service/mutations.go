package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/weiawesome/wes-io-live/chat-sync/internal/audit"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-sync/pkg/log"
)

func (e *syncEngine) SelectRoom(ctx context.Context, roomID string) error {
	ctx = log.WithRoom(e.scoped(ctx), roomID)
	if _, ok := e.rooms.Get(roomID); !ok {
		return domain.ErrRoomNotFound
	}

	e.mu.Lock()
	changed := e.session.Select(roomID)
	if changed {
		e.messages.Load(roomID, nil)
	}
	e.mu.Unlock()

	if !changed {
		return nil
	}

	audit.Log(ctx, audit.ActionSelectRoom, e.session.SelfID(), roomID, "room selected")
	return e.MarkRoomAsRead(ctx, roomID)
}

func (e *syncEngine) SetMessages(roomID string, msgs []domain.Message) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.session.IsSelected(roomID) {
		l := e.logger
		l.Debug().Str(log.FieldRoomID, roomID).Msg("discarding history of a room no longer selected")
		return false
	}
	e.messages.Load(roomID, msgs)
	return true
}

func (e *syncEngine) IncrementUnread(roomID string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rooms.IncrementUnread(roomID)
}

// MarkRoomAsRead zeroes the unread count and notifies the server on every
// call, even when the count was already zero.
func (e *syncEngine) MarkRoomAsRead(ctx context.Context, roomID string) error {
	ctx = e.scoped(ctx)

	e.mu.Lock()
	err := e.rooms.MarkRead(roomID)
	e.mu.Unlock()
	if errors.Is(err, domain.ErrRoomNotFound) {
		l := log.Ctx(ctx)
		l.Debug().Str(log.FieldRoomID, roomID).Msg("marking a room not in cache as read")
	}

	if err := e.notifyLastSeen(ctx, roomID); err != nil {
		return err
	}
	audit.Log(ctx, audit.ActionMarkRead, e.session.SelfID(), roomID, "room marked read")
	return nil
}

func (e *syncEngine) notifyLastSeen(ctx context.Context, roomID string) error {
	err := e.api.UpdateLastSeen(ctx, domain.LastSeenRequest{UserID: e.session.SelfID(), RoomID: roomID, AppID: e.appID})
	if err != nil {
		e.report(ctx, err, "failed to update last seen")
	}
	return err
}

// SendMessage emits the message and relies on the server echo to append it.
func (e *syncEngine) SendMessage(ctx context.Context, roomID, content string) error {
	ctx = e.scoped(ctx)
	if err := e.requireSession(); err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return domain.ErrEmptyContent
	}

	selfID := e.session.SelfID()
	payload := domain.SendMessagePayload{
		RoomID: roomID,
		Message: domain.OutgoingMessage{
			RoomID:  roomID,
			Sender:  selfID,
			Content: content,
		},
	}
	if err := e.emit(ctx, domain.EventSendMessage, payload); err != nil {
		e.report(ctx, err, "failed to send message")
		return err
	}

	audit.Log(ctx, audit.ActionSendMessage, selfID, roomID, "message sent")
	return nil
}

func (e *syncEngine) EditMessage(ctx context.Context, msg domain.Message, counterpartID string) error {
	ctx = e.scoped(ctx)
	if err := e.requireSession(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.Content) == "" {
		return domain.ErrEmptyContent
	}

	selfID := e.session.SelfID()
	edit, err := e.api.EditMessage(ctx, domain.EditMessageRequest{
		UserID:    selfID,
		AppID:     e.appID,
		MessageID: msg.ID,
		Content:   msg.Content,
	})
	if err != nil {
		e.report(ctx, err, "failed to edit message")
		return err
	}
	if edit.RoomID == "" {
		edit.RoomID = msg.RoomID
	}

	e.applyEdit(*edit)
	audit.Log(ctx, audit.ActionEditMessage, selfID, edit.MessageID, "message edited")

	return e.relay(ctx, domain.EventEditMessage, msg.RoomID, counterpartID, edit)
}

func (e *syncEngine) DeleteMessage(ctx context.Context, msg domain.Message, deleteForEveryone bool, counterpartID string) error {
	ctx = e.scoped(ctx)
	if err := e.requireSession(); err != nil {
		return err
	}

	selfID := e.session.SelfID()
	tomb, err := e.api.DeleteMessage(ctx, domain.DeleteMessageRequest{
		UserID:       selfID,
		MessageID:    msg.ID,
		DeleteForAll: deleteForEveryone,
	})
	if err != nil {
		e.report(ctx, err, "failed to delete message")
		return err
	}
	if tomb.RoomID == "" {
		tomb.RoomID = msg.RoomID
	}

	e.applyTombstone(*tomb)
	audit.LogWithDetail(ctx, audit.ActionDeleteMessage, selfID, tomb.ID,
		"delete_for_all="+strconv.FormatBool(deleteForEveryone), "message deleted")

	if !deleteForEveryone {
		return nil
	}
	return e.relay(ctx, domain.EventDeleteMessage, msg.RoomID, counterpartID, tomb)
}

// relay forwards data to the counterpart's delivery room. Without an
// explicit counterpart the recipient of the dm room is used; group rooms
// are addressed by their own id.
func (e *syncEngine) relay(ctx context.Context, eventType, roomID, counterpartID string, data interface{}) error {
	if counterpartID == "" {
		counterpartID = e.counterpartOf(roomID)
	}
	if counterpartID == "" {
		l := log.Ctx(ctx)
		l.Warn().Str(log.FieldRoomID, roomID).Str(log.FieldEvent, eventType).Msg("no counterpart to relay to")
		return nil
	}

	if err := e.emit(ctx, eventType, domain.RelayPayload{RoomID: counterpartID, Data: data}); err != nil {
		e.report(ctx, err, "failed to relay "+eventType)
		return err
	}
	return nil
}

func (e *syncEngine) counterpartOf(roomID string) string {
	room, ok := e.rooms.Get(roomID)
	if !ok {
		return ""
	}
	if room.IsDM() {
		if room.Recipient != nil {
			return room.Recipient.ID
		}
		return ""
	}
	return room.ID
}
