package service

import (
	"context"
	"errors"
	"runtime"

	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/transport"
	"github.com/weiawesome/wes-io-live/chat-sync/pkg/log"
)

// eventHandler decodes the inbound events of one type and reconciles them.
func (e *syncEngine) eventHandler(eventType string) transport.Handler {
	return func(ctx context.Context, data []byte) {
		ctx = e.scoped(ctx)
		ev, err := domain.DecodeEvent(eventType, data)
		if err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldEvent, eventType).Msg("dropping undecodable event")
			return
		}
		if err := e.Reconcile(ctx, ev); err != nil {
			e.report(ctx, err, "failed to reconcile "+eventType)
		}
	}
}

func (e *syncEngine) Reconcile(ctx context.Context, ev domain.Event) error {
	switch ev := ev.(type) {
	case domain.ReceiveMessageEvent:
		return e.receiveMessage(ctx, ev.Message)
	case domain.EditMessageEvent:
		e.applyEdit(ev.Edit)
		return nil
	case domain.DeleteMessageEvent:
		e.applyTombstone(ev.Message)
		return nil
	case domain.NewRoomEvent:
		return e.adoptRoom(ctx, ev.RoomID)
	default:
		l := log.Ctx(ctx)
		l.Warn().Str(log.FieldEvent, eventTypeOf(ev)).Msg("ignoring unhandled event")
		return nil
	}
}

func eventTypeOf(ev domain.Event) string {
	if ev == nil {
		return ""
	}
	return ev.EventType()
}

// receiveMessage appends a message to the selected room, or counts it as
// unread in any other room.
func (e *syncEngine) receiveMessage(ctx context.Context, msg domain.Message) error {
	e.mu.Lock()
	selected := e.session.IsSelected(msg.RoomID)
	if selected {
		e.messages.Append(msg)
	}
	err := e.rooms.SetRecentMessage(msg.RoomID, msg)
	if err == nil && !selected {
		_, err = e.rooms.IncrementUnread(msg.RoomID)
	}
	e.mu.Unlock()

	if errors.Is(err, domain.ErrRoomNotFound) {
		l := log.Ctx(ctx)
		l.Debug().Str(log.FieldRoomID, msg.RoomID).Str(log.FieldMessageID, msg.ID).Msg("message for a room not in cache")
	}

	if !selected {
		return nil
	}

	// Let the presentation layer settle before it measures the viewport.
	runtime.Gosched()
	e.presenter.ScrollToBottom(msg.RoomID)

	return e.notifyLastSeen(ctx, msg.RoomID)
}

func (e *syncEngine) applyEdit(edit domain.MessageEdit) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.messages.UpdateContent(edit.MessageID, edit.Content)

	if edit.RoomID == "" {
		return
	}
	if room, ok := e.rooms.Get(edit.RoomID); ok && room.RecentMessage != nil && room.RecentMessage.ID == edit.MessageID {
		recent := *room.RecentMessage
		recent.Content = edit.Content
		recent.Edited = true
		e.rooms.SetRecentMessage(edit.RoomID, recent)
	}
}

func (e *syncEngine) applyTombstone(msg domain.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.messages.ReplaceMessage(msg)

	if room, ok := e.rooms.Get(msg.RoomID); ok && room.RecentMessage != nil && room.RecentMessage.ID == msg.ID {
		e.rooms.SetRecentMessage(msg.RoomID, msg)
	}
}

// adoptRoom fetches a room announced by another client and puts it on top.
// A room already cached is refreshed in place.
func (e *syncEngine) adoptRoom(ctx context.Context, roomID string) error {
	ctx = log.WithRoom(ctx, roomID)
	selfID := e.session.SelfID()

	raw, err := e.api.GetRoomDetails(ctx, domain.RoomDetailsRequest{UserID: selfID, RoomID: roomID})
	if err != nil {
		return err
	}
	room := TransformRoom(*raw, selfID)

	e.mu.Lock()
	inserted := e.rooms.Prepend(room)
	e.mu.Unlock()

	l := log.Ctx(ctx)
	l.Info().Bool("inserted", inserted).Msg("room adopted")
	return nil
}
