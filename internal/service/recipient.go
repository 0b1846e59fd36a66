package service

import (
	"context"
	"fmt"

	"github.com/weiawesome/wes-io-live/chat-sync/internal/audit"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-sync/pkg/log"
)

// resolveRecipient makes sure a dm room with the configured recipient exists
// and selects it. A room created here is queued for announcement to the
// recipient once the event channel is up.
func (e *syncEngine) resolveRecipient(ctx context.Context) error {
	_, recipient := e.session.Identity()
	if recipient == nil || recipient.ID == "" {
		return nil
	}
	ctx = log.WithLogger(ctx, log.Ctx(ctx).With().Str(log.FieldRecipientID, recipient.ID).Logger())

	if room, ok := e.rooms.FindByRecipient(recipient.ID); ok {
		e.selectResolved(ctx, room)
		return nil
	}

	_, err, _ := e.sf.Do(recipient.ID, func() (interface{}, error) {
		return nil, e.createRoom(ctx, recipient.ID)
	})
	return err
}

// createRoom creates the dm room with recipientID unless a concurrent
// resolution already cached it, reloads rooms and selects the new room.
func (e *syncEngine) createRoom(ctx context.Context, recipientID string) error {
	if room, ok := e.rooms.FindByRecipient(recipientID); ok {
		e.selectResolved(ctx, room)
		return nil
	}

	selfID := e.session.SelfID()
	raw, err := e.api.CreateRoom(ctx, domain.CreateRoomRequest{UserID: selfID, RecipientID: recipientID, AppID: e.appID})
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	audit.Log(ctx, audit.ActionCreateRoom, selfID, raw.ID, "dm room created")

	e.mu.Lock()
	e.announce = append(e.announce, newRoomNotice{recipientID: recipientID, roomID: raw.ID})
	e.mu.Unlock()

	if err := e.ReloadRooms(ctx); err != nil {
		return err
	}

	room, ok := e.rooms.Get(raw.ID)
	if !ok {
		room, ok = e.rooms.FindByRecipient(recipientID)
	}
	if !ok {
		l := log.Ctx(ctx)
		l.Warn().Str(log.FieldRoomID, raw.ID).Msg("created room missing from reloaded room list")
		return nil
	}

	e.selectResolved(ctx, room)
	return nil
}

// selectResolved selects the recipient room unless the layout is narrow or
// the counterpart is blocked.
func (e *syncEngine) selectResolved(ctx context.Context, room domain.Room) {
	l := log.Ctx(ctx)
	if e.viewport.IsNarrow() {
		l.Debug().Str(log.FieldRoomID, room.ID).Msg("narrow viewport, not selecting recipient room")
		return
	}
	if room.Blocked {
		l.Debug().Str(log.FieldRoomID, room.ID).Msg("recipient blocked, not selecting room")
		return
	}
	if err := e.SelectRoom(ctx, room.ID); err != nil {
		l.Warn().Err(err).Str(log.FieldRoomID, room.ID).Msg("failed to select recipient room")
	}
}

// newRoomNotice is a created room not yet announced to its recipient.
type newRoomNotice struct {
	recipientID string
	roomID      string
}

// announceRooms tells the recipients' live clients about rooms created here.
// Notices that cannot be sent are kept for the next connection.
func (e *syncEngine) announceRooms(ctx context.Context) {
	e.mu.Lock()
	pending := e.announce
	e.announce = nil
	e.mu.Unlock()

	for i, n := range pending {
		payload := domain.RelayPayload{RoomID: n.recipientID, Data: n.roomID}
		if err := e.emit(ctx, domain.EventNewRoom, payload); err != nil {
			e.report(ctx, err, "failed to announce new room")
			e.mu.Lock()
			e.announce = append(pending[i:], e.announce...)
			e.mu.Unlock()
			return
		}
	}
}
