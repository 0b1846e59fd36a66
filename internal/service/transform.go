package service

import (
	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
)

// TransformRoom normalizes a room record from the chat service into its
// cached form as seen by selfID. It expects the raw server shape only and is
// never applied to cached rooms.
func TransformRoom(raw domain.RawRoom, selfID string) domain.Room {
	room := domain.Room{
		ID:        raw.ID,
		Type:      raw.Type,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}
	if room.Type == "" {
		room.Type = inferRoomType(raw)
	}

	for _, u := range raw.Users {
		if u.ID == selfID {
			continue
		}
		room.Users = append(room.Users, u)
		room.Participants = append(room.Participants, u.ID)
	}

	if raw.UnreadCount != nil && *raw.UnreadCount > 0 {
		room.UnreadCount = *raw.UnreadCount
	}
	if raw.RecentMessage != nil {
		msg := *raw.RecentMessage
		room.RecentMessage = &msg
	}
	if raw.Details != nil {
		room.Details = *raw.Details
	}

	if !room.IsDM() {
		return room
	}

	if len(room.Users) > 0 {
		recipient := room.Users[0]
		room.Recipient = &recipient
		for _, m := range raw.UsersMeta {
			if m.UserID == recipient.ID {
				meta := m
				room.RecipientMeta = &meta
				room.Blocked = m.Blocked
				break
			}
		}
	}

	if raw.Details == nil {
		room.Details.Name = domain.UnknownUserName
		if room.Recipient != nil {
			if room.Recipient.Username != "" {
				room.Details.Name = room.Recipient.Username
			}
			room.Details.ImageURL = room.Recipient.ProfilePic
		}
	}
	return room
}

// inferRoomType covers records that predate the type field: two members
// or fewer make a dm.
func inferRoomType(raw domain.RawRoom) string {
	if raw.Details == nil && len(raw.Users) <= 2 {
		return domain.RoomTypeDM
	}
	return domain.RoomTypeGroup
}
