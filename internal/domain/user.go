package domain

// User is a chat identity as known to the chat service.
type User struct {
	ID         string `json:"_id,omitempty"`
	Username   string `json:"username"`
	ProfilePic string `json:"profile_pic,omitempty"`
}

// IsZero reports whether the user carries no identity at all.
func (u *User) IsZero() bool {
	return u == nil || (u.ID == "" && u.Username == "")
}

// EmbedUser is the identity a host page hands to the widget. It is what
// /init_users expects; the service answers with canonical User records.
type EmbedUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	ProfilePic string `json:"profile_pic,omitempty"`
}

// Embed returns u in the shape accepted by /init_users.
func (u User) Embed() EmbedUser {
	return EmbedUser{ID: u.ID, Username: u.Username, ProfilePic: u.ProfilePic}
}

// UserMeta is the per-room meta of a participant.
type UserMeta struct {
	UserID  string `json:"user_id"`
	Blocked bool   `json:"blocked"`
}
