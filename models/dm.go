package models

import "time"

// DMChannel, DM/group DM kanalının kullanıcıya göre görünümü:
// kanal + katılımcılar + bakan kullanıcının durum bayrakları.
//
// RequestPending true ise kanal bakan kullanıcının "Message Requests"
// listesindedir — accept edilene kadar ana DM listesinde görünmez.
type DMChannel struct {
	Channel        Channel      `json:"channel"`
	Participants   []PublicUser `json:"participants"`
	RequestPending bool         `json:"request_pending"`
	Archived       bool         `json:"archived"`
	UnreadCount    int          `json:"unread_count"`
	LastMessageID  string       `json:"last_message_id,omitempty"`
}

// DMUserState, kullanıcı başına DM kanal durumu (dm_user_state satırı).
// Hidden: per-user delete — mesajlar ve kanal diğer katılımcılar için yaşar.
type DMUserState struct {
	ChannelID      string `json:"channel_id"`
	UserID         string `json:"user_id"`
	Hidden         bool   `json:"hidden"`
	Archived       bool   `json:"archived"`
	RequestPending bool   `json:"request_pending"`
}

// ReadState, kullanıcı-kanal başına okuma cursor'ı.
type ReadState struct {
	UserID            string    `json:"user_id"`
	ChannelID         string    `json:"channel_id"`
	LastReadMessageID string    `json:"last_read_message_id"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// UnreadCount, dm:unread-counts event'inde kanal başına okunmamış sayısı.
type UnreadCount struct {
	ChannelID string `json:"channel_id"`
	Count     int    `json:"count"`
}
