package models

import "time"

// VoicePeer, bir voice room'daki tek bir socket'in wire'a görünen hali.
//
// Voice room'lar transient'tır — store'a yazılmaz, son socket çıktığında
// oda silinir. Reconnect sonrası client voice:join'i yeniden gönderir.
type VoicePeer struct {
	SocketID      string    `json:"socket_id"`
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	IsMuted       bool      `json:"is_muted"`
	IsDeafened    bool      `json:"is_deafened"`
	ScreenSharing bool      `json:"screen_sharing"`
	JoinedAt      time.Time `json:"joined_at"`
}

// VoiceRoomState, voice:channel:update broadcast'inde gönderilen roster.
type VoiceRoomState struct {
	ChannelID      string      `json:"channel_id"`
	Peers          []VoicePeer `json:"peers"`
	ScreenSharerID string      `json:"screen_sharer_id,omitempty"`
}
