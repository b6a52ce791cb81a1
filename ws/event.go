// Package ws, WebSocket bağlantı yönetimi ve gerçek zamanlı event dağıtımını sağlar.
//
// Mimari:
// - Registry: room key → socket set pub/sub katmanı (tek yazma noktası)
// - Hub: bağlantı yaşam döngüsü + presence aggregate
// - Client: tek bir WebSocket bağlantısı (read/write pump çifti)
// - Dispatcher: inbound op → handler tablosu (rate limit + panic recovery)
// - Event: client-server arası iletilen mesaj formatı
//
// Event akışı:
// 1. Client frame gönderir → ReadPump → Dispatcher.Dispatch
// 2. Dispatcher rate limit + auth kontrolü yapar, tablodaki handler'ı çağırır
// 3. Handler service'i çağırır; service Registry üzerinden fan-out yapar
// 4. Her hedef client'ın WritePump'ı event'i socket'e yazar
package ws

import (
	"encoding/json"
	"fmt"
)

// Event, server'dan client'a iletilen bir mesajı temsil eder.
//
// Op: event türü — "message:new", "typing:start" vb.
// Data: event'e özgü payload.
// Seq: her outbound event'e verilen artan sayı.
// Client eksik event tespit etmek için seq'i takip eder:
// seq 5'ten sonra seq 7 gelirse 6 kaybolmuş demektir.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// Inbound, client'dan gelen ham frame. Data, handler tarafından op'a
// özgü struct'a decode edilir — bu yüzden RawMessage olarak bekletilir.
type Inbound struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d"`
}

// ────────────────────────────────────────────
// Room key helper'ları
//
// Registry anahtarları opak string'lerdir; format tek yerde üretilir.
// ────────────────────────────────────────────

// KeyServer, bir sunucunun tüm online üyelerini hedefler.
func KeyServer(serverID string) string { return "server:" + serverID }

// KeyChannel, bir text kanalına abone socket'leri hedefler.
func KeyChannel(channelID string) string { return "channel:" + channelID }

// KeyUser, bir kullanıcının tüm socket'lerini hedefler.
func KeyUser(userID string) string { return "user:" + userID }

// KeyVoice, bir voice room'daki socket'leri hedefler.
func KeyVoice(channelID string) string { return "voice:" + channelID }

// KeyPersonal, kullanıcının Personal server görünümünü (DM listesi) hedefler.
func KeyPersonal(userID string) string { return "personal:" + userID }

// ────────────────────────────────────────────
// Operation sabitleri — Client → Server
// ────────────────────────────────────────────

const (
	OpJoin      = "join"      // İlk frame — token ile socket'i principal'a bağlar
	OpHeartbeat = "heartbeat" // Client her 30sn'de gönderir — "hâlâ bağlıyım" sinyali

	OpPresenceUpdate = "presence:update" // Durum değişikliği (online/idle/dnd/offline)

	OpChannelJoin    = "channel:join"    // Kanala abone ol + son mesaj sayfasını al
	OpChannelLeave   = "channel:leave"   // Kanal aboneliğini bırak
	OpChannelHistory = "channel:history" // Daha eski mesaj sayfası iste (beforeId cursor)

	OpMessageSend   = "message:send"
	OpMessageEdit   = "message:edit"
	OpMessageDelete = "message:delete"
	OpMessageReact  = "message:react"

	OpTypingStart = "typing:start"

	OpChannelCreate   = "channel:create"
	OpChannelUpdate   = "channel:update"
	OpChannelDel      = "channel:delete"
	OpChannelReorder  = "channel:reorder"
	OpChannelMove     = "channel:move" // Kanalı başka kategoriye taşı
	OpCategoryCreate  = "category:create"
	OpCategoryUpdate  = "category:update"
	OpCategoryDel     = "category:delete"
	OpCategoryReorder = "category:reorder"

	OpOverrideSet    = "channel:override:set"
	OpOverrideRemove = "channel:override:remove"

	OpServerCreate  = "server:create"
	OpServerUpdate  = "server:update"
	OpServerDel     = "server:delete"
	OpServerLeave   = "server:leave"
	OpServerKick    = "server:kick-user"
	OpServerBan     = "server:ban-user"
	OpServerUnban   = "server:unban-user"
	OpServerTimeout = "server:timeout-user"

	OpRoleCreate   = "role:create"
	OpRoleUpdate   = "role:update"
	OpRoleDel      = "role:delete"
	OpRoleAssign   = "role:assign"
	OpRoleUnassign = "role:unassign"

	OpInviteCreate = "invite:create"
	OpInvitePeek   = "invite:peek"
	OpInviteUse    = "invite:use"
	OpInviteRevoke = "invite:revoke"

	OpFriendRequest = "friend:request"
	OpFriendAccept  = "friend:accept"
	OpFriendReject  = "friend:reject"
	OpFriendRemove  = "friend:remove"
	OpUserBlock     = "user:block"
	OpUserUnblock   = "user:unblock"

	OpDMCreate            = "dm:create"
	OpDMCreateGroup       = "dm:create-group"
	OpDMAddParticipant    = "dm:add-participant"
	OpDMRemoveParticipant = "dm:remove-participant"
	OpDMRequestAccept     = "dm:message-request:accept"
	OpDMRequestReject     = "dm:message-request:reject"
	OpDMRead              = "dm:read"
	OpDMArchive           = "dm:archive"
	OpDMDelete            = "dm:delete"

	OpVoiceJoin      = "voice:join"
	OpVoiceLeave     = "voice:leave"
	OpVoiceMute      = "voice:mute"
	OpVoiceDeafen    = "voice:deafen"
	OpVoiceICEConfig = "voice:ice-config"

	OpWebRTCOffer  = "webrtc:offer"
	OpWebRTCAnswer = "webrtc:answer"
	OpWebRTCICE    = "webrtc:ice"

	OpScreenStart   = "screen:start"
	OpScreenStop    = "screen:stop"
	OpScreenWatch   = "screen:watch"
	OpScreenUnwatch = "screen:unwatch"

	OpDMCallStart   = "dm:call-start"
	OpDMCallDecline = "dm:call-decline"
	OpDMCallEnd     = "dm:call-end"

	OpReportCreate    = "report:create"
	OpReportList      = "report:list"
	OpReportSetStatus = "report:set-status"

	OpWebhookCreate = "webhook:create"
	OpWebhookList   = "webhook:list"
	OpWebhookDelete = "webhook:delete"
)

// ────────────────────────────────────────────
// Operation sabitleri — Server → Client
// ────────────────────────────────────────────

const (
	OpInit         = "init"  // join sonrası ilk event — kullanıcı + sunucular + online listesi
	OpError        = "error" // {message, kind} — auth hatalarında socket da kapanır
	OpHeartbeatAck = "heartbeat_ack"

	OpUserJoined  = "user:joined"  // Kullanıcı online oldu
	OpUserLeft    = "user:left"    // Kullanıcının son socket'i kapandı
	OpUserUpdated = "user:updated" // Status/profil değişti

	OpTypingStop = "typing:stop"

	OpMessageNew      = "message:new"
	OpMessageEdited   = "message:edited"
	OpMessageDeleted  = "message:deleted"
	OpMessageReaction = "message:reaction"

	OpServerUpdated = "server:updated" // Tam server snapshot — kanal/kategori/rol değişimleri
	OpServerCreated = "server:created"
	OpServerDeleted = "server:deleted"
	OpUserKicked    = "user:kicked"
	OpUserBanned    = "user:banned"
	OpMemberJoined  = "member:joined"
	OpMemberLeft    = "member:left"

	OpInviteJoined  = "invite:joined"
	OpInviteCreated = "invite:created"

	OpFriendRequestSent     = "friend:request:sent"
	OpFriendRequestReceived = "friend:request:received"
	OpFriendAccepted        = "friend:accepted"
	OpFriendRejected        = "friend:rejected"
	OpFriendRemoved         = "friend:removed"
	OpUserBlocked           = "user:blocked"
	OpUserUnblocked         = "user:unblocked"

	OpDMCreated      = "dm:created"
	OpDMUpdated      = "dm:updated"
	OpDMUnreadCounts = "dm:unread-counts"
	OpDMCallIncoming = "dm:call-incoming"
	OpDMCallDeclined = "dm:call-declined"
	OpDMCallEnded    = "dm:call-ended"

	OpVoiceJoined        = "voice:joined"
	OpPeerJoined         = "peer:joined"
	OpPeerLeft           = "peer:left"
	OpVoiceChannelUpdate = "voice:channel:update"
	OpPeerMuteChanged    = "peer:mute:changed"
	OpPeerDeafenChanged  = "peer:deafen:changed"

	OpScreenStarted      = "screen:started"
	OpScreenStopped      = "screen:stopped"
	OpScreenAddViewer    = "screen:add-viewer"
	OpScreenRemoveViewer = "screen:remove-viewer"

	OpReportCreated = "report:created"

	OpWebhookCreated = "webhook:created"
	OpWebhookDeleted = "webhook:deleted"
)

// ────────────────────────────────────────────
// Protokol payload struct'ları
//
// Field isimleri wire contract'ın parçasıdır (camelCase).
// Domain entity'lerinin JSON şekli models paketindedir.
// ────────────────────────────────────────────

// JoinData, join event'inin payload'ı — socket'in ilk frame'i.
type JoinData struct {
	Token string `json:"token"`
}

// PresenceData, presence:update payload'ı.
type PresenceData struct {
	Status string `json:"status"`
}

// ChannelRefData, tek bir kanalı referans eden op'ların payload'ı.
type ChannelRefData struct {
	ChannelID string `json:"channelId"`
}

// HistoryData, channel:history isteği — beforeId cursor'ından eskiye doğru.
type HistoryData struct {
	ChannelID string `json:"channelId"`
	BeforeID  string `json:"beforeId,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// TypingStartData, typing:start / typing:stop broadcast payload'ı.
type TypingStartData struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
}

// ErrorData, error event'inin payload'ı.
// Kind, pkg error taksonomisinden gelir (auth_invalid, rate_limited, ...).
type ErrorData struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// SignalData, webrtc:offer / webrtc:answer / webrtc:ice payload'ı.
//
// TargetID inbound'da hedef socket'tir; relay edilirken From alanı
// doldurulur ve TargetID temizlenir. Payload alanları opak taşınır —
// server SDP/ICE içeriğine bakmaz.
type SignalData struct {
	TargetID  string          `json:"targetId,omitempty"`
	From      string          `json:"from,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// VoiceMuteData / VoiceDeafenData, advisory mute/deafen toggle'ları.
type VoiceMuteData struct {
	IsMuted bool `json:"isMuted"`
}

// VoiceDeafenData — deafen açılırken mute da zorlanır.
type VoiceDeafenData struct {
	IsDeafened bool `json:"isDeafened"`
}

// ScreenWatchData, screen:watch / screen:unwatch payload'ı.
type ScreenWatchData struct {
	SharerID string `json:"sharerId"`
}

// DecodeData, inbound payload'ı hedef struct'a decode eder.
// Boş payload boş struct olarak kabul edilir — alan zorunluluğunu
// handler'ın Validate'i denetler.
func DecodeData(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return nil
}
