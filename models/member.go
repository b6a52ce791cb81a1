package models

import "time"

// Membership, (user, server) üyelik kenarını temsil eder.
//
// TimeoutUntil dolu ve gelecekteyse üye timeout'tadır — permission
// engine sendMessages/speak/connectVoice/addReaction yetkilerini düşürür.
type Membership struct {
	UserID       string     `json:"user_id"`
	ServerID     string     `json:"server_id"`
	JoinedAt     time.Time  `json:"joined_at"`
	TimeoutUntil *time.Time `json:"timeout_until"`
}

// TimedOut, üyenin şu an timeout'ta olup olmadığını döner.
func (m *Membership) TimedOut() bool {
	return m.TimeoutUntil != nil && time.Now().Before(*m.TimeoutUntil)
}

// Member, üye listelerinde dönen birleşik görünüm: kullanıcı + üyelik + rolleri.
type Member struct {
	User         PublicUser `json:"user"`
	JoinedAt     time.Time  `json:"joined_at"`
	RoleIDs      []string   `json:"role_ids"`
	TimeoutUntil *time.Time `json:"timeout_until"`
}

// Ban, sunucu ban listesindeki bir kaydı temsil eder.
// Banlı kullanıcı davet kullanamaz (fails-closed).
type Ban struct {
	ServerID  string    `json:"server_id"`
	UserID    string    `json:"user_id"`
	BannedBy  string    `json:"banned_by"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Timeout sınırları — dakika cinsinden (1 dakika ile 7 gün arası).
const (
	MinTimeoutMinutes = 1
	MaxTimeoutMinutes = 10080
)
