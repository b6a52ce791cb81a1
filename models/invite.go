package models

import (
	"fmt"
	"time"
)

// Invite, bir sunucu davetini temsil eder.
//
// Code hem tanımlayıcı hem davet linki parçasıdır — ayrıca bir id yoktur.
// Uses monoton artar; UseInvite içindeki atomic uses++ bunu garanti eder.
type Invite struct {
	Code      string     `json:"code"`
	ServerID  string     `json:"server_id"`
	CreatedBy string     `json:"created_by"`
	MaxUses   *int       `json:"max_uses"`
	Uses      int        `json:"uses"`
	ExpiresAt *time.Time `json:"expires_at"`
	Revoked   bool       `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
}

// Usable, davetin şu an kullanılabilir olup olmadığını döner.
// Revoke edilmiş, süresi dolmuş veya kullanım limiti dolmuş davet kullanılamaz.
func (i *Invite) Usable() bool {
	if i.Revoked {
		return false
	}
	if i.ExpiresAt != nil && time.Now().After(*i.ExpiresAt) {
		return false
	}
	if i.MaxUses != nil && i.Uses >= *i.MaxUses {
		return false
	}
	return true
}

// CreateInviteRequest, invite:create payload'ı.
// MaxUses/ExpiresInMinutes 0 → sınırsız.
type CreateInviteRequest struct {
	ServerID         string `json:"serverId"`
	MaxUses          int    `json:"maxUses,omitempty"`
	ExpiresInMinutes int    `json:"expiresInMinutes,omitempty"`
}

// Validate, CreateInviteRequest'in geçerli olup olmadığını kontrol eder.
func (r *CreateInviteRequest) Validate() error {
	if r.ServerID == "" {
		return fmt.Errorf("serverId is required")
	}
	if r.MaxUses < 0 || r.MaxUses > 10000 {
		return fmt.Errorf("maxUses must be between 0 and 10000")
	}
	if r.ExpiresInMinutes < 0 || r.ExpiresInMinutes > 60*24*30 {
		return fmt.Errorf("expiresInMinutes must be at most 30 days")
	}
	return nil
}

// InvitePeek, invite:peek sonucu — login olmamış client'ların davet
// linkini render etmesi için minimal görünüm.
type InvitePeek struct {
	Valid      bool    `json:"valid"`
	Code       string  `json:"code,omitempty"`
	ServerName string  `json:"server_name,omitempty"`
	ServerIcon *string `json:"server_icon,omitempty"`
	MemberCnt  int     `json:"member_count,omitempty"`
}
