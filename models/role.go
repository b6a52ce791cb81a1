package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Permission, rol yetkilerini bit flag olarak temsil eder.
//
// Her yetki bir bit ile temsil edilir — tek bir integer'da birden fazla
// yetki saklanır.
//
// Kontrol: (permissions & PermSendMessages) != 0 → bu yetki var mı?
// Ekleme: permissions | PermSendMessages
// Çıkarma: permissions &^ PermSendMessages
type Permission int64

const (
	PermManageServer   Permission = 1 << iota // 1 — iota auto-increment sabit üretir
	PermManageChannels                        // 2
	PermManageRoles                           // 4
	PermManageMessages                        // 8
	PermKickMembers                           // 16
	PermBanMembers                            // 32
	PermTimeoutMembers                        // 64
	PermCreateInvite                          // 128
	PermManageWebhooks                        // 256
	PermMentionEveryone                       // 512
	PermViewChannel                           // 1024
	PermSendMessages                          // 2048
	PermAddReaction                           // 4096
	PermConnectVoice                          // 8192
	PermSpeak                                 // 16384
	PermScreenShare                           // 32768
	PermViewReports                           // 65536
	PermAdministrator                         // 131072 — her şeye izin verir
)

// PermAll, tüm yetkilerin toplamıdır.
// Yeni permission eklendikçe güncellenir: (1 << N) - 1
const PermAll Permission = (1 << 18) - 1

// PermEveryoneDefault, @everyone rolünün varsayılan yetkileri.
// Yeni üye hiçbir özel rol almadan konuşabilmeli ve sesi kullanabilmeli.
const PermEveryoneDefault = PermViewChannel | PermSendMessages | PermAddReaction |
	PermConnectVoice | PermSpeak | PermScreenShare | PermCreateInvite

// Has, belirli bir yetkinin var olup olmadığını kontrol eder.
// Administrator yetkisi her şeye izin verir.
func (p Permission) Has(perm Permission) bool {
	if p&PermAdministrator != 0 {
		return true
	}
	return p&perm == perm
}

// TimeoutStripped, timeout süresi dolmamış bir üyeden düşen yetkiler.
// Timeout'lu üye okumaya devam eder ama yazamaz, konuşamaz, tepki veremez.
const TimeoutStripped = PermSendMessages | PermSpeak | PermConnectVoice | PermAddReaction

// Role, bir sunucu rolünü temsil eder.
//
// Position: yüksek pozisyon kazanır — kick/ban hiyerarşi kontrolünde
// kullanılır. @everyone rolünün pozisyonu her zaman 0'dır ve silinemez.
type Role struct {
	ID          string     `json:"id"`
	ServerID    string     `json:"server_id"`
	Name        string     `json:"name"`
	Color       string     `json:"color"`
	Permissions Permission `json:"permissions"`
	Position    int        `json:"position"`
	IsEveryone  bool       `json:"is_everyone"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EveryoneRoleName, her sunucuda var olan default rolün adı.
const EveryoneRoleName = "@everyone"

// CreateRoleRequest, yeni rol oluşturma isteği (role:create payload'ı).
type CreateRoleRequest struct {
	ServerID    string `json:"serverId"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Permissions int64  `json:"permissions"`
}

// Validate, CreateRoleRequest'in geçerli olup olmadığını kontrol eder.
// Bilinmeyen permission bit'leri sessizce maskelenir.
func (r *CreateRoleRequest) Validate() error {
	if r.ServerID == "" {
		return fmt.Errorf("serverId is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	nameLen := utf8.RuneCountInString(r.Name)
	if nameLen < 1 || nameLen > 100 {
		return fmt.Errorf("role name must be between 1 and 100 characters")
	}
	if r.Name == EveryoneRoleName {
		return fmt.Errorf("role name is reserved")
	}
	r.Permissions = int64(Permission(r.Permissions) & PermAll)
	return nil
}

// UpdateRoleRequest, rol güncelleme isteği — nil alanlar dokunulmaz.
type UpdateRoleRequest struct {
	RoleID      string  `json:"roleId"`
	Name        *string `json:"name"`
	Color       *string `json:"color"`
	Permissions *int64  `json:"permissions"`
	Position    *int    `json:"position"`
}

// Validate, UpdateRoleRequest'in geçerli olup olmadığını kontrol eder.
func (r *UpdateRoleRequest) Validate() error {
	if r.RoleID == "" {
		return fmt.Errorf("roleId is required")
	}
	if r.Name != nil {
		*r.Name = strings.TrimSpace(*r.Name)
		nameLen := utf8.RuneCountInString(*r.Name)
		if nameLen < 1 || nameLen > 100 {
			return fmt.Errorf("role name must be between 1 and 100 characters")
		}
		if *r.Name == EveryoneRoleName {
			return fmt.Errorf("role name is reserved")
		}
	}
	if r.Permissions != nil {
		*r.Permissions = int64(Permission(*r.Permissions) & PermAll)
	}
	return nil
}
