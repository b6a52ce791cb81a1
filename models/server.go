package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Server, bir sunucuyu temsil eder.
//
// Owner her zaman üyedir ve owner kontrolü rol üzerinden değil
// OwnerID alanı üzerinden yapılır — owner yetkisi devredilmedikçe kaybolmaz.
// Archived: owner ayrıldığında devredilecek admin bulunamazsa sunucu
// arşivlenir — kanallar ölür, listelerde görünmez.
type Server struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	Icon      *string   `json:"icon"`
	Archived  bool      `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// ServerSnapshot, server:updated broadcast'inde gönderilen tam görünüm:
// sunucu + sıralı kategoriler + kanallar + roller.
// Client sidebar'ını tek event ile yeniden kurar.
type ServerSnapshot struct {
	Server     Server                 `json:"server"`
	Categories []CategoryWithChannels `json:"categories"`
	Roles      []Role                 `json:"roles"`
}

// PersonalServer, init payload'ında her kullanıcı için sentezlenen sanal
// sunucudur — gerçek bir servers satırı yoktur. DM ve group DM kanallarını
// taşır. Davet/rol/ban API'leri bu sunucuyu kabul etmez.
type PersonalServer struct {
	ID         string      `json:"id"` // "personal:<userId>"
	Name       string      `json:"name"`
	OwnerID    string      `json:"owner_id"`
	IsPersonal bool        `json:"is_personal"`
	Channels   []DMChannel `json:"channels"`
	Requests   []DMChannel `json:"message_requests"`
}

// CreateServerRequest, yeni sunucu oluşturma isteği.
type CreateServerRequest struct {
	Name string `json:"name"`
}

// Validate, CreateServerRequest'in geçerli olup olmadığını kontrol eder.
func (r *CreateServerRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	nameLen := utf8.RuneCountInString(r.Name)
	if nameLen < 1 || nameLen > 100 {
		return fmt.Errorf("server name must be between 1 and 100 characters")
	}
	return nil
}

// UpdateServerRequest, sunucu güncelleme isteği (isim, ikon).
type UpdateServerRequest struct {
	Name *string `json:"name"`
	Icon *string `json:"icon"`
}

// Validate, UpdateServerRequest'in geçerli olup olmadığını kontrol eder.
func (r *UpdateServerRequest) Validate() error {
	if r.Name != nil {
		*r.Name = strings.TrimSpace(*r.Name)
		nameLen := utf8.RuneCountInString(*r.Name)
		if nameLen < 1 || nameLen > 100 {
			return fmt.Errorf("server name must be between 1 and 100 characters")
		}
	}
	return nil
}
