package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// ChannelType, kanalın türünü temsil eder.
type ChannelType string

const (
	ChannelTypeText    ChannelType = "text"
	ChannelTypeVoice   ChannelType = "voice"
	ChannelTypeDM      ChannelType = "dm"
	ChannelTypeGroupDM ChannelType = "group_dm"
)

// IsDM, kanalın DM ailesinden olup olmadığını döner.
func (t ChannelType) IsDM() bool {
	return t == ChannelTypeDM || t == ChannelTypeGroupDM
}

// Channel, bir kanalı temsil eder.
//
// ServerID nil ise kanal DM/group DM'dir — katılımcılar dm_participants
// tablosundadır ve sentezlenen Personal server altında görünür.
type Channel struct {
	ID          string      `json:"id"`
	ServerID    *string     `json:"server_id"`
	CategoryID  *string     `json:"category_id"` // Nullable — kategorisiz kanal olabilir
	Type        ChannelType `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	IsPrivate   bool        `json:"is_private"`
	Position    int         `json:"position"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Category, kanalları gruplamak için kullanılan kategorileri temsil eder.
type Category struct {
	ID       string `json:"id"`
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// CategoryWithChannels, bir kategoriyi ve altındaki sıralı kanalları gruplar.
// server:updated snapshot'ında kullanılır.
type CategoryWithChannels struct {
	Category Category  `json:"category"`
	Channels []Channel `json:"channels"`
}

// ChannelOverride, kanal bazlı permission override'ı.
// RoleID veya UserID'den tam olarak biri doludur.
// Çözümleme sırası: base roller → role allow → role deny → user allow → user deny.
type ChannelOverride struct {
	ChannelID string     `json:"channel_id"`
	RoleID    *string    `json:"role_id"`
	UserID    *string    `json:"user_id"`
	Allow     Permission `json:"allow"`
	Deny      Permission `json:"deny"`
}

// CreateChannelRequest, yeni kanal oluşturma isteği.
type CreateChannelRequest struct {
	Name       string `json:"name"`
	Type       string `json:"type"` // "text" veya "voice"
	CategoryID string `json:"category_id"`
	IsPrivate  bool   `json:"is_private"`
}

// Validate, CreateChannelRequest'in geçerli olup olmadığını kontrol eder.
func (r *CreateChannelRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	nameLen := utf8.RuneCountInString(r.Name)
	if nameLen < 1 || nameLen > 100 {
		return fmt.Errorf("channel name must be between 1 and 100 characters")
	}

	for _, ch := range r.Name {
		if !isValidChannelNameChar(ch) {
			return fmt.Errorf("channel name contains invalid characters")
		}
	}

	if r.Type != string(ChannelTypeText) && r.Type != string(ChannelTypeVoice) {
		return fmt.Errorf("channel type must be 'text' or 'voice'")
	}

	return nil
}

// UpdateChannelRequest, kanal güncelleme isteği.
// Pointer (*string) kullanılır — nil ise o alan güncellenmez (partial update).
type UpdateChannelRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPrivate   *bool   `json:"is_private"`
}

// Validate, UpdateChannelRequest'in geçerli olup olmadığını kontrol eder.
func (r *UpdateChannelRequest) Validate() error {
	if r.Name != nil {
		*r.Name = strings.TrimSpace(*r.Name)
		nameLen := utf8.RuneCountInString(*r.Name)
		if nameLen < 1 || nameLen > 100 {
			return fmt.Errorf("channel name must be between 1 and 100 characters")
		}
		for _, ch := range *r.Name {
			if !isValidChannelNameChar(ch) {
				return fmt.Errorf("channel name contains invalid characters")
			}
		}
	}

	if r.Description != nil {
		*r.Description = strings.TrimSpace(*r.Description)
		if utf8.RuneCountInString(*r.Description) > 1024 {
			return fmt.Errorf("channel description must be at most 1024 characters")
		}
	}

	return nil
}

// CreateCategoryRequest, yeni kategori oluşturma isteği.
type CreateCategoryRequest struct {
	Name string `json:"name"`
}

// Validate, CreateCategoryRequest'in geçerli olup olmadığını kontrol eder.
func (r *CreateCategoryRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	nameLen := utf8.RuneCountInString(r.Name)
	if nameLen < 1 || nameLen > 100 {
		return fmt.Errorf("category name must be between 1 and 100 characters")
	}
	return nil
}

// PositionUpdate, reorder güncellemesinde tek bir item.
type PositionUpdate struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// ReorderRequest, kanal veya kategori sıralama isteği.
// Reorder transactional'dır — ya tüm pozisyonlar değişir ya hiçbiri.
type ReorderRequest struct {
	Items []PositionUpdate `json:"items"`
}

// Validate, ReorderRequest'in geçerli olup olmadığını kontrol eder.
func (r *ReorderRequest) Validate() error {
	if len(r.Items) == 0 {
		return fmt.Errorf("items cannot be empty")
	}

	seen := make(map[string]bool, len(r.Items))
	for _, item := range r.Items {
		if item.ID == "" {
			return fmt.Errorf("item id cannot be empty")
		}
		if item.Position < 0 {
			return fmt.Errorf("position cannot be negative")
		}
		if seen[item.ID] {
			return fmt.Errorf("duplicate id: %s", item.ID)
		}
		seen[item.ID] = true
	}

	return nil
}

// isValidChannelNameChar, kanal adında izin verilen karakterleri kontrol eder.
// Unicode harf/rakam, boşluk, tire, alt çizgi kabul edilir.
func isValidChannelNameChar(ch rune) bool {
	return unicode.IsLetter(ch) ||
		unicode.IsDigit(ch) ||
		ch == '-' || ch == '_' || ch == ' '
}
