// Package models, uygulamanın domain modellerini (veri yapıları) tanımlar.
//
// Model nedir?
// Veritabanındaki bir tablonun Go karşılığıdır.
// Aynı zamanda API'den gelen/giden verilerin şeklini de belirler.
//
// Request DTO'ları Validate() metodu taşır — validation kuralları
// handler'a değil, verinin kendisine aittir.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// UserStatus, kullanıcının çevrimiçi durumunu temsil eder.
// Go'da enum yoktur, typed constant kullanılır.
type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusIdle    UserStatus = "idle"
	UserStatusDND     UserStatus = "dnd"
	UserStatusOffline UserStatus = "offline"
)

// Valid, status değerinin izin verilen kümede olup olmadığını döner.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusOnline, UserStatusIdle, UserStatusDND, UserStatusOffline:
		return true
	}
	return false
}

// User, bir kullanıcıyı temsil eder.
//
// CustomAvatar, base64 data URL olarak saklanır (*string = nullable).
// AvatarGlyph, custom avatar yoksa gösterilen tek karakterlik glyph.
// Settings, client'ın kendi tercihlerini sakladığı opak JSON blob'dur —
// server içeriğini yorumlamaz, login'de olduğu gibi geri verir.
type User struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"` // json:"-" → API response'a DAHİL ETME
	Status       UserStatus      `json:"status"`
	Color        string          `json:"color"`
	AvatarGlyph  string          `json:"avatar_glyph"`
	CustomAvatar *string         `json:"custom_avatar"`
	Settings     json.RawMessage `json:"settings,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	DeletedAt    *time.Time      `json:"-"` // Soft-retire işareti — dışarı sızmaz
}

// PublicUser, diğer kullanıcılara görünen alt küme.
// Settings gibi kişisel alanlar dahil edilmez.
type PublicUser struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Status       UserStatus `json:"status"`
	Color        string     `json:"color"`
	AvatarGlyph  string     `json:"avatar_glyph"`
	CustomAvatar *string    `json:"custom_avatar"`
}

// Public, User'dan diğer kullanıcılara görünen alt kümeyi üretir.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		Username:     u.Username,
		Status:       u.Status,
		Color:        u.Color,
		AvatarGlyph:  u.AvatarGlyph,
		CustomAvatar: u.CustomAvatar,
	}
}

// RegisterRequest, kayıt olurken client'dan gelen veri.
// PasswordHash yerine Password alırız — hash'leme service katmanında yapılır.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Color    string `json:"color"`
}

// Validate, RegisterRequest'in geçerli olup olmadığını kontrol eder.
// Kurallar:
//   - Username: 1-32 karakter, harf/rakam/alt çizgi/tire/nokta
//   - Password: minimum 8 karakter
func (r *RegisterRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	usernameLen := utf8.RuneCountInString(r.Username)
	if usernameLen < 1 || usernameLen > 32 {
		return fmt.Errorf("username must be between 1 and 32 characters")
	}

	for _, ch := range r.Username {
		if !isValidUsernameChar(ch) {
			return fmt.Errorf("username can only contain letters, numbers, underscores, dashes and dots")
		}
	}

	if utf8.RuneCountInString(r.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	return nil
}

// LoginRequest, giriş yaparken client'dan gelen veri.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate, LoginRequest'in geçerli olup olmadığını kontrol eder.
func (r *LoginRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" {
		return fmt.Errorf("username is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// UpdateProfileRequest, profil güncellemesi için.
// Pointer (*string) kullanılır — nil ise o alan güncellenmez (partial update).
type UpdateProfileRequest struct {
	Color       *string          `json:"color"`
	AvatarGlyph *string          `json:"avatar_glyph"`
	Settings    *json.RawMessage `json:"settings"`
}

// Validate, UpdateProfileRequest'in geçerli olup olmadığını kontrol eder.
func (r *UpdateProfileRequest) Validate() error {
	if r.Color != nil && utf8.RuneCountInString(*r.Color) > 16 {
		return fmt.Errorf("color must be at most 16 characters")
	}
	if r.AvatarGlyph != nil && utf8.RuneCountInString(*r.AvatarGlyph) > 8 {
		return fmt.Errorf("avatar glyph must be at most 8 characters")
	}
	if r.Settings != nil && len(*r.Settings) > 64*1024 {
		return fmt.Errorf("settings blob too large")
	}
	return nil
}

// isValidUsernameChar, username'de izin verilen karakterleri kontrol eder.
func isValidUsernameChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '_' || ch == '-' || ch == '.'
}
