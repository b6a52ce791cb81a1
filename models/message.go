package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Mesaj sınırları.
const (
	MaxMessageLength = 2000
	MaxAttachments   = 4
	MaxEmbeds        = 10
	MaxCommandData   = 8 * 1024
)

// Komut mesajı türleri.
const (
	CommandPoll     = "poll"
	CommandReminder = "reminder"
)

// CommandData, slash-komut mesajlarının yapılandırılmış yükü (anket,
// hatırlatıcı). Data opak taşınır — render client'a aittir, server
// yalnızca tür ve boyut doğrular.
type CommandData struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Validate, CommandData'nın geçerli olup olmadığını kontrol eder.
func (c *CommandData) Validate() error {
	if c.Type != CommandPoll && c.Type != CommandReminder {
		return fmt.Errorf("unknown command type %q", c.Type)
	}
	if len(c.Data) > MaxCommandData {
		return fmt.Errorf("command data must be at most %d bytes", MaxCommandData)
	}
	return nil
}

// Author, mesajın yazarını temsil eden tagged variant.
//
// Üç durum vardır:
//   - Kullanıcı mesajı: UserID dolu
//   - Webhook mesajı: WebhookID dolu, DisplayName/Avatar webhook'tan
//     veya payload override'ından gelir
//   - Tombstone: ikisi de boş — hesabı silinmiş kullanıcının mesajı
//
// Downstream kod iki yolu da aynı şekilde işler — fan-out, mention parse
// ve history için yazarın türü fark etmez.
type Author struct {
	UserID      *string `json:"user_id"`
	WebhookID   *string `json:"webhook_id"`
	DisplayName string  `json:"display_name"`
	Avatar      *string `json:"avatar"`
}

// IsWebhook, yazarın webhook olup olmadığını döner.
func (a *Author) IsWebhook() bool { return a.WebhookID != nil }

// IsTombstone, yazarın silinmiş bir hesap olup olmadığını döner.
func (a *Author) IsTombstone() bool { return a.UserID == nil && a.WebhookID == nil }

// Mentions, mesaj içeriğinden parse edilen mention'lar.
// Slice'lar hiçbir zaman nil serialize edilmez — repo katmanı boş slice garanti eder.
type Mentions struct {
	Everyone bool     `json:"everyone"`
	Users    []string `json:"users"`
	Roles    []string `json:"roles"`
}

// Embed, mesajın zengin içerik bloğu. Webhook payload'larından gelir;
// server içeriğini doğrulamaz, boyut sınırı dışında olduğu gibi taşır.
type Embed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Color       string `json:"color,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Message, bir chat mesajını temsil eder.
//
// ID, server tarafından atanan time-sortable bir ID'dir — aynı kanaldaki
// mesajlar ID'ye göre total order'dadır.
// Reactions: emoji → kullanıcı ID listesi. Idempotent: aynı kullanıcı
// aynı emojiyi iki kez ekleyemez.
type Message struct {
	ID           string              `json:"id"`
	ChannelID    string              `json:"channel_id"`
	Author       Author              `json:"author"`
	Content      string              `json:"content"`
	ReplyToID    *string             `json:"reply_to_id"`
	CommandData  *CommandData        `json:"command_data,omitempty"`
	Mentions     Mentions            `json:"mentions"`
	ChannelLinks []string            `json:"channel_links"`
	InviteCodes  []string            `json:"invite_codes,omitempty"`
	CustomEmojis []string            `json:"custom_emojis,omitempty"`
	Embeds       []Embed             `json:"embeds"`
	Attachments  []string            `json:"attachments"`
	Reactions    map[string][]string `json:"reactions"`
	CreatedAt    time.Time           `json:"created_at"`
	EditedAt     *time.Time          `json:"edited_at"`
	Deleted      bool                `json:"-"`
}

// MessagePage, cursor-based pagination sonucu.
//
// Offset yerine "bu ID'den önceki N mesajı getir" kullanılır —
// yeni mesaj eklendiğinde sayfa kayması olmaz.
type MessagePage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

// SendMessageRequest, yeni mesaj gönderme isteği (message:send payload'ı).
type SendMessageRequest struct {
	ChannelID   string       `json:"channelId"`
	Content     string       `json:"content"`
	ReplyTo     string       `json:"replyTo,omitempty"`
	Attachments []string     `json:"attachments,omitempty"`
	CommandData *CommandData `json:"commandData,omitempty"`
}

// Validate, SendMessageRequest'in geçerli olup olmadığını kontrol eder.
// İçerik 1-2000 karakter, en fazla 4 attachment, attachment URL'leri
// allow-list'teki scheme'lerden olmalı. commandData taşıyan mesajda
// (anket, hatırlatıcı) içerik boş kalabilir.
func (r *SendMessageRequest) Validate() error {
	if r.ChannelID == "" {
		return fmt.Errorf("channelId is required")
	}
	if r.CommandData != nil {
		if err := r.CommandData.Validate(); err != nil {
			return err
		}
	}

	r.Content = strings.TrimSpace(r.Content)
	contentLen := utf8.RuneCountInString(r.Content)
	if contentLen < 1 && len(r.Attachments) == 0 && r.CommandData == nil {
		return fmt.Errorf("message content is required")
	}
	if contentLen > MaxMessageLength {
		return fmt.Errorf("message content must be at most %d characters", MaxMessageLength)
	}

	if len(r.Attachments) > MaxAttachments {
		return fmt.Errorf("at most %d attachments allowed", MaxAttachments)
	}
	for _, url := range r.Attachments {
		if !ValidAttachmentURL(url) {
			return fmt.Errorf("attachment URL scheme not allowed")
		}
	}

	return nil
}

// EditMessageRequest, mesaj düzenleme isteği.
type EditMessageRequest struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

// Validate, EditMessageRequest'in geçerli olup olmadığını kontrol eder.
func (r *EditMessageRequest) Validate() error {
	if r.MessageID == "" {
		return fmt.Errorf("messageId is required")
	}
	r.Content = strings.TrimSpace(r.Content)
	contentLen := utf8.RuneCountInString(r.Content)
	if contentLen < 1 {
		return fmt.Errorf("message content is required")
	}
	if contentLen > MaxMessageLength {
		return fmt.Errorf("message content must be at most %d characters", MaxMessageLength)
	}
	return nil
}

// ReactRequest, reaction ekleme/çıkarma isteği.
type ReactRequest struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	Op        string `json:"op"` // "add" veya "remove"
}

// Validate, ReactRequest'in geçerli olup olmadığını kontrol eder.
func (r *ReactRequest) Validate() error {
	if r.MessageID == "" {
		return fmt.Errorf("messageId is required")
	}
	if r.Emoji == "" || utf8.RuneCountInString(r.Emoji) > 64 {
		return fmt.Errorf("invalid emoji")
	}
	if r.Op != "add" && r.Op != "remove" {
		return fmt.Errorf("op must be 'add' or 'remove'")
	}
	return nil
}

// ValidAttachmentURL, attachment URL'inin allow-list'teki scheme'lerden
// biriyle başlayıp başlamadığını kontrol eder.
func ValidAttachmentURL(url string) bool {
	return strings.HasPrefix(url, "http://") ||
		strings.HasPrefix(url, "https://") ||
		strings.HasPrefix(url, "data:")
}
