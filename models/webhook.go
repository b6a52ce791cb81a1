package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Webhook, bir kanala bağlı webhook'u temsil eder.
//
// Token yalnızca oluşturma yanıtında bir kez açığa çıkar — list/get
// çağrıları token döndürmez. Ingest auth'u (id, token) çifti üzerinden
// constant-time compare ile yapılır.
type Webhook struct {
	ID        string    `json:"id"`
	Token     string    `json:"token,omitempty"` // sadece create yanıtında dolu
	ChannelID string    `json:"channel_id"`
	Name      string    `json:"name"`
	Avatar    *string   `json:"avatar"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateWebhookRequest, webhook oluşturma isteği.
type CreateWebhookRequest struct {
	ChannelID string `json:"channelId"`
	Name      string `json:"name"`
}

// Validate, CreateWebhookRequest'in geçerli olup olmadığını kontrol eder.
func (r *CreateWebhookRequest) Validate() error {
	if r.ChannelID == "" {
		return fmt.Errorf("channelId is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	nameLen := utf8.RuneCountInString(r.Name)
	if nameLen < 1 || nameLen > 80 {
		return fmt.Errorf("webhook name must be between 1 and 80 characters")
	}
	return nil
}

// WebhookPayload, POST /api/webhooks/<id>/<token> body'si.
// AvatarURL, Avatar'ın alternatif alan adıdır — ikisi de kabul edilir.
type WebhookPayload struct {
	Content     string   `json:"content"`
	Username    string   `json:"username,omitempty"`
	Avatar      string   `json:"avatar,omitempty"`
	AvatarURL   string   `json:"avatar_url,omitempty"`
	Embeds      []Embed  `json:"embeds,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// Validate, webhook payload'ını mesaj kurallarına göre kontrol eder.
// Content boş olabilir — embed veya attachment taşıyan payload geçerlidir.
func (p *WebhookPayload) Validate() error {
	p.Content = strings.TrimSpace(p.Content)
	if p.Content == "" && len(p.Embeds) == 0 && len(p.Attachments) == 0 {
		return fmt.Errorf("payload must carry content, embeds or attachments")
	}
	if utf8.RuneCountInString(p.Content) > MaxMessageLength {
		return fmt.Errorf("content must be at most %d characters", MaxMessageLength)
	}
	if len(p.Embeds) > MaxEmbeds {
		return fmt.Errorf("at most %d embeds allowed", MaxEmbeds)
	}
	if len(p.Attachments) > MaxAttachments {
		return fmt.Errorf("at most %d attachments allowed", MaxAttachments)
	}
	for _, url := range p.Attachments {
		if !ValidAttachmentURL(url) {
			return fmt.Errorf("attachment URL scheme not allowed")
		}
	}
	if utf8.RuneCountInString(p.Username) > 80 {
		return fmt.Errorf("username override must be at most 80 characters")
	}
	return nil
}

// AvatarOverride, payload'daki avatar alanlarından dolu olanı döner.
func (p *WebhookPayload) AvatarOverride() string {
	if p.Avatar != "" {
		return p.Avatar
	}
	return p.AvatarURL
}
