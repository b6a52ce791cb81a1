package repository

import (
	"context"

	"github.com/nexushq/nexus/models"
)

// MessageRepository, chat mesajlarını yönetir.
//
// Mesaj ID'leri service katmanında üretilir (time-sortable) — repo hazır
// ID bekler. Sıralama ID üzerindendir: TEXT kolonda sayısal sıra için
// CAST ile karşılaştırılır.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	// GetPage, beforeID cursor'ından geriye doğru en yeni N mesajı döner
	// (kronolojik sırada). beforeID boşsa kanalın son sayfası.
	GetPage(ctx context.Context, channelID, beforeID string, limit int) (*models.MessagePage, error)
	UpdateContent(ctx context.Context, id, content string) error
	// SoftDelete, mesajı işaretler — satır kalır, history'den düşer.
	SoftDelete(ctx context.Context, id string) error
	LastMessageID(ctx context.Context, channelID string) (string, error)
	CountAfter(ctx context.Context, channelID, afterID string) (int, error)
}

// ReactionRepository, mesaj reaction'larını yönetir.
type ReactionRepository interface {
	// Add idempotent'tir: aynı (message, user, emoji) ikinci kez eklenirse
	// false döner ve hata üretmez.
	Add(ctx context.Context, messageID, userID, emoji string) (bool, error)
	Remove(ctx context.Context, messageID, userID, emoji string) (bool, error)
	// MapFor, mesaj listesi için emoji → userID listesi haritalarını döner.
	MapFor(ctx context.Context, messageIDs []string) (map[string]map[string][]string, error)
}
