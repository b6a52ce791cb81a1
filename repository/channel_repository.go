package repository

import (
	"context"

	"github.com/nexushq/nexus/models"
)

// ChannelRepository, text/voice/DM kanallarını yönetir.
//
// DM kanalları da bu tablodadır (server_id NULL); katılımcı ilişkisi
// DMRepository'dedir.
type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	GetByID(ctx context.Context, id string) (*models.Channel, error)
	ListByServer(ctx context.Context, serverID string) ([]models.Channel, error)
	Update(ctx context.Context, channel *models.Channel) error
	Move(ctx context.Context, channelID string, categoryID *string) error
	Delete(ctx context.Context, id string) error
	// Reorder, tüm pozisyonları tek transaction'da günceller —
	// ya hepsi ya hiçbiri.
	Reorder(ctx context.Context, serverID string, items []models.PositionUpdate) error
}

// CategoryRepository, kanal kategorilerini yönetir.
type CategoryRepository interface {
	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	ListCategories(ctx context.Context, serverID string) ([]models.Category, error)
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id string) error
	ReorderCategories(ctx context.Context, serverID string, items []models.PositionUpdate) error
}
