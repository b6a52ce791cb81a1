package repository

import (
	"context"

	"github.com/nexushq/nexus/models"
)

// BanRepository, sunucu ban listesini yönetir.
type BanRepository interface {
	Add(ctx context.Context, ban *models.Ban) error
	Remove(ctx context.Context, serverID, userID string) error
	IsBanned(ctx context.Context, serverID, userID string) (bool, error)
	ListByServer(ctx context.Context, serverID string) ([]models.Ban, error)
}
