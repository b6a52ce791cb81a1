package repository

import (
	"context"

	"github.com/nexushq/nexus/models"
)

// ReadStateRepository, kullanıcı-kanal başına okuma cursor'ını yönetir.
// Unread count'lar bu cursor ile messages tablosundan hesaplanır.
type ReadStateRepository interface {
	Upsert(ctx context.Context, userID, channelID, lastReadMessageID string) error
	Get(ctx context.Context, userID, channelID string) (*models.ReadState, error)
	ListForUser(ctx context.Context, userID string) ([]models.ReadState, error)
}
