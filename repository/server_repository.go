package repository

import (
	"context"

	"github.com/nexushq/nexus/models"
)

// ServerRepository, sunucu (topluluk) kayıtlarını yönetir.
//
// Transactional akışlar (provisioning, sahiplik devri) için service
// katmanı database.WithTx içinde tx üzerinden yeni bir repo kurar —
// constructor'lar TxQuerier aldığı için *sql.DB ve *sql.Tx aynı şekilde çalışır.
type ServerRepository interface {
	Create(ctx context.Context, server *models.Server) error
	GetByID(ctx context.Context, id string) (*models.Server, error)
	GetByUser(ctx context.Context, userID string) ([]models.Server, error)
	Update(ctx context.Context, server *models.Server) error
	TransferOwnership(ctx context.Context, serverID, newOwnerID string) error
	Archive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
