package repository

import (
	"context"

	"github.com/nexushq/nexus/models"
)

// InviteRepository, davet kodlarını yönetir.
type InviteRepository interface {
	Create(ctx context.Context, invite *models.Invite) error
	GetByCode(ctx context.Context, code string) (*models.Invite, error)
	ListByServer(ctx context.Context, serverID string) ([]models.Invite, error)
	Revoke(ctx context.Context, code string) error
	// ConsumeUse, kullanım sayacını atomik olarak artırır. Süresi dolmuş,
	// revoke edilmiş veya kullanım limiti dolmuş davette hiçbir satır
	// etkilenmez ve ErrNotFound döner — fails-closed.
	ConsumeUse(ctx context.Context, code string) error
}
