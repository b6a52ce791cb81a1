package repository

import (
	"context"

	"github.com/nexushq/nexus/models"
)

// OverrideRepository, kanal bazlı permission override'larını yönetir.
//
// Bir override satırında role_id veya user_id'den tam olarak biri doludur
// (şema CHECK constraint'i bunu zorlar). Set upsert semantiğindedir.
type OverrideRepository interface {
	SetRoleOverride(ctx context.Context, channelID, roleID string, allow, deny models.Permission) error
	SetUserOverride(ctx context.Context, channelID, userID string, allow, deny models.Permission) error
	RemoveRoleOverride(ctx context.Context, channelID, roleID string) error
	RemoveUserOverride(ctx context.Context, channelID, userID string) error
	ListByChannel(ctx context.Context, channelID string) ([]models.ChannelOverride, error)
}
