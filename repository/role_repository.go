package repository

import (
	"context"

	"github.com/nexushq/nexus/models"
)

// RoleRepository, roller ve rol atamalarını yönetir.
//
// @everyone rolü de normal bir role satırıdır (is_everyone = 1) —
// permission engine onu her üyenin base'ine dahil eder.
type RoleRepository interface {
	Create(ctx context.Context, role *models.Role) error
	GetByID(ctx context.Context, id string) (*models.Role, error)
	GetEveryone(ctx context.Context, serverID string) (*models.Role, error)
	ListByServer(ctx context.Context, serverID string) ([]models.Role, error)
	Update(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, id string) error

	Assign(ctx context.Context, userID, roleID, serverID string) error
	Unassign(ctx context.Context, userID, roleID string) error
	// RolesOf, kullanıcının sunucudaki atanmış rollerini döner
	// (@everyone hariç — onu permission engine ayrıca ekler).
	RolesOf(ctx context.Context, userID, serverID string) ([]models.Role, error)
}
