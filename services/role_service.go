package services

import (
	"context"
	"fmt"
	"log"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/repository"
)

// RoleService, rol CRUD ve atama iş mantığı.
//
// Her değişimden sonra permission cache sunucu ölçeğinde düşürülür ve
// server:updated snapshot'ı yayınlanır — client rol listesini tek
// event'ten yeniden kurar.
type RoleService interface {
	Create(ctx context.Context, actorID string, req *models.CreateRoleRequest) (*models.Role, error)
	Update(ctx context.Context, actorID string, req *models.UpdateRoleRequest) (*models.Role, error)
	Delete(ctx context.Context, actorID, roleID string) error
	Assign(ctx context.Context, actorID, serverID, roleID, targetID string) error
	Unassign(ctx context.Context, actorID, serverID, roleID, targetID string) error
}

type roleService struct {
	roleRepo   repository.RoleRepository
	memberRepo repository.MemberRepository
	perms      PermissionService
	servers    SnapshotBroadcaster
}

// NewRoleService, constructor.
func NewRoleService(
	roleRepo repository.RoleRepository,
	memberRepo repository.MemberRepository,
	perms PermissionService,
	servers SnapshotBroadcaster,
) RoleService {
	return &roleService{
		roleRepo:   roleRepo,
		memberRepo: memberRepo,
		perms:      perms,
		servers:    servers,
	}
}

func (s *roleService) Create(ctx context.Context, actorID string, req *models.CreateRoleRequest) (*models.Role, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if err := s.perms.RequireServer(ctx, actorID, req.ServerID, models.PermManageRoles); err != nil {
		return nil, err
	}

	// Yeni rol mevcut en yüksek pozisyonun üstüne gelir.
	existing, err := s.roleRepo.ListByServer(ctx, req.ServerID)
	if err != nil {
		return nil, err
	}
	position := 1
	for _, r := range existing {
		if r.Position >= position {
			position = r.Position + 1
		}
	}

	role := &models.Role{
		ServerID:    req.ServerID,
		Name:        req.Name,
		Color:       req.Color,
		Permissions: models.Permission(req.Permissions),
		Position:    position,
	}
	if err := s.roleRepo.Create(ctx, role); err != nil {
		return nil, err
	}

	s.invalidateAndBroadcast(ctx, req.ServerID)
	log.Printf("[role] created: %s (%s) server=%s", role.Name, role.ID, role.ServerID)
	return role, nil
}

func (s *roleService) Update(ctx context.Context, actorID string, req *models.UpdateRoleRequest) (*models.Role, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	role, err := s.roleRepo.GetByID(ctx, req.RoleID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.RequireServer(ctx, actorID, role.ServerID, models.PermManageRoles); err != nil {
		return nil, err
	}
	if role.IsEveryone && (req.Name != nil || req.Position != nil) {
		// @everyone yeniden adlandırılamaz ve pozisyonu 0'da sabittir;
		// yalnızca permission ve renk değişebilir.
		return nil, fmt.Errorf("%w: cannot rename or reposition the everyone role", pkg.ErrBadRequest)
	}

	if req.Name != nil {
		role.Name = *req.Name
	}
	if req.Color != nil {
		role.Color = *req.Color
	}
	if req.Permissions != nil {
		role.Permissions = models.Permission(*req.Permissions) & models.PermAll
	}
	if req.Position != nil {
		role.Position = *req.Position
	}

	if err := s.roleRepo.Update(ctx, role); err != nil {
		return nil, err
	}

	s.invalidateAndBroadcast(ctx, role.ServerID)
	return role, nil
}

func (s *roleService) Delete(ctx context.Context, actorID, roleID string) error {
	role, err := s.roleRepo.GetByID(ctx, roleID)
	if err != nil {
		return err
	}
	if err := s.perms.RequireServer(ctx, actorID, role.ServerID, models.PermManageRoles); err != nil {
		return err
	}
	if role.IsEveryone {
		return fmt.Errorf("%w: cannot delete the everyone role", pkg.ErrBadRequest)
	}

	if err := s.roleRepo.Delete(ctx, roleID); err != nil {
		return err
	}

	s.invalidateAndBroadcast(ctx, role.ServerID)
	log.Printf("[role] deleted: %s server=%s", roleID, role.ServerID)
	return nil
}

func (s *roleService) Assign(ctx context.Context, actorID, serverID, roleID, targetID string) error {
	if err := s.assignmentCheck(ctx, actorID, serverID, roleID, targetID); err != nil {
		return err
	}
	if err := s.roleRepo.Assign(ctx, targetID, roleID, serverID); err != nil {
		return err
	}
	s.perms.InvalidateUser(targetID)
	s.servers.BroadcastSnapshot(ctx, serverID)
	return nil
}

func (s *roleService) Unassign(ctx context.Context, actorID, serverID, roleID, targetID string) error {
	if err := s.assignmentCheck(ctx, actorID, serverID, roleID, targetID); err != nil {
		return err
	}
	if err := s.roleRepo.Unassign(ctx, targetID, roleID); err != nil {
		return err
	}
	s.perms.InvalidateUser(targetID)
	s.servers.BroadcastSnapshot(ctx, serverID)
	return nil
}

// assignmentCheck: rol sunucuya ait olmalı, target üye olmalı, @everyone
// elle atanamaz.
func (s *roleService) assignmentCheck(ctx context.Context, actorID, serverID, roleID, targetID string) error {
	if err := s.perms.RequireServer(ctx, actorID, serverID, models.PermManageRoles); err != nil {
		return err
	}

	role, err := s.roleRepo.GetByID(ctx, roleID)
	if err != nil {
		return err
	}
	if role.ServerID != serverID {
		return fmt.Errorf("%w: role belongs to another server", pkg.ErrBadRequest)
	}
	if role.IsEveryone {
		return fmt.Errorf("%w: the everyone role cannot be assigned", pkg.ErrBadRequest)
	}
	if _, err := s.memberRepo.Get(ctx, targetID, serverID); err != nil {
		return fmt.Errorf("%w: user is not a member", pkg.ErrBadRequest)
	}
	return nil
}

func (s *roleService) invalidateAndBroadcast(ctx context.Context, serverID string) {
	s.perms.InvalidateServer(serverID)
	s.servers.BroadcastSnapshot(ctx, serverID)
}
