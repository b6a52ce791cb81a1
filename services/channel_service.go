package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/nexushq/nexus/database"
	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/repository"
)

// ChannelService, kanal/kategori yapısı ve kanal override yönetimi.
//
// Yapısal her değişim server:updated snapshot broadcast'i ile sonuçlanır.
// Reorder transactional'dır: pozisyonlar tek tx içinde yazılır.
type ChannelService interface {
	Create(ctx context.Context, actorID, serverID string, req *models.CreateChannelRequest) (*models.Channel, error)
	Update(ctx context.Context, actorID, channelID string, req *models.UpdateChannelRequest) (*models.Channel, error)
	Delete(ctx context.Context, actorID, channelID string) error
	Move(ctx context.Context, actorID, channelID string, categoryID *string) error
	Reorder(ctx context.Context, actorID, serverID string, req *models.ReorderRequest) error

	CreateCategory(ctx context.Context, actorID, serverID string, req *models.CreateCategoryRequest) (*models.Category, error)
	UpdateCategory(ctx context.Context, actorID, categoryID, name string) error
	DeleteCategory(ctx context.Context, actorID, categoryID string) error
	ReorderCategories(ctx context.Context, actorID, serverID string, req *models.ReorderRequest) error

	SetOverride(ctx context.Context, actorID string, override *models.ChannelOverride) error
	RemoveOverride(ctx context.Context, actorID, channelID string, roleID, userID *string) error
}

type channelService struct {
	conn         *sql.DB
	channelRepo  repository.ChannelRepository
	categoryRepo repository.CategoryRepository
	overrideRepo repository.OverrideRepository
	perms        PermissionService
	servers      SnapshotBroadcaster
}

// NewChannelService, constructor.
func NewChannelService(
	conn *sql.DB,
	channelRepo repository.ChannelRepository,
	categoryRepo repository.CategoryRepository,
	overrideRepo repository.OverrideRepository,
	perms PermissionService,
	servers SnapshotBroadcaster,
) ChannelService {
	return &channelService{
		conn:         conn,
		channelRepo:  channelRepo,
		categoryRepo: categoryRepo,
		overrideRepo: overrideRepo,
		perms:        perms,
		servers:      servers,
	}
}

func (s *channelService) Create(ctx context.Context, actorID, serverID string, req *models.CreateChannelRequest) (*models.Channel, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if err := s.perms.RequireServer(ctx, actorID, serverID, models.PermManageChannels); err != nil {
		return nil, err
	}

	var categoryID *string
	if req.CategoryID != "" {
		category, err := s.categoryRepo.GetCategory(ctx, req.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("%w: category not found", pkg.ErrBadRequest)
		}
		if category.ServerID != serverID {
			return nil, fmt.Errorf("%w: category belongs to another server", pkg.ErrBadRequest)
		}
		categoryID = &req.CategoryID
	}

	channel := &models.Channel{
		ServerID:   &serverID,
		CategoryID: categoryID,
		Type:       models.ChannelType(req.Type),
		Name:       req.Name,
		IsPrivate:  req.IsPrivate,
	}
	if err := s.channelRepo.Create(ctx, channel); err != nil {
		return nil, err
	}

	s.servers.BroadcastSnapshot(ctx, serverID)
	log.Printf("[channel] created: #%s (%s) server=%s", channel.Name, channel.ID, serverID)
	return channel, nil
}

func (s *channelService) Update(ctx context.Context, actorID, channelID string, req *models.UpdateChannelRequest) (*models.Channel, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	channel, err := s.requireServerChannel(ctx, actorID, channelID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		channel.Name = *req.Name
	}
	if req.Description != nil {
		channel.Description = *req.Description
	}
	if req.IsPrivate != nil {
		channel.IsPrivate = *req.IsPrivate
	}
	if err := s.channelRepo.Update(ctx, channel); err != nil {
		return nil, err
	}

	s.servers.BroadcastSnapshot(ctx, *channel.ServerID)
	return channel, nil
}

func (s *channelService) Delete(ctx context.Context, actorID, channelID string) error {
	channel, err := s.requireServerChannel(ctx, actorID, channelID)
	if err != nil {
		return err
	}

	if err := s.channelRepo.Delete(ctx, channelID); err != nil {
		return err
	}

	s.servers.BroadcastSnapshot(ctx, *channel.ServerID)
	log.Printf("[channel] deleted: %s server=%s", channelID, *channel.ServerID)
	return nil
}

func (s *channelService) Move(ctx context.Context, actorID, channelID string, categoryID *string) error {
	channel, err := s.requireServerChannel(ctx, actorID, channelID)
	if err != nil {
		return err
	}

	if categoryID != nil {
		category, err := s.categoryRepo.GetCategory(ctx, *categoryID)
		if err != nil {
			return fmt.Errorf("%w: category not found", pkg.ErrBadRequest)
		}
		if category.ServerID != *channel.ServerID {
			return fmt.Errorf("%w: category belongs to another server", pkg.ErrBadRequest)
		}
	}

	if err := s.channelRepo.Move(ctx, channelID, categoryID); err != nil {
		return err
	}

	s.servers.BroadcastSnapshot(ctx, *channel.ServerID)
	return nil
}

func (s *channelService) Reorder(ctx context.Context, actorID, serverID string, req *models.ReorderRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if err := s.perms.RequireServer(ctx, actorID, serverID, models.PermManageChannels); err != nil {
		return err
	}

	err := database.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		return repository.NewSQLiteChannelRepo(tx).Reorder(ctx, serverID, req.Items)
	})
	if err != nil {
		return err
	}

	s.servers.BroadcastSnapshot(ctx, serverID)
	return nil
}

// ─── Kategoriler ───

func (s *channelService) CreateCategory(ctx context.Context, actorID, serverID string, req *models.CreateCategoryRequest) (*models.Category, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if err := s.perms.RequireServer(ctx, actorID, serverID, models.PermManageChannels); err != nil {
		return nil, err
	}

	category := &models.Category{ServerID: serverID, Name: req.Name}
	if err := s.categoryRepo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}

	s.servers.BroadcastSnapshot(ctx, serverID)
	return category, nil
}

func (s *channelService) UpdateCategory(ctx context.Context, actorID, categoryID, name string) error {
	req := models.CreateCategoryRequest{Name: name}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	category, err := s.categoryRepo.GetCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	if err := s.perms.RequireServer(ctx, actorID, category.ServerID, models.PermManageChannels); err != nil {
		return err
	}

	category.Name = req.Name
	if err := s.categoryRepo.UpdateCategory(ctx, category); err != nil {
		return err
	}

	s.servers.BroadcastSnapshot(ctx, category.ServerID)
	return nil
}

func (s *channelService) DeleteCategory(ctx context.Context, actorID, categoryID string) error {
	category, err := s.categoryRepo.GetCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	if err := s.perms.RequireServer(ctx, actorID, category.ServerID, models.PermManageChannels); err != nil {
		return err
	}

	// Kanallar silinmez — kategorisiz kalır (FK SET NULL).
	if err := s.categoryRepo.DeleteCategory(ctx, categoryID); err != nil {
		return err
	}

	s.servers.BroadcastSnapshot(ctx, category.ServerID)
	return nil
}

func (s *channelService) ReorderCategories(ctx context.Context, actorID, serverID string, req *models.ReorderRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if err := s.perms.RequireServer(ctx, actorID, serverID, models.PermManageChannels); err != nil {
		return err
	}

	err := database.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		return repository.NewSQLiteCategoryRepo(tx).ReorderCategories(ctx, serverID, req.Items)
	})
	if err != nil {
		return err
	}

	s.servers.BroadcastSnapshot(ctx, serverID)
	return nil
}

// ─── Override'lar ───

func (s *channelService) SetOverride(ctx context.Context, actorID string, override *models.ChannelOverride) error {
	if (override.RoleID == nil) == (override.UserID == nil) {
		return fmt.Errorf("%w: exactly one of roleId or userId is required", pkg.ErrBadRequest)
	}
	channel, err := s.requireServerChannel(ctx, actorID, override.ChannelID)
	if err != nil {
		return err
	}

	override.Allow &= models.PermAll
	override.Deny &= models.PermAll

	if override.RoleID != nil {
		err = s.overrideRepo.SetRoleOverride(ctx, override.ChannelID, *override.RoleID, override.Allow, override.Deny)
	} else {
		err = s.overrideRepo.SetUserOverride(ctx, override.ChannelID, *override.UserID, override.Allow, override.Deny)
	}
	if err != nil {
		return err
	}

	s.perms.InvalidateServer(*channel.ServerID)
	s.servers.BroadcastSnapshot(ctx, *channel.ServerID)
	return nil
}

func (s *channelService) RemoveOverride(ctx context.Context, actorID, channelID string, roleID, userID *string) error {
	if (roleID == nil) == (userID == nil) {
		return fmt.Errorf("%w: exactly one of roleId or userId is required", pkg.ErrBadRequest)
	}
	channel, err := s.requireServerChannel(ctx, actorID, channelID)
	if err != nil {
		return err
	}

	if roleID != nil {
		err = s.overrideRepo.RemoveRoleOverride(ctx, channelID, *roleID)
	} else {
		err = s.overrideRepo.RemoveUserOverride(ctx, channelID, *userID)
	}
	if err != nil {
		return err
	}

	s.perms.InvalidateServer(*channel.ServerID)
	s.servers.BroadcastSnapshot(ctx, *channel.ServerID)
	return nil
}

// requireServerChannel: kanal bir sunucuya ait olmalı (DM yapısal olarak
// yönetilemez) ve actor manageChannels taşımalı.
func (s *channelService) requireServerChannel(ctx context.Context, actorID, channelID string) (*models.Channel, error) {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.ServerID == nil {
		return nil, fmt.Errorf("%w: direct message channels cannot be managed", pkg.ErrBadRequest)
	}
	if err := s.perms.RequireServer(ctx, actorID, *channel.ServerID, models.PermManageChannels); err != nil {
		return nil, err
	}
	return channel, nil
}
