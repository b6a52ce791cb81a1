package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"

	"github.com/nexushq/nexus/database"
	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/repository"
	"github.com/nexushq/nexus/ws"
)

// SnapshotBroadcaster, rol/kanal/kategori değişimlerinden sonra sunucunun
// tam görünümünü yayınlamak isteyen service'lerin kullandığı dar interface.
type SnapshotBroadcaster interface {
	Snapshot(ctx context.Context, serverID string) (*models.ServerSnapshot, error)
	BroadcastSnapshot(ctx context.Context, serverID string)
}

// ServerService, sunucu yaşam döngüsü iş mantığı.
//
// Provisioning transactional'dır: sunucu + @everyone rolü + varsayılan
// kanallar + owner üyeliği ya hep birlikte oluşur ya hiç oluşmaz.
type ServerService interface {
	SnapshotBroadcaster

	Create(ctx context.Context, ownerID string, req *models.CreateServerRequest) (*models.ServerSnapshot, error)
	ListForUser(ctx context.Context, userID string) ([]models.ServerSnapshot, error)
	Update(ctx context.Context, userID, serverID string, req *models.UpdateServerRequest) error
	Delete(ctx context.Context, userID, serverID string) error
	// Leave: owner ayrılırsa sahiplik manageServer yetkili en eski üyeye
	// devredilir; aday yoksa sunucu arşivlenir.
	Leave(ctx context.Context, userID, serverID string) error
	Members(ctx context.Context, userID, serverID string) ([]models.Member, error)
}

type serverService struct {
	conn         *sql.DB
	serverRepo   repository.ServerRepository
	memberRepo   repository.MemberRepository
	roleRepo     repository.RoleRepository
	channelRepo  repository.ChannelRepository
	categoryRepo repository.CategoryRepository
	perms        PermissionService
	hub          ws.EventPublisher
}

// NewServerService, constructor. conn transactional provisioning için gereklidir.
func NewServerService(
	conn *sql.DB,
	serverRepo repository.ServerRepository,
	memberRepo repository.MemberRepository,
	roleRepo repository.RoleRepository,
	channelRepo repository.ChannelRepository,
	categoryRepo repository.CategoryRepository,
	perms PermissionService,
	hub ws.EventPublisher,
) ServerService {
	return &serverService{
		conn:         conn,
		serverRepo:   serverRepo,
		memberRepo:   memberRepo,
		roleRepo:     roleRepo,
		channelRepo:  channelRepo,
		categoryRepo: categoryRepo,
		perms:        perms,
		hub:          hub,
	}
}

func (s *serverService) Create(ctx context.Context, ownerID string, req *models.CreateServerRequest) (*models.ServerSnapshot, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	server := &models.Server{
		ID:      uuid.New().String(),
		Name:    req.Name,
		OwnerID: ownerID,
	}

	err := database.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		serverRepo := repository.NewSQLiteServerRepo(tx)
		roleRepo := repository.NewSQLiteRoleRepo(tx)
		categoryRepo := repository.NewSQLiteCategoryRepo(tx)
		channelRepo := repository.NewSQLiteChannelRepo(tx)
		memberRepo := repository.NewSQLiteMemberRepo(tx)

		if err := serverRepo.Create(ctx, server); err != nil {
			return err
		}
		everyone := &models.Role{
			ServerID:    server.ID,
			Name:        models.EveryoneRoleName,
			Color:       "#99aab5",
			Permissions: models.PermEveryoneDefault,
			Position:    0,
			IsEveryone:  true,
		}
		if err := roleRepo.Create(ctx, everyone); err != nil {
			return err
		}

		// Varsayılan düzen: "General" kategorisi altında bir text + bir
		// voice kanal. Yeni sunucu boş bir kabuk değil, kullanılabilir
		// bir yerdir.
		category := &models.Category{ServerID: server.ID, Name: "General"}
		if err := categoryRepo.CreateCategory(ctx, category); err != nil {
			return err
		}
		serverID := server.ID
		defaults := []models.Channel{
			{ServerID: &serverID, CategoryID: &category.ID, Type: models.ChannelTypeText, Name: "general"},
			{ServerID: &serverID, CategoryID: &category.ID, Type: models.ChannelTypeVoice, Name: "General"},
		}
		for i := range defaults {
			if err := channelRepo.Create(ctx, &defaults[i]); err != nil {
				return err
			}
		}
		return memberRepo.Add(ctx, ownerID, server.ID)
	})
	if err != nil {
		return nil, err
	}

	// Yeni sunucunun room'una owner'ın açık socket'leri hemen abone olur.
	s.hub.SubscribeUser(ownerID, ws.KeyServer(server.ID))

	snapshot, err := s.Snapshot(ctx, server.ID)
	if err != nil {
		return nil, err
	}
	s.hub.EmitToUser(ownerID, ws.Event{Op: ws.OpServerCreated, Data: snapshot})
	log.Printf("[server] created: %s (%s) owner=%s", server.Name, server.ID, ownerID)
	return snapshot, nil
}

// Snapshot, sunucunun tam görünümünü toplar: kategoriler pozisyon sırasında,
// kanallar kategorilerinin altında, kategorisiz kanallar başta sentetik bir
// grupta.
func (s *serverService) Snapshot(ctx context.Context, serverID string) (*models.ServerSnapshot, error) {
	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		return nil, err
	}

	categories, err := s.categoryRepo.ListCategories(ctx, serverID)
	if err != nil {
		return nil, err
	}
	channels, err := s.channelRepo.ListByServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	roles, err := s.roleRepo.ListByServer(ctx, serverID)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string][]models.Channel)
	var uncategorized []models.Channel
	for _, ch := range channels {
		if ch.CategoryID == nil {
			uncategorized = append(uncategorized, ch)
			continue
		}
		byCategory[*ch.CategoryID] = append(byCategory[*ch.CategoryID], ch)
	}

	grouped := make([]models.CategoryWithChannels, 0, len(categories)+1)
	if len(uncategorized) > 0 {
		sortChannels(uncategorized)
		grouped = append(grouped, models.CategoryWithChannels{
			Category: models.Category{ServerID: serverID},
			Channels: uncategorized,
		})
	}
	for _, cat := range categories {
		chs := byCategory[cat.ID]
		sortChannels(chs)
		if chs == nil {
			chs = []models.Channel{}
		}
		grouped = append(grouped, models.CategoryWithChannels{Category: cat, Channels: chs})
	}

	return &models.ServerSnapshot{
		Server:     *server,
		Categories: grouped,
		Roles:      roles,
	}, nil
}

// BroadcastSnapshot, server:updated event'ini sunucu room'una yayınlar.
// Snapshot toplanamazsa sessizce loglanır — broadcast best-effort'tur.
func (s *serverService) BroadcastSnapshot(ctx context.Context, serverID string) {
	snapshot, err := s.Snapshot(ctx, serverID)
	if err != nil {
		log.Printf("[server] snapshot failed for %s: %v", serverID, err)
		return
	}
	s.hub.EmitTo(ws.KeyServer(serverID), ws.Event{Op: ws.OpServerUpdated, Data: snapshot})
}

func (s *serverService) ListForUser(ctx context.Context, userID string) ([]models.ServerSnapshot, error) {
	servers, err := s.serverRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	snapshots := make([]models.ServerSnapshot, 0, len(servers))
	for _, server := range servers {
		snapshot, err := s.Snapshot(ctx, server.ID)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *snapshot)
	}
	return snapshots, nil
}

func (s *serverService) Update(ctx context.Context, userID, serverID string, req *models.UpdateServerRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if err := s.perms.RequireServer(ctx, userID, serverID, models.PermManageServer); err != nil {
		return err
	}

	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		return err
	}
	if req.Name != nil {
		server.Name = *req.Name
	}
	if req.Icon != nil {
		server.Icon = req.Icon
	}
	if err := s.serverRepo.Update(ctx, server); err != nil {
		return err
	}

	s.BroadcastSnapshot(ctx, serverID)
	return nil
}

// Delete — yalnızca owner. Tüm online üyeler server:deleted alır ve
// room'lardan düşürülür.
func (s *serverService) Delete(ctx context.Context, userID, serverID string) error {
	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		return err
	}
	if server.OwnerID != userID {
		return fmt.Errorf("%w: only the owner can delete a server", pkg.ErrForbidden)
	}

	memberIDs, err := s.memberRepo.ListUserIDs(ctx, serverID)
	if err != nil {
		return err
	}
	channels, err := s.channelRepo.ListByServer(ctx, serverID)
	if err != nil {
		return err
	}

	if err := s.serverRepo.Delete(ctx, serverID); err != nil {
		return err
	}

	s.hub.EmitTo(ws.KeyServer(serverID), ws.Event{
		Op:   ws.OpServerDeleted,
		Data: map[string]string{"id": serverID},
	})
	keys := make([]string, 0, len(channels)+1)
	keys = append(keys, ws.KeyServer(serverID))
	for _, ch := range channels {
		keys = append(keys, ws.KeyChannel(ch.ID))
	}
	for _, memberID := range memberIDs {
		s.hub.UnsubscribeUser(memberID, keys...)
	}
	s.perms.InvalidateServer(serverID)
	log.Printf("[server] deleted: %s by owner %s", serverID, userID)
	return nil
}

func (s *serverService) Leave(ctx context.Context, userID, serverID string) error {
	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		return err
	}
	if _, err := s.memberRepo.Get(ctx, userID, serverID); err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return fmt.Errorf("%w: not a member", pkg.ErrBadRequest)
		}
		return err
	}

	if server.OwnerID == userID {
		if err := s.handOverOrArchive(ctx, server); err != nil {
			return err
		}
	}

	if err := s.memberRepo.Remove(ctx, userID, serverID); err != nil {
		return err
	}
	s.perms.InvalidateUser(userID)

	s.unsubscribeFromServer(ctx, userID, serverID)
	s.hub.EmitTo(ws.KeyServer(serverID), ws.Event{
		Op:   ws.OpMemberLeft,
		Data: map[string]string{"server_id": serverID, "user_id": userID},
	})
	return nil
}

// handOverOrArchive: owner ayrılırken sahiplik devri denemesi.
// Aday sırası: manageServer yetkili en eski üye; yoksa arşiv.
func (s *serverService) handOverOrArchive(ctx context.Context, server *models.Server) error {
	heir, err := s.memberRepo.LongestJoinedWith(ctx, server.ID, models.PermManageServer, server.OwnerID)
	if errors.Is(err, pkg.ErrNotFound) {
		if err := s.serverRepo.Archive(ctx, server.ID); err != nil {
			return err
		}
		log.Printf("[server] archived: %s (owner left, no successor)", server.ID)
		s.hub.EmitTo(ws.KeyServer(server.ID), ws.Event{
			Op:   ws.OpServerDeleted,
			Data: map[string]string{"id": server.ID, "reason": "archived"},
		})
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.serverRepo.TransferOwnership(ctx, server.ID, heir); err != nil {
		return err
	}
	s.perms.InvalidateServer(server.ID)
	log.Printf("[server] ownership transferred: %s -> %s", server.ID, heir)
	s.BroadcastSnapshot(ctx, server.ID)
	return nil
}

func (s *serverService) Members(ctx context.Context, userID, serverID string) ([]models.Member, error) {
	if err := s.perms.RequireServer(ctx, userID, serverID, models.PermViewChannel); err != nil {
		return nil, err
	}
	return s.memberRepo.ListByServer(ctx, serverID)
}

// unsubscribeFromServer, kullanıcının socket'lerini sunucunun tüm
// room'larından çıkarır (kick/ban/leave sonrası).
func (s *serverService) unsubscribeFromServer(ctx context.Context, userID, serverID string) {
	keys := []string{ws.KeyServer(serverID)}
	if channels, err := s.channelRepo.ListByServer(ctx, serverID); err == nil {
		for _, ch := range channels {
			keys = append(keys, ws.KeyChannel(ch.ID), ws.KeyVoice(ch.ID))
		}
	}
	s.hub.UnsubscribeUser(userID, keys...)
}

func sortChannels(channels []models.Channel) {
	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].Position < channels[j].Position
	})
}
