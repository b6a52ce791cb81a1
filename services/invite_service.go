package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nexushq/nexus/database"
	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/repository"
	"github.com/nexushq/nexus/ws"
)

// InviteService, davet yaşam döngüsü iş mantığı.
//
// Use yolu fails-closed çalışır: geçerlilik koşullarının tamamı tek
// atomik UPDATE'in WHERE'indedir — iki eşzamanlı kullanım limiti asla
// aşamaz, şüpheli durumda davet reddedilir.
type InviteService interface {
	Create(ctx context.Context, actorID string, req *models.CreateInviteRequest) (*models.Invite, error)
	// Peek, auth gerektirmez — davet linki önizlemesi.
	Peek(ctx context.Context, code string) (*models.InvitePeek, error)
	Use(ctx context.Context, userID, code string) (*models.Server, error)
	Revoke(ctx context.Context, actorID, code string) error
	ListByServer(ctx context.Context, actorID, serverID string) ([]models.Invite, error)
}

type inviteService struct {
	conn       *sql.DB
	inviteRepo repository.InviteRepository
	serverRepo repository.ServerRepository
	memberRepo repository.MemberRepository
	banRepo    repository.BanRepository
	perms      PermissionService
	servers    SnapshotBroadcaster
	hub        ws.EventPublisher
}

// NewInviteService, constructor.
func NewInviteService(
	conn *sql.DB,
	inviteRepo repository.InviteRepository,
	serverRepo repository.ServerRepository,
	memberRepo repository.MemberRepository,
	banRepo repository.BanRepository,
	perms PermissionService,
	servers SnapshotBroadcaster,
	hub ws.EventPublisher,
) InviteService {
	return &inviteService{
		conn:       conn,
		inviteRepo: inviteRepo,
		serverRepo: serverRepo,
		memberRepo: memberRepo,
		banRepo:    banRepo,
		perms:      perms,
		servers:    servers,
		hub:        hub,
	}
}

func (s *inviteService) Create(ctx context.Context, actorID string, req *models.CreateInviteRequest) (*models.Invite, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if err := s.perms.RequireServer(ctx, actorID, req.ServerID, models.PermCreateInvite); err != nil {
		return nil, err
	}

	invite := &models.Invite{
		ServerID:  req.ServerID,
		CreatedBy: actorID,
	}
	if req.MaxUses > 0 {
		invite.MaxUses = &req.MaxUses
	}
	if req.ExpiresInMinutes > 0 {
		t := time.Now().Add(time.Duration(req.ExpiresInMinutes) * time.Minute)
		invite.ExpiresAt = &t
	}

	// Kod çakışması pratikte olası değildir ama retry ucuzdur.
	for attempt := 0; attempt < 3; attempt++ {
		invite.Code = randomToken(4)
		err := s.inviteRepo.Create(ctx, invite)
		if err == nil {
			break
		}
		if !errors.Is(err, pkg.ErrAlreadyExists) || attempt == 2 {
			return nil, err
		}
	}

	s.hub.EmitToUser(actorID, ws.Event{Op: ws.OpInviteCreated, Data: invite})
	log.Printf("[invite] created: %s server=%s by=%s", invite.Code, invite.ServerID, actorID)
	return invite, nil
}

func (s *inviteService) Peek(ctx context.Context, code string) (*models.InvitePeek, error) {
	invite, err := s.inviteRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return &models.InvitePeek{Valid: false}, nil
		}
		return nil, err
	}
	if !invite.Usable() {
		return &models.InvitePeek{Valid: false}, nil
	}

	server, err := s.serverRepo.GetByID(ctx, invite.ServerID)
	if err != nil {
		return &models.InvitePeek{Valid: false}, nil
	}
	count, err := s.memberRepo.Count(ctx, invite.ServerID)
	if err != nil {
		return nil, err
	}

	return &models.InvitePeek{
		Valid:      true,
		Code:       invite.Code,
		ServerName: server.Name,
		ServerIcon: server.Icon,
		MemberCnt:  count,
	}, nil
}

func (s *inviteService) Use(ctx context.Context, userID, code string) (*models.Server, error) {
	invite, err := s.inviteRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: invite is invalid or expired", pkg.ErrNotFound)
		}
		return nil, err
	}

	banned, err := s.banRepo.IsBanned(ctx, invite.ServerID, userID)
	if err != nil {
		return nil, err
	}
	if banned {
		return nil, fmt.Errorf("%w: you are banned from this server", pkg.ErrForbidden)
	}

	if _, err := s.memberRepo.Get(ctx, userID, invite.ServerID); err == nil {
		return nil, fmt.Errorf("%w: already a member", pkg.ErrAlreadyExists)
	} else if !errors.Is(err, pkg.ErrNotFound) {
		return nil, err
	}

	// Sayaç artışı ve üyelik tek transaction'da: ConsumeUse 0 satır
	// etkilerse davet artık geçerli değildir ve üyelik de yazılmaz.
	err = database.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		if err := repository.NewSQLiteInviteRepo(tx).ConsumeUse(ctx, code); err != nil {
			if errors.Is(err, pkg.ErrNotFound) {
				return fmt.Errorf("%w: invite is invalid or expired", pkg.ErrNotFound)
			}
			return err
		}
		return repository.NewSQLiteMemberRepo(tx).Add(ctx, userID, invite.ServerID)
	})
	if err != nil {
		return nil, err
	}

	server, err := s.serverRepo.GetByID(ctx, invite.ServerID)
	if err != nil {
		return nil, err
	}

	s.hub.SubscribeUser(userID, ws.KeyServer(server.ID))
	s.hub.EmitTo(ws.KeyServer(server.ID), ws.Event{
		Op:   ws.OpMemberJoined,
		Data: map[string]string{"server_id": server.ID, "user_id": userID},
	})
	snapshot, err := s.servers.Snapshot(ctx, server.ID)
	if err != nil {
		return nil, err
	}
	s.hub.EmitToUser(userID, ws.Event{Op: ws.OpInviteJoined, Data: snapshot})

	log.Printf("[invite] used: %s user=%s server=%s", code, userID, server.ID)
	return server, nil
}

func (s *inviteService) Revoke(ctx context.Context, actorID, code string) error {
	invite, err := s.inviteRepo.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	// Daveti açan kendi davetini her zaman revoke edebilir.
	if invite.CreatedBy != actorID {
		if err := s.perms.RequireServer(ctx, actorID, invite.ServerID, models.PermManageServer); err != nil {
			return err
		}
	}
	return s.inviteRepo.Revoke(ctx, code)
}

func (s *inviteService) ListByServer(ctx context.Context, actorID, serverID string) ([]models.Invite, error) {
	if err := s.perms.RequireServer(ctx, actorID, serverID, models.PermCreateInvite); err != nil {
		return nil, err
	}
	return s.inviteRepo.ListByServer(ctx, serverID)
}
