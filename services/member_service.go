package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/repository"
	"github.com/nexushq/nexus/ws"
)

// MemberService, moderasyon operasyonları: kick, ban, unban, timeout.
//
// Tüm operasyonlar iki kontrol katmanından geçer: sunucu yetkisi
// (kickMembers/banMembers/timeoutMembers) ve rol hiyerarşisi — actor'ün
// en yüksek rolü target'ınkinden yüksek olmalıdır, owner dokunulmazdır.
type MemberService interface {
	Kick(ctx context.Context, actorID, serverID, targetID string) error
	Ban(ctx context.Context, actorID, serverID, targetID, reason string) error
	Unban(ctx context.Context, actorID, serverID, targetID string) error
	ListBans(ctx context.Context, actorID, serverID string) ([]models.Ban, error)
	// Timeout, üyeyi minutes dakika susturur. minutes 0 → timeout kaldırılır.
	Timeout(ctx context.Context, actorID, serverID, targetID string, minutes int) error
}

type memberService struct {
	serverRepo repository.ServerRepository
	memberRepo repository.MemberRepository
	banRepo    repository.BanRepository
	perms      PermissionService
	servers    SnapshotBroadcaster
	hub        ws.EventPublisher
}

// NewMemberService, constructor.
func NewMemberService(
	serverRepo repository.ServerRepository,
	memberRepo repository.MemberRepository,
	banRepo repository.BanRepository,
	perms PermissionService,
	servers SnapshotBroadcaster,
	hub ws.EventPublisher,
) MemberService {
	return &memberService{
		serverRepo: serverRepo,
		memberRepo: memberRepo,
		banRepo:    banRepo,
		perms:      perms,
		servers:    servers,
		hub:        hub,
	}
}

func (s *memberService) Kick(ctx context.Context, actorID, serverID, targetID string) error {
	if err := s.moderationCheck(ctx, actorID, serverID, targetID, models.PermKickMembers); err != nil {
		return err
	}

	if err := s.memberRepo.Remove(ctx, targetID, serverID); err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return fmt.Errorf("%w: user is not a member", pkg.ErrBadRequest)
		}
		return err
	}
	s.perms.InvalidateUser(targetID)

	s.evict(ctx, serverID, targetID, ws.OpUserKicked)
	log.Printf("[member] kicked: user=%s server=%s by=%s", targetID, serverID, actorID)
	return nil
}

func (s *memberService) Ban(ctx context.Context, actorID, serverID, targetID, reason string) error {
	if err := s.moderationCheck(ctx, actorID, serverID, targetID, models.PermBanMembers); err != nil {
		return err
	}

	if err := s.banRepo.Add(ctx, &models.Ban{
		ServerID: serverID,
		UserID:   targetID,
		BannedBy: actorID,
		Reason:   reason,
	}); err != nil {
		return err
	}
	// Üyelik varsa düşer; ban üye olmayan kullanıcıya da konabilir.
	if err := s.memberRepo.Remove(ctx, targetID, serverID); err != nil && !errors.Is(err, pkg.ErrNotFound) {
		return err
	}
	s.perms.InvalidateUser(targetID)

	s.evict(ctx, serverID, targetID, ws.OpUserBanned)
	log.Printf("[member] banned: user=%s server=%s by=%s", targetID, serverID, actorID)
	return nil
}

func (s *memberService) Unban(ctx context.Context, actorID, serverID, targetID string) error {
	if err := s.perms.RequireServer(ctx, actorID, serverID, models.PermBanMembers); err != nil {
		return err
	}
	return s.banRepo.Remove(ctx, serverID, targetID)
}

func (s *memberService) ListBans(ctx context.Context, actorID, serverID string) ([]models.Ban, error) {
	if err := s.perms.RequireServer(ctx, actorID, serverID, models.PermBanMembers); err != nil {
		return nil, err
	}
	return s.banRepo.ListByServer(ctx, serverID)
}

func (s *memberService) Timeout(ctx context.Context, actorID, serverID, targetID string, minutes int) error {
	if err := s.moderationCheck(ctx, actorID, serverID, targetID, models.PermTimeoutMembers); err != nil {
		return err
	}

	var until *time.Time
	if minutes > 0 {
		if minutes < models.MinTimeoutMinutes || minutes > models.MaxTimeoutMinutes {
			return fmt.Errorf("%w: timeout must be between %d and %d minutes",
				pkg.ErrBadRequest, models.MinTimeoutMinutes, models.MaxTimeoutMinutes)
		}
		t := time.Now().Add(time.Duration(minutes) * time.Minute)
		until = &t
	}

	if err := s.memberRepo.SetTimeout(ctx, targetID, serverID, until); err != nil {
		return err
	}
	s.perms.InvalidateUser(targetID)

	s.servers.BroadcastSnapshot(ctx, serverID)
	return nil
}

// moderationCheck: yetki + hiyerarşi + self-moderation engeli.
func (s *memberService) moderationCheck(ctx context.Context, actorID, serverID, targetID string, perm models.Permission) error {
	if actorID == targetID {
		return fmt.Errorf("%w: cannot moderate yourself", pkg.ErrBadRequest)
	}
	if err := s.perms.RequireServer(ctx, actorID, serverID, perm); err != nil {
		return err
	}
	return s.perms.RequireHierarchy(ctx, serverID, actorID, targetID)
}

// evict: target'a kişisel event, sunucuya member:left, room'lardan çıkarma.
func (s *memberService) evict(ctx context.Context, serverID, targetID, op string) {
	s.hub.EmitToUser(targetID, ws.Event{
		Op:   op,
		Data: map[string]string{"server_id": serverID},
	})
	s.hub.EmitTo(ws.KeyServer(serverID), ws.Event{
		Op:   ws.OpMemberLeft,
		Data: map[string]string{"server_id": serverID, "user_id": targetID},
	})
	s.hub.UnsubscribeUser(targetID, ws.KeyServer(serverID))
	// Kanal room'ları da düşmeli — sunucu kanalları üzerinden temizlenir.
	if channels := s.serverChannels(ctx, serverID); len(channels) > 0 {
		s.hub.UnsubscribeUser(targetID, channels...)
	}
}

func (s *memberService) serverChannels(ctx context.Context, serverID string) []string {
	// ChannelRepository bağımlılığı eklemek yerine snapshot'tan okunur —
	// moderasyon sık bir yol değildir.
	snapshot, err := s.servers.Snapshot(ctx, serverID)
	if err != nil {
		return nil
	}
	var keys []string
	for _, group := range snapshot.Categories {
		for _, ch := range group.Channels {
			keys = append(keys, ws.KeyChannel(ch.ID), ws.KeyVoice(ch.ID))
		}
	}
	return keys
}
