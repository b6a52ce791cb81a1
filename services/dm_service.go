package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/repository"
	"github.com/nexushq/nexus/ws"
)

// DMService, DM/group DM kanalları, message request akışı ve okuma
// durumu iş mantığı.
//
// 1:1 DM tekildir: aynı çift için ikinci dm:create mevcut kanalı döner.
// Arkadaş olmayan birinden gelen ilk DM alıcı tarafta "message request"
// olarak işaretlenir — accept edilene kadar ana listede görünmez.
// dm:delete per-user hide'dır: kanal ve mesajlar diğer katılımcılar için yaşar.
type DMService interface {
	CreateDirect(ctx context.Context, userID, otherUserID string) (*models.DMChannel, error)
	CreateGroup(ctx context.Context, userID string, participantIDs []string, name string) (*models.DMChannel, error)
	AddParticipant(ctx context.Context, actorID, channelID, userID string) error
	RemoveParticipant(ctx context.Context, actorID, channelID, userID string) error

	AcceptRequest(ctx context.Context, userID, channelID string) error
	RejectRequest(ctx context.Context, userID, channelID string) error

	MarkRead(ctx context.Context, userID, channelID, messageID string) error
	SetArchived(ctx context.Context, userID, channelID string, archived bool) error
	Hide(ctx context.Context, userID, channelID string) error

	// PersonalServer, init payload'ı için kullanıcının sanal DM sunucusunu
	// sentezler: görünür kanallar + bekleyen message request'ler.
	PersonalServer(ctx context.Context, userID string) (*models.PersonalServer, error)
	UnreadCounts(ctx context.Context, userID string) ([]models.UnreadCount, error)
}

const maxGroupParticipants = 10

type dmService struct {
	dmRepo        repository.DMRepository
	channelRepo   repository.ChannelRepository
	userRepo      repository.UserRepository
	messageRepo   repository.MessageRepository
	readStateRepo repository.ReadStateRepository
	friends       FriendshipService
	hub           ws.EventPublisher
}

// NewDMService, constructor.
func NewDMService(
	dmRepo repository.DMRepository,
	channelRepo repository.ChannelRepository,
	userRepo repository.UserRepository,
	messageRepo repository.MessageRepository,
	readStateRepo repository.ReadStateRepository,
	friends FriendshipService,
	hub ws.EventPublisher,
) DMService {
	return &dmService{
		dmRepo:        dmRepo,
		channelRepo:   channelRepo,
		userRepo:      userRepo,
		messageRepo:   messageRepo,
		readStateRepo: readStateRepo,
		friends:       friends,
		hub:           hub,
	}
}

func (s *dmService) CreateDirect(ctx context.Context, userID, otherUserID string) (*models.DMChannel, error) {
	if userID == otherUserID {
		return nil, fmt.Errorf("%w: cannot open a dm with yourself", pkg.ErrBadRequest)
	}
	other, err := s.userRepo.GetByID(ctx, otherUserID)
	if err != nil {
		return nil, err
	}
	if other.DeletedAt != nil {
		return nil, fmt.Errorf("%w: user not found", pkg.ErrNotFound)
	}

	blocked, err := s.friends.IsBlockedEither(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, fmt.Errorf("%w: cannot open a dm with this user", pkg.ErrBlocked)
	}

	// Mevcut kanal varsa onu döndür — açan için hidden ise geri görünür yap.
	if channelID, err := s.dmRepo.FindDirect(ctx, userID, otherUserID); err == nil {
		_ = s.dmRepo.SetHidden(ctx, channelID, userID, false)
		return s.view(ctx, channelID, userID)
	} else if !errors.Is(err, pkg.ErrNotFound) {
		return nil, err
	}

	channel := &models.Channel{Type: models.ChannelTypeDM, Name: "dm"}
	if err := s.channelRepo.Create(ctx, channel); err != nil {
		return nil, err
	}
	for _, id := range []string{userID, otherUserID} {
		if err := s.dmRepo.AddParticipant(ctx, channel.ID, id); err != nil {
			return nil, err
		}
	}

	// Arkadaş değillerse alıcı tarafında message request olarak açılır.
	areFriends, err := s.friends.AreFriends(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	if !areFriends {
		if err := s.dmRepo.SetRequestPending(ctx, channel.ID, otherUserID, true); err != nil {
			return nil, err
		}
	}

	s.announce(ctx, channel.ID, userID, otherUserID)
	log.Printf("[dm] direct channel created: %s (%s, %s)", channel.ID, userID, otherUserID)
	return s.view(ctx, channel.ID, userID)
}

func (s *dmService) CreateGroup(ctx context.Context, userID string, participantIDs []string, name string) (*models.DMChannel, error) {
	unique := map[string]bool{userID: true}
	members := []string{userID}
	for _, id := range participantIDs {
		if unique[id] {
			continue
		}
		unique[id] = true
		members = append(members, id)
	}
	if len(members) < 3 {
		return nil, fmt.Errorf("%w: a group needs at least 3 participants", pkg.ErrBadRequest)
	}
	if len(members) > maxGroupParticipants {
		return nil, fmt.Errorf("%w: a group can have at most %d participants", pkg.ErrBadRequest, maxGroupParticipants)
	}

	// Kuran, engellediği/engellendiği birini gruba alamaz.
	for _, id := range members[1:] {
		blocked, err := s.friends.IsBlockedEither(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, fmt.Errorf("%w: cannot add a blocked user to a group", pkg.ErrBlocked)
		}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = "group"
	}

	channel := &models.Channel{Type: models.ChannelTypeGroupDM, Name: name}
	if err := s.channelRepo.Create(ctx, channel); err != nil {
		return nil, err
	}
	for _, id := range members {
		if err := s.dmRepo.AddParticipant(ctx, channel.ID, id); err != nil {
			return nil, err
		}
	}

	s.announce(ctx, channel.ID, members...)
	log.Printf("[dm] group channel created: %s (%d participants)", channel.ID, len(members))
	return s.view(ctx, channel.ID, userID)
}

func (s *dmService) AddParticipant(ctx context.Context, actorID, channelID, userID string) error {
	channel, err := s.groupChannel(ctx, actorID, channelID)
	if err != nil {
		return err
	}

	blocked, err := s.friends.IsBlockedEither(ctx, actorID, userID)
	if err != nil {
		return err
	}
	if blocked {
		return fmt.Errorf("%w: cannot add a blocked user to a group", pkg.ErrBlocked)
	}

	ids, err := s.dmRepo.ParticipantIDs(ctx, channelID)
	if err != nil {
		return err
	}
	if len(ids) >= maxGroupParticipants {
		return fmt.Errorf("%w: group is full", pkg.ErrBadRequest)
	}

	if err := s.dmRepo.AddParticipant(ctx, channelID, userID); err != nil {
		return err
	}

	s.announce(ctx, channel.ID, userID)
	s.broadcastUpdate(ctx, channelID)
	return nil
}

func (s *dmService) RemoveParticipant(ctx context.Context, actorID, channelID, userID string) error {
	// Kendini her zaman çıkarabilirsin; başkasını çıkarmak yoktur.
	if actorID != userID {
		return fmt.Errorf("%w: participants can only remove themselves", pkg.ErrForbidden)
	}
	if _, err := s.groupChannel(ctx, actorID, channelID); err != nil {
		return err
	}

	if err := s.dmRepo.RemoveParticipant(ctx, channelID, userID); err != nil {
		return err
	}

	s.hub.UnsubscribeUser(userID, ws.KeyChannel(channelID))
	s.broadcastUpdate(ctx, channelID)
	return nil
}

func (s *dmService) AcceptRequest(ctx context.Context, userID, channelID string) error {
	if err := s.requireParticipant(ctx, channelID, userID); err != nil {
		return err
	}
	if err := s.dmRepo.SetRequestPending(ctx, channelID, userID, false); err != nil {
		return err
	}
	s.hub.EmitTo(ws.KeyPersonal(userID), ws.Event{
		Op:   ws.OpDMUpdated,
		Data: map[string]string{"channel_id": channelID, "request": "accepted"},
	})
	return nil
}

// RejectRequest: istek bayrağı düşer ve kanal reddeden için gizlenir —
// gönderen tarafta kanal yaşamaya devam eder.
func (s *dmService) RejectRequest(ctx context.Context, userID, channelID string) error {
	if err := s.requireParticipant(ctx, channelID, userID); err != nil {
		return err
	}
	if err := s.dmRepo.SetRequestPending(ctx, channelID, userID, false); err != nil {
		return err
	}
	if err := s.dmRepo.SetHidden(ctx, channelID, userID, true); err != nil {
		return err
	}
	s.hub.UnsubscribeUser(userID, ws.KeyChannel(channelID))
	s.hub.EmitTo(ws.KeyPersonal(userID), ws.Event{
		Op:   ws.OpDMUpdated,
		Data: map[string]string{"channel_id": channelID, "request": "rejected"},
	})
	return nil
}

func (s *dmService) MarkRead(ctx context.Context, userID, channelID, messageID string) error {
	if err := s.requireParticipant(ctx, channelID, userID); err != nil {
		return err
	}
	if messageID == "" {
		last, err := s.messageRepo.LastMessageID(ctx, channelID)
		if err != nil {
			if errors.Is(err, pkg.ErrNotFound) {
				return nil // boş kanal — cursor gereksiz
			}
			return err
		}
		messageID = last
	}
	if err := s.readStateRepo.Upsert(ctx, userID, channelID, messageID); err != nil {
		return err
	}

	counts, err := s.UnreadCounts(ctx, userID)
	if err != nil {
		return err
	}
	s.hub.EmitTo(ws.KeyPersonal(userID), ws.Event{Op: ws.OpDMUnreadCounts, Data: counts})
	return nil
}

func (s *dmService) SetArchived(ctx context.Context, userID, channelID string, archived bool) error {
	if err := s.requireParticipant(ctx, channelID, userID); err != nil {
		return err
	}
	return s.dmRepo.SetArchived(ctx, channelID, userID, archived)
}

// Hide, dm:delete'in gerçek davranışıdır: kanal yalnızca bu kullanıcının
// listesinden düşer.
func (s *dmService) Hide(ctx context.Context, userID, channelID string) error {
	if err := s.requireParticipant(ctx, channelID, userID); err != nil {
		return err
	}
	if err := s.dmRepo.SetHidden(ctx, channelID, userID, true); err != nil {
		return err
	}
	s.hub.UnsubscribeUser(userID, ws.KeyChannel(channelID))
	return nil
}

func (s *dmService) PersonalServer(ctx context.Context, userID string) (*models.PersonalServer, error) {
	dms, err := s.dmRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	personal := &models.PersonalServer{
		ID:         "personal:" + userID,
		Name:       "Personal",
		OwnerID:    userID,
		IsPersonal: true,
		Channels:   []models.DMChannel{},
		Requests:   []models.DMChannel{},
	}

	for i := range dms {
		dm := dms[i]
		participants, err := s.dmRepo.Participants(ctx, dm.Channel.ID)
		if err != nil {
			return nil, err
		}
		dm.Participants = participants

		if last, err := s.messageRepo.LastMessageID(ctx, dm.Channel.ID); err == nil {
			dm.LastMessageID = last
		}
		dm.UnreadCount = s.unreadFor(ctx, userID, dm.Channel.ID)

		if dm.RequestPending {
			personal.Requests = append(personal.Requests, dm)
		} else {
			personal.Channels = append(personal.Channels, dm)
		}
	}
	return personal, nil
}

func (s *dmService) UnreadCounts(ctx context.Context, userID string) ([]models.UnreadCount, error) {
	dms, err := s.dmRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts := make([]models.UnreadCount, 0, len(dms))
	for _, dm := range dms {
		counts = append(counts, models.UnreadCount{
			ChannelID: dm.Channel.ID,
			Count:     s.unreadFor(ctx, userID, dm.Channel.ID),
		})
	}
	return counts, nil
}

// ─── Yardımcılar ───

func (s *dmService) unreadFor(ctx context.Context, userID, channelID string) int {
	var afterID string
	if state, err := s.readStateRepo.Get(ctx, userID, channelID); err == nil {
		afterID = state.LastReadMessageID
	}
	count, err := s.messageRepo.CountAfter(ctx, channelID, afterID)
	if err != nil {
		return 0
	}
	return count
}

func (s *dmService) requireParticipant(ctx context.Context, channelID, userID string) error {
	ok, err := s.dmRepo.IsParticipant(ctx, channelID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: not a participant", pkg.ErrForbidden)
	}
	return nil
}

func (s *dmService) groupChannel(ctx context.Context, actorID, channelID string) (*models.Channel, error) {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.Type != models.ChannelTypeGroupDM {
		return nil, fmt.Errorf("%w: not a group channel", pkg.ErrBadRequest)
	}
	if err := s.requireParticipant(ctx, channelID, actorID); err != nil {
		return nil, err
	}
	return channel, nil
}

// announce: kanal room aboneliği + her katılımcıya dm:created event'i.
func (s *dmService) announce(ctx context.Context, channelID string, userIDs ...string) {
	for _, id := range userIDs {
		s.hub.SubscribeUser(id, ws.KeyChannel(channelID))
		if view, err := s.view(ctx, channelID, id); err == nil {
			s.hub.EmitTo(ws.KeyPersonal(id), ws.Event{Op: ws.OpDMCreated, Data: view})
		}
	}
}

func (s *dmService) broadcastUpdate(ctx context.Context, channelID string) {
	ids, err := s.dmRepo.ParticipantIDs(ctx, channelID)
	if err != nil {
		return
	}
	for _, id := range ids {
		s.hub.EmitTo(ws.KeyPersonal(id), ws.Event{
			Op:   ws.OpDMUpdated,
			Data: map[string]string{"channel_id": channelID},
		})
	}
}

// view, kanalın userID perspektifinden DMChannel görünümünü kurar.
func (s *dmService) view(ctx context.Context, channelID, userID string) (*models.DMChannel, error) {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	participants, err := s.dmRepo.Participants(ctx, channelID)
	if err != nil {
		return nil, err
	}

	view := &models.DMChannel{
		Channel:      *channel,
		Participants: participants,
	}
	if state, err := s.dmRepo.GetState(ctx, channelID, userID); err == nil {
		view.RequestPending = state.RequestPending
		view.Archived = state.Archived
	}
	if last, err := s.messageRepo.LastMessageID(ctx, channelID); err == nil {
		view.LastMessageID = last
	}
	view.UnreadCount = s.unreadFor(ctx, userID, channelID)
	return view, nil
}
