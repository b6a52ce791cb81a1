package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/tinode/snowflake"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/repository"
	"github.com/nexushq/nexus/ws"
)

// MessageService, mesaj yaşam döngüsü iş mantığı.
//
// Mesaj ID'leri snowflake'tir: time-sortable, decimal string olarak
// taşınır — aynı kanaldaki mesajlar ID'ye göre total order'dadır.
// Webhook ingest'i de aynı yoldan geçer: persist + parse + fan-out
// birebir aynıdır, yalnızca author farklıdır.
type MessageService interface {
	Send(ctx context.Context, senderID string, req *models.SendMessageRequest) (*models.Message, error)
	SendFromWebhook(ctx context.Context, webhook *models.Webhook, payload *models.WebhookPayload) (*models.Message, error)
	Edit(ctx context.Context, userID string, req *models.EditMessageRequest) (*models.Message, error)
	Delete(ctx context.Context, userID, messageID string) error
	React(ctx context.Context, userID string, req *models.ReactRequest) error
	// History, beforeID cursor'ından geriye doğru bir sayfa döner.
	History(ctx context.Context, userID, channelID, beforeID string, limit int) (*models.MessagePage, error)
}

const historyPageSize = 50

type messageService struct {
	messageRepo  repository.MessageRepository
	reactionRepo repository.ReactionRepository
	channelRepo  repository.ChannelRepository
	userRepo     repository.UserRepository
	memberRepo   repository.MemberRepository
	roleRepo     repository.RoleRepository
	friendRepo   repository.FriendshipRepository
	dmRepo       repository.DMRepository
	perms        PermissionService
	hub          ws.EventPublisher
	idGen        *snowflake.SnowFlake

	// Kanal başına yazma kilidi: ID üretimi, persist ve fan-out aynı
	// kilit altında yürür — kanal içi ID sırası yayın sırasıyla örtüşür.
	chanMu    sync.Mutex
	chanLocks map[string]*sync.Mutex
}

// NewMessageService, constructor. workerID tek-node kurulumda 0'dır.
func NewMessageService(
	messageRepo repository.MessageRepository,
	reactionRepo repository.ReactionRepository,
	channelRepo repository.ChannelRepository,
	userRepo repository.UserRepository,
	memberRepo repository.MemberRepository,
	roleRepo repository.RoleRepository,
	friendRepo repository.FriendshipRepository,
	dmRepo repository.DMRepository,
	perms PermissionService,
	hub ws.EventPublisher,
	workerID uint32,
) (MessageService, error) {
	gen, err := snowflake.NewSnowFlake(workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to init snowflake generator: %w", err)
	}
	return &messageService{
		messageRepo:  messageRepo,
		reactionRepo: reactionRepo,
		channelRepo:  channelRepo,
		userRepo:     userRepo,
		memberRepo:   memberRepo,
		roleRepo:     roleRepo,
		friendRepo:   friendRepo,
		dmRepo:       dmRepo,
		perms:        perms,
		hub:          hub,
		idGen:        gen,
		chanLocks:    map[string]*sync.Mutex{},
	}, nil
}

func (s *messageService) nextID() (string, error) {
	id, err := s.idGen.Next()
	if err != nil {
		return "", fmt.Errorf("failed to generate message id: %w", err)
	}
	return strconv.FormatUint(id, 10), nil
}

// lockChannel, kanala ait yazma mutex'ini döner (yoksa oluşturur).
func (s *messageService) lockChannel(channelID string) *sync.Mutex {
	s.chanMu.Lock()
	defer s.chanMu.Unlock()
	mu, ok := s.chanLocks[channelID]
	if !ok {
		mu = &sync.Mutex{}
		s.chanLocks[channelID] = mu
	}
	return mu
}

func (s *messageService) Send(ctx context.Context, senderID string, req *models.SendMessageRequest) (*models.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	channel, err := s.channelRepo.GetByID(ctx, req.ChannelID)
	if err != nil {
		return nil, err
	}
	if channel.Type == models.ChannelTypeVoice {
		return nil, fmt.Errorf("%w: cannot send messages to a voice channel", pkg.ErrBadRequest)
	}

	if err := s.perms.RequireChannel(ctx, senderID, channel.ID, models.PermSendMessages); err != nil {
		return nil, err
	}

	// DM: taraflardan biri diğerini engellediyse mesaj geçmez.
	if channel.Type.IsDM() {
		if err := s.checkDMBlocks(ctx, senderID, channel.ID); err != nil {
			return nil, err
		}
	}

	// reply hedefi aynı kanalda olmalı.
	var replyTo *string
	if req.ReplyTo != "" {
		target, err := s.messageRepo.GetByID(ctx, req.ReplyTo)
		if err != nil {
			return nil, fmt.Errorf("%w: reply target not found", pkg.ErrBadRequest)
		}
		if target.ChannelID != channel.ID {
			return nil, fmt.Errorf("%w: reply target is in another channel", pkg.ErrBadRequest)
		}
		replyTo = &req.ReplyTo
	}

	sender, err := s.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	// Aynı kanalın yazıları seri yürür: ID sırası = persist sırası =
	// yayın sırası. Kilidi ID üretiminden önce almak şarttır.
	mu := s.lockChannel(channel.ID)
	mu.Lock()
	defer mu.Unlock()

	id, err := s.nextID()
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:        id,
		ChannelID: channel.ID,
		Author: models.Author{
			UserID:      &sender.ID,
			DisplayName: sender.Username,
			Avatar:      sender.CustomAvatar,
		},
		Content:     req.Content,
		ReplyToID:   replyTo,
		CommandData: req.CommandData,
		Attachments: req.Attachments,
		Embeds:      []models.Embed{},
		Reactions:   map[string][]string{},
	}
	if msg.Attachments == nil {
		msg.Attachments = []string{}
	}

	if err := s.enrich(ctx, senderID, channel, msg); err != nil {
		return nil, err
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.broadcast(ctx, channel, msg)
	return msg, nil
}

// SendFromWebhook — rate limit ve token doğrulaması handler'dadır;
// burada sadece persist + parse + fan-out yapılır.
func (s *messageService) SendFromWebhook(ctx context.Context, webhook *models.Webhook, payload *models.WebhookPayload) (*models.Message, error) {
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	channel, err := s.channelRepo.GetByID(ctx, webhook.ChannelID)
	if err != nil {
		return nil, err
	}

	mu := s.lockChannel(channel.ID)
	mu.Lock()
	defer mu.Unlock()

	id, err := s.nextID()
	if err != nil {
		return nil, err
	}

	displayName := webhook.Name
	if payload.Username != "" {
		displayName = payload.Username
	}
	var avatar *string
	if a := payload.AvatarOverride(); a != "" {
		avatar = &a
	} else {
		avatar = webhook.Avatar
	}

	msg := &models.Message{
		ID:        id,
		ChannelID: channel.ID,
		Author: models.Author{
			WebhookID:   &webhook.ID,
			DisplayName: displayName,
			Avatar:      avatar,
		},
		Content:     payload.Content,
		Embeds:      payload.Embeds,
		Attachments: payload.Attachments,
		Reactions:   map[string][]string{},
	}
	if msg.Embeds == nil {
		msg.Embeds = []models.Embed{}
	}
	if msg.Attachments == nil {
		msg.Attachments = []string{}
	}

	// Webhook mesajında everyone mention asla işaretlenmez.
	if err := s.enrich(ctx, "", channel, msg); err != nil {
		return nil, err
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.broadcast(ctx, channel, msg)
	log.Printf("[message] webhook message delivered: webhook=%s channel=%s", webhook.ID, channel.ID)
	return msg, nil
}

func (s *messageService) Edit(ctx context.Context, userID string, req *models.EditMessageRequest) (*models.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	msg, err := s.messageRepo.GetByID(ctx, req.MessageID)
	if err != nil {
		return nil, err
	}
	// Düzenleme yalnızca yazara aittir — moderatör bile edit edemez.
	if msg.Author.UserID == nil || *msg.Author.UserID != userID {
		return nil, fmt.Errorf("%w: only the author can edit a message", pkg.ErrForbidden)
	}

	if err := s.messageRepo.UpdateContent(ctx, msg.ID, req.Content); err != nil {
		return nil, err
	}

	updated, err := s.messageRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return nil, err
	}

	channel, err := s.channelRepo.GetByID(ctx, msg.ChannelID)
	if err != nil {
		return nil, err
	}
	if err := s.enrich(ctx, userID, channel, updated); err != nil {
		return nil, err
	}
	s.attachReactions(ctx, []models.Message{*updated})

	s.emitToChannel(ctx, msg.ChannelID, ws.Event{Op: ws.OpMessageEdited, Data: updated})
	return updated, nil
}

func (s *messageService) Delete(ctx context.Context, userID, messageID string) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}

	// Yazar her zaman silebilir; değilse manageMessages gerekir.
	isAuthor := msg.Author.UserID != nil && *msg.Author.UserID == userID
	if !isAuthor {
		if err := s.perms.RequireChannel(ctx, userID, msg.ChannelID, models.PermManageMessages); err != nil {
			return err
		}
	}

	if err := s.messageRepo.SoftDelete(ctx, messageID); err != nil {
		return err
	}

	s.emitToChannel(ctx, msg.ChannelID, ws.Event{
		Op:   ws.OpMessageDeleted,
		Data: map[string]string{"id": messageID, "channel_id": msg.ChannelID},
	})
	return nil
}

func (s *messageService) React(ctx context.Context, userID string, req *models.ReactRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	msg, err := s.messageRepo.GetByID(ctx, req.MessageID)
	if err != nil {
		return err
	}

	var changed bool
	if req.Op == "add" {
		if err := s.perms.RequireChannel(ctx, userID, msg.ChannelID, models.PermAddReaction); err != nil {
			return err
		}
		changed, err = s.reactionRepo.Add(ctx, msg.ID, userID, req.Emoji)
	} else {
		// Kendi reaction'ını kaldırmak yetki istemez.
		changed, err = s.reactionRepo.Remove(ctx, msg.ID, userID, req.Emoji)
	}
	if err != nil {
		return err
	}
	if !changed {
		return nil // idempotent — tekrar eden add/remove sessizce yutulur
	}

	// Delta değil tam harita yayınlanır — client'lar state'i replace eder,
	// kaçan bir olay kalıcı sapma yaratmaz.
	all, err := s.reactionRepo.MapFor(ctx, []string{msg.ID})
	if err != nil {
		return err
	}
	reactions := all[msg.ID]
	if reactions == nil {
		reactions = map[string][]string{}
	}

	s.emitToChannel(ctx, msg.ChannelID, ws.Event{
		Op: ws.OpMessageReaction,
		Data: map[string]any{
			"message_id": msg.ID,
			"channel_id": msg.ChannelID,
			"reactions":  reactions,
		},
	})
	return nil
}

func (s *messageService) History(ctx context.Context, userID, channelID, beforeID string, limit int) (*models.MessagePage, error) {
	if err := s.perms.RequireChannel(ctx, userID, channelID, models.PermViewChannel); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > historyPageSize {
		limit = historyPageSize
	}
	page, err := s.messageRepo.GetPage(ctx, channelID, beforeID, limit)
	if err != nil {
		return nil, err
	}
	s.attachReactions(ctx, page.Messages)
	return page, nil
}

// ─── Yardımcılar ───

// enrich, içerikten mention/kanal-linki/davet kodlarını çözer.
// senderID boşsa (webhook) everyone asla işaretlenmez.
func (s *messageService) enrich(ctx context.Context, senderID string, channel *models.Channel, msg *models.Message) error {
	parsed := parseContent(msg.Content)

	msg.Mentions = models.Mentions{Users: []string{}, Roles: []string{}}
	msg.ChannelLinks = []string{}
	msg.InviteCodes = parsed.InviteCodes
	msg.CustomEmojis = parsed.CustomEmojis

	// everyone: yalnızca sunucu kanalında ve yetkili gönderende.
	if parsed.EveryoneRequested && senderID != "" && channel.ServerID != nil {
		if err := s.perms.RequireChannel(ctx, senderID, channel.ID, models.PermMentionEveryone); err == nil {
			msg.Mentions.Everyone = true
		}
	}

	// Kullanıcı/rol adayları: önce kullanıcı, sonra rol adı eşleşmesi.
	var serverRoles []models.Role
	if channel.ServerID != nil && len(parsed.UserCandidates) > 0 {
		roles, err := s.roleRepo.ListByServer(ctx, *channel.ServerID)
		if err != nil {
			return err
		}
		serverRoles = roles
	}
	for _, candidate := range parsed.UserCandidates {
		// Aday yalnızca kanalı görebilen bir kullanıcıya bağlanır —
		// sunucu dışından biri @isim ile mention edilemez.
		if user, err := s.userRepo.GetByUsername(ctx, candidate); err == nil && s.canSee(ctx, channel, user.ID) {
			msg.Mentions.Users = append(msg.Mentions.Users, user.ID)
			continue
		}
		for _, role := range serverRoles {
			if !role.IsEveryone && strings.EqualFold(role.Name, candidate) {
				msg.Mentions.Roles = append(msg.Mentions.Roles, role.ID)
				break
			}
		}
	}

	// Kanal linkleri aynı sunucu içinde çözülür.
	if channel.ServerID != nil && len(parsed.ChannelCandidates) > 0 {
		channels, err := s.channelRepo.ListByServer(ctx, *channel.ServerID)
		if err != nil {
			return err
		}
		for _, candidate := range parsed.ChannelCandidates {
			for _, ch := range channels {
				if strings.EqualFold(ch.Name, candidate) {
					msg.ChannelLinks = append(msg.ChannelLinks, ch.ID)
					break
				}
			}
		}
	}
	return nil
}

// broadcast, message:new fan-out'u yapar. Sunucu kanalı channel odasına
// yayınlar; DM kanalı her katılımcının user:<id> odasına gider — katılımcı
// hangi socket'te olursa olsun mesajı alır. DM'de ayrıca Personal görünüm
// güncellenir (gizlenmiş kanal yeniden görünür olur).
func (s *messageService) broadcast(ctx context.Context, channel *models.Channel, msg *models.Message) {
	if !channel.Type.IsDM() {
		s.hub.EmitTo(ws.KeyChannel(channel.ID), ws.Event{Op: ws.OpMessageNew, Data: msg})
		return
	}

	participantIDs, err := s.dmRepo.ParticipantIDs(ctx, channel.ID)
	if err != nil {
		log.Printf("[message] failed to load dm participants for %s: %v", channel.ID, err)
		return
	}
	for _, userID := range participantIDs {
		s.hub.EmitTo(ws.KeyUser(userID), ws.Event{Op: ws.OpMessageNew, Data: msg})

		// Mesaj gelen gizli kanal tekrar görünür olur.
		if state, err := s.dmRepo.GetState(ctx, channel.ID, userID); err == nil && state.Hidden {
			_ = s.dmRepo.SetHidden(ctx, channel.ID, userID, false)
		}
		s.hub.EmitTo(ws.KeyPersonal(userID), ws.Event{
			Op:   ws.OpDMUpdated,
			Data: map[string]string{"channel_id": channel.ID, "last_message_id": msg.ID},
		})
	}
}

// emitToChannel, edit/delete/reaction olaylarını message:new ile aynı
// odalara yollar: sunucu kanalında channel odası, DM'de katılımcıların
// user odaları. Katılımcı listesi çözülemezse channel odasına düşülür.
func (s *messageService) emitToChannel(ctx context.Context, channelID string, event ws.Event) {
	if channel, err := s.channelRepo.GetByID(ctx, channelID); err == nil && channel.Type.IsDM() {
		if ids, err := s.dmRepo.ParticipantIDs(ctx, channelID); err == nil {
			for _, userID := range ids {
				s.hub.EmitTo(ws.KeyUser(userID), event)
			}
			return
		}
	}
	s.hub.EmitTo(ws.KeyChannel(channelID), event)
}

// canSee: sunucu kanalında üyelik, DM kanalında katılımcılık şartı.
func (s *messageService) canSee(ctx context.Context, channel *models.Channel, userID string) bool {
	if channel.ServerID != nil {
		_, err := s.memberRepo.Get(ctx, userID, *channel.ServerID)
		return err == nil
	}
	ok, err := s.dmRepo.IsParticipant(ctx, channel.ID, userID)
	return err == nil && ok
}

// checkDMBlocks: 1:1 DM'de karşı tarafla herhangi bir yönde block varsa
// mesaj reddedilir. Group DM'de gönderim engellenmez.
func (s *messageService) checkDMBlocks(ctx context.Context, senderID, channelID string) error {
	participantIDs, err := s.dmRepo.ParticipantIDs(ctx, channelID)
	if err != nil {
		return err
	}
	if len(participantIDs) != 2 {
		return nil
	}
	for _, id := range participantIDs {
		if id == senderID {
			continue
		}
		blocked, err := s.friendRepo.IsBlockedEither(ctx, senderID, id)
		if err != nil {
			return err
		}
		if blocked {
			return fmt.Errorf("%w: cannot message this user", pkg.ErrBlocked)
		}
	}
	return nil
}

// attachReactions, mesaj listesine reaction haritalarını ekler.
func (s *messageService) attachReactions(ctx context.Context, messages []models.Message) {
	if len(messages) == 0 {
		return
	}
	ids := make([]string, len(messages))
	for i := range messages {
		ids[i] = messages[i].ID
	}
	reactions, err := s.reactionRepo.MapFor(ctx, ids)
	if err != nil {
		log.Printf("[message] failed to load reactions: %v", err)
		return
	}
	for i := range messages {
		if m, ok := reactions[messages[i].ID]; ok {
			messages[i].Reactions = m
		}
	}
}
