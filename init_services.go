package main

import (
	"database/sql"
	"time"

	"github.com/nexushq/nexus/config"
	"github.com/nexushq/nexus/services"
	"github.com/nexushq/nexus/ws"
)

// serviceContainer, tüm service instance'larını bir arada tutar.
type serviceContainer struct {
	perms    services.PermissionService
	auth     services.AuthService
	servers  services.ServerService
	members  services.MemberService
	roles    services.RoleService
	channels services.ChannelService
	messages services.MessageService
	webhooks services.WebhookService
	invites  services.InviteService
	friends  services.FriendshipService
	dms      services.DMService
	voice    services.VoiceService
	typing   services.TypingService
	reports  services.ReportService
	og       services.OGService
	gifs     services.GifService
}

// newServices, service katmanını bağımlılık sırasına göre kurar:
// perms her şeyin altındadır, servers (SnapshotBroadcaster olarak)
// moderasyon ve kanal yönetiminin, friends ise dm ve voice'un altında.
func newServices(cfg *config.Config, conn *sql.DB, repos *repositories, hub *ws.Hub) (*serviceContainer, error) {
	perms := services.NewPermissionService(
		repos.servers, repos.members, repos.roles,
		repos.channels, repos.overrides, repos.dms,
	)

	auth := services.NewAuthService(
		repos.users, repos.sessions,
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute,
		time.Duration(cfg.JWT.RefreshTokenExpiry)*24*time.Hour,
	)

	servers := services.NewServerService(
		conn,
		repos.servers, repos.members, repos.roles,
		repos.channels, repos.categories,
		perms, hub,
	)

	members := services.NewMemberService(
		repos.servers, repos.members, repos.bans,
		perms, servers, hub,
	)

	roles := services.NewRoleService(repos.roles, repos.members, perms, servers)

	channels := services.NewChannelService(
		conn,
		repos.channels, repos.categories, repos.overrides,
		perms, servers,
	)

	// workerID 0: tek node kurulum. Çok node'lu kurulumda her process'e
	// farklı ID verilmelidir, yoksa snowflake çakışır.
	messages, err := services.NewMessageService(
		repos.messages, repos.reactions, repos.channels,
		repos.users, repos.members, repos.roles, repos.friends, repos.dms,
		perms, hub, 0,
	)
	if err != nil {
		return nil, err
	}

	webhooks := services.NewWebhookService(repos.webhooks, repos.channels, perms, messages)

	invites := services.NewInviteService(
		conn,
		repos.invites, repos.servers, repos.members, repos.bans,
		perms, servers, hub,
	)

	friends := services.NewFriendshipService(repos.friends, repos.users, hub)

	dms := services.NewDMService(
		repos.dms, repos.channels, repos.users,
		repos.messages, repos.readStates,
		friends, hub,
	)

	voice := services.NewVoiceService(
		repos.channels, repos.dms, friends, perms,
		hub, cfg.Voice.ICEServers,
	)

	typing := services.NewTypingService(perms, hub)

	reports := services.NewReportService(repos.reports, repos.messages, repos.users, perms)

	return &serviceContainer{
		perms:    perms,
		auth:     auth,
		servers:  servers,
		members:  members,
		roles:    roles,
		channels: channels,
		messages: messages,
		webhooks: webhooks,
		invites:  invites,
		friends:  friends,
		dms:      dms,
		voice:    voice,
		typing:   typing,
		reports:  reports,
		og:       services.NewOGService(),
		gifs:     services.NewGifService(cfg.Gif.GiphyAPIKey),
	}, nil
}
