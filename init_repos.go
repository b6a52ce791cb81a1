package main

import (
	"database/sql"

	"github.com/nexushq/nexus/repository"
)

// repositories, tüm repository instance'larını bir arada tutar.
//
// Hepsi aynı *sql.DB üzerinde çalışır; transactional akışlar kendi
// içlerinde *sql.Tx üzerinden yeni repo kurar (database.WithTx).
type repositories struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	servers    repository.ServerRepository
	members    repository.MemberRepository
	roles      repository.RoleRepository
	channels   repository.ChannelRepository
	categories repository.CategoryRepository
	overrides  repository.OverrideRepository
	messages   repository.MessageRepository
	reactions  repository.ReactionRepository
	friends    repository.FriendshipRepository
	invites    repository.InviteRepository
	bans       repository.BanRepository
	dms        repository.DMRepository
	readStates repository.ReadStateRepository
	webhooks   repository.WebhookRepository
	reports    repository.ReportRepository
}

func newRepositories(conn *sql.DB) *repositories {
	return &repositories{
		users:      repository.NewSQLiteUserRepo(conn),
		sessions:   repository.NewSQLiteSessionRepo(conn),
		servers:    repository.NewSQLiteServerRepo(conn),
		members:    repository.NewSQLiteMemberRepo(conn),
		roles:      repository.NewSQLiteRoleRepo(conn),
		channels:   repository.NewSQLiteChannelRepo(conn),
		categories: repository.NewSQLiteCategoryRepo(conn),
		overrides:  repository.NewSQLiteOverrideRepo(conn),
		messages:   repository.NewSQLiteMessageRepo(conn),
		reactions:  repository.NewSQLiteReactionRepo(conn),
		friends:    repository.NewSQLiteFriendshipRepo(conn),
		invites:    repository.NewSQLiteInviteRepo(conn),
		bans:       repository.NewSQLiteBanRepo(conn),
		dms:        repository.NewSQLiteDMRepo(conn),
		readStates: repository.NewSQLiteReadStateRepo(conn),
		webhooks:   repository.NewSQLiteWebhookRepo(conn),
		reports:    repository.NewSQLiteReportRepo(conn),
	}
}
