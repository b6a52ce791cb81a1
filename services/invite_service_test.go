package services

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/repository"
	"github.com/nexushq/nexus/ws"
)

type inviteFixture struct {
	*serverFixture
	bans repository.BanRepository
	svc  InviteService
}

func newInviteFixture(t *testing.T) *inviteFixture {
	t.Helper()

	sf := newServerFixture(t)
	f := &inviteFixture{
		serverFixture: sf,
		bans:          repository.NewSQLiteBanRepo(sf.conn),
	}
	f.svc = NewInviteService(
		sf.conn, repository.NewSQLiteInviteRepo(sf.conn),
		sf.servers, sf.members, f.bans, sf.perms, sf.svc, sf.hub,
	)
	return f
}

// createServer, owner'ıyla bir sunucu açıp ID'sini döner.
func (f *inviteFixture) createServer(t *testing.T) string {
	t.Helper()
	snap, err := f.serverFixture.svc.Create(context.Background(), "u-owner", &models.CreateServerRequest{Name: "takım"})
	require.NoError(t, err)
	return snap.Server.ID
}

func TestInviteCreate(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()
	serverID := f.createServer(t)

	invite, err := f.svc.Create(ctx, "u-owner", &models.CreateInviteRequest{
		ServerID: serverID, MaxUses: 5, ExpiresInMinutes: 60,
	})
	require.NoError(t, err)
	assert.Len(t, invite.Code, 8)
	_, err = hex.DecodeString(invite.Code)
	assert.NoError(t, err, "davet kodu hex'tir")
	require.NotNil(t, invite.MaxUses)
	assert.Equal(t, 5, *invite.MaxUses)
	require.NotNil(t, invite.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *invite.ExpiresAt, time.Minute)

	created := f.hub.eventsFor(ws.OpInviteCreated)
	require.Len(t, created, 1)
	assert.Equal(t, "u-owner", created[0].UserID)
}

func TestInviteCreateRequiresPermission(t *testing.T) {
	f := newInviteFixture(t)
	serverID := f.createServer(t)

	f.perms.denied["u-bob"] = true
	_, err := f.svc.Create(context.Background(), "u-bob", &models.CreateInviteRequest{ServerID: serverID})
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestInvitePeek(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()
	serverID := f.createServer(t)

	invite, err := f.svc.Create(ctx, "u-owner", &models.CreateInviteRequest{ServerID: serverID})
	require.NoError(t, err)

	peek, err := f.svc.Peek(ctx, invite.Code)
	require.NoError(t, err)
	assert.True(t, peek.Valid)
	assert.Equal(t, "takım", peek.ServerName)
	assert.Equal(t, 1, peek.MemberCnt)

	// Bilinmeyen kod hata değil, valid=false döner — önizleme auth'suzdur.
	peek, err = f.svc.Peek(ctx, "yok-boyle-kod")
	require.NoError(t, err)
	assert.False(t, peek.Valid)

	require.NoError(t, f.svc.Revoke(ctx, "u-owner", invite.Code))
	peek, err = f.svc.Peek(ctx, invite.Code)
	require.NoError(t, err)
	assert.False(t, peek.Valid)
}

func TestInviteUse(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()
	serverID := f.createServer(t)

	invite, err := f.svc.Create(ctx, "u-owner", &models.CreateInviteRequest{ServerID: serverID})
	require.NoError(t, err)

	server, err := f.svc.Use(ctx, "u-bob", invite.Code)
	require.NoError(t, err)
	assert.Equal(t, serverID, server.ID)

	_, err = f.members.Get(ctx, "u-bob", serverID)
	require.NoError(t, err)

	joined := f.hub.eventsFor(ws.OpMemberJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, ws.KeyServer(serverID), joined[0].Room)
	assert.Equal(t, "u-bob", joined[0].Event.Data.(map[string]string)["user_id"])

	// Katılan kullanıcı sunucunun tam görünümünü alır.
	welcome := f.hub.eventsFor(ws.OpInviteJoined)
	require.Len(t, welcome, 1)
	assert.Equal(t, "u-bob", welcome[0].UserID)

	// Aynı kullanıcı ikinci kez katılamaz.
	_, err = f.svc.Use(ctx, "u-bob", invite.Code)
	assert.ErrorIs(t, err, pkg.ErrAlreadyExists)
}

// Kullanım limiti tek atomik UPDATE'te tüketilir — limit dolunca sayaç
// artmadan reddedilir ve üyelik yazılmaz.
func TestInviteUseMaxUsesExhausted(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()
	serverID := f.createServer(t)

	invite, err := f.svc.Create(ctx, "u-owner", &models.CreateInviteRequest{ServerID: serverID, MaxUses: 1})
	require.NoError(t, err)

	_, err = f.svc.Use(ctx, "u-bob", invite.Code)
	require.NoError(t, err)

	_, err = f.svc.Use(ctx, "u-carol", invite.Code)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
	assert.ErrorContains(t, err, "invalid or expired")

	_, err = f.members.Get(ctx, "u-carol", serverID)
	assert.ErrorIs(t, err, pkg.ErrNotFound, "reddedilen kullanımda üyelik yazılmaz")
}

func TestInvitePeekExpired(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()
	serverID := f.createServer(t)

	invite := &models.Invite{Code: "abcd1234", ServerID: serverID, CreatedBy: "u-owner"}
	past := time.Now().Add(-time.Minute)
	invite.ExpiresAt = &past
	require.NoError(t, repository.NewSQLiteInviteRepo(f.conn).Create(ctx, invite))

	peek, err := f.svc.Peek(ctx, invite.Code)
	require.NoError(t, err)
	assert.False(t, peek.Valid, "süresi dolan davet önizlemede geçersizdir")
}

func TestInviteUseBanned(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()
	serverID := f.createServer(t)

	invite, err := f.svc.Create(ctx, "u-owner", &models.CreateInviteRequest{ServerID: serverID})
	require.NoError(t, err)

	require.NoError(t, f.bans.Add(ctx, &models.Ban{
		ServerID: serverID, UserID: "u-bob", BannedBy: "u-owner", Reason: "spam",
	}))

	_, err = f.svc.Use(ctx, "u-bob", invite.Code)
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestInviteRevoke(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()
	serverID := f.createServer(t)

	invite, err := f.svc.Create(ctx, "u-owner", &models.CreateInviteRequest{ServerID: serverID})
	require.NoError(t, err)

	// Yetkisiz üçüncü kişi revoke edemez.
	f.perms.denied["u-carol"] = true
	assert.ErrorIs(t, f.svc.Revoke(ctx, "u-carol", invite.Code), pkg.ErrForbidden)

	// Daveti açan her zaman kendi davetini kapatabilir.
	require.NoError(t, f.svc.Revoke(ctx, "u-owner", invite.Code))

	_, err = f.svc.Use(ctx, "u-bob", invite.Code)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestInviteListByServer(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()
	serverID := f.createServer(t)

	first, err := f.svc.Create(ctx, "u-owner", &models.CreateInviteRequest{ServerID: serverID})
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, "u-owner", &models.CreateInviteRequest{ServerID: serverID})
	require.NoError(t, err)
	require.NoError(t, f.svc.Revoke(ctx, "u-owner", first.Code))

	invites, err := f.svc.ListByServer(ctx, "u-owner", serverID)
	require.NoError(t, err)
	require.Len(t, invites, 1, "revoke edilen davet listelenmez")
	assert.Equal(t, second.Code, invites[0].Code)
}
