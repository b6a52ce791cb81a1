package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
)

// permFixture, tek sunuculu bir test dünyası kurar:
// srv-1 (owner: owner-1), @everyone rolü, #general kanalı.
type permFixture struct {
	servers   *fakeServerRepo
	members   *fakeMemberRepo
	roles     *fakeRoleRepo
	channels  *fakeChannelRepo
	overrides *fakeOverrideRepo
	dms       *fakeDMRepo
	perms     PermissionService
}

func newPermFixture(t *testing.T) *permFixture {
	t.Helper()

	f := &permFixture{
		servers:   newFakeServerRepo(),
		members:   newFakeMemberRepo(),
		roles:     newFakeRoleRepo(),
		channels:  newFakeChannelRepo(),
		overrides: newFakeOverrideRepo(),
		dms:       newFakeDMRepo(),
	}
	f.perms = NewPermissionService(f.servers, f.members, f.roles, f.channels, f.overrides, f.dms)

	ctx := context.Background()
	require.NoError(t, f.servers.Create(ctx, &models.Server{ID: "srv-1", Name: "test", OwnerID: "owner-1"}))
	require.NoError(t, f.roles.Create(ctx, &models.Role{
		ID: "role-everyone", ServerID: "srv-1", Name: models.EveryoneRoleName,
		Permissions: models.PermEveryoneDefault, Position: 0, IsEveryone: true,
	}))
	require.NoError(t, f.members.Add(ctx, "owner-1", "srv-1"))

	serverID := "srv-1"
	require.NoError(t, f.channels.Create(ctx, &models.Channel{
		ID: "chan-1", ServerID: &serverID, Type: models.ChannelTypeText, Name: "general",
	}))
	return f
}

func (f *permFixture) addMember(t *testing.T, userID string) {
	t.Helper()
	require.NoError(t, f.members.Add(context.Background(), userID, "srv-1"))
}

func (f *permFixture) addRole(t *testing.T, id string, perms models.Permission, position int, userIDs ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.roles.Create(ctx, &models.Role{
		ID: id, ServerID: "srv-1", Name: id, Permissions: perms, Position: position,
	}))
	for _, uid := range userIDs {
		require.NoError(t, f.roles.Assign(ctx, uid, id, "srv-1"))
	}
}

func TestEffectiveChannelOwner(t *testing.T) {
	f := newPermFixture(t)

	eff, err := f.perms.EffectiveChannel(context.Background(), "owner-1", "chan-1")
	require.NoError(t, err)
	assert.Equal(t, models.PermAll, eff)
}

func TestEffectiveChannelNonMember(t *testing.T) {
	f := newPermFixture(t)

	eff, err := f.perms.EffectiveChannel(context.Background(), "stranger", "chan-1")
	require.NoError(t, err)
	assert.Equal(t, models.Permission(0), eff)
}

func TestEffectiveChannelMemberGetsEveryoneDefault(t *testing.T) {
	f := newPermFixture(t)
	f.addMember(t, "user-1")

	eff, err := f.perms.EffectiveChannel(context.Background(), "user-1", "chan-1")
	require.NoError(t, err)
	assert.Equal(t, models.Permission(models.PermEveryoneDefault), eff)
}

func TestEffectiveChannelRoleUnion(t *testing.T) {
	f := newPermFixture(t)
	f.addMember(t, "user-1")
	f.addRole(t, "role-mod", models.PermKickMembers|models.PermManageMessages, 1, "user-1")

	eff, err := f.perms.EffectiveChannel(context.Background(), "user-1", "chan-1")
	require.NoError(t, err)
	assert.True(t, eff.Has(models.PermKickMembers))
	assert.True(t, eff.Has(models.PermManageMessages))
	assert.True(t, eff.Has(models.PermSendMessages), "@everyone tabanı korunur")
}

func TestEffectiveChannelAdministratorBypassesOverrides(t *testing.T) {
	f := newPermFixture(t)
	f.addMember(t, "user-1")
	f.addRole(t, "role-admin", models.PermAdministrator, 5, "user-1")

	// Kanalda herkese sendMessages deny olsa bile admin etkilenmez.
	ctx := context.Background()
	require.NoError(t, f.overrides.SetRoleOverride(ctx, "chan-1", "role-everyone", 0, models.PermSendMessages))

	eff, err := f.perms.EffectiveChannel(ctx, "user-1", "chan-1")
	require.NoError(t, err)
	assert.Equal(t, models.PermAll, eff)
}

func TestEffectiveChannelOverrideLayering(t *testing.T) {
	f := newPermFixture(t)
	f.addMember(t, "user-1")
	ctx := context.Background()

	// Katman 1: rol deny base'den düşer.
	require.NoError(t, f.overrides.SetRoleOverride(ctx, "chan-1", "role-everyone", 0, models.PermSendMessages))

	eff, err := f.perms.EffectiveChannel(ctx, "user-1", "chan-1")
	require.NoError(t, err)
	assert.False(t, eff.Has(models.PermSendMessages))
	assert.True(t, eff.Has(models.PermViewChannel))

	// Katman 2: user allow, rol deny'ı ezer.
	f.perms.InvalidateUser("user-1")
	require.NoError(t, f.overrides.SetUserOverride(ctx, "chan-1", "user-1", models.PermSendMessages, 0))

	eff, err = f.perms.EffectiveChannel(ctx, "user-1", "chan-1")
	require.NoError(t, err)
	assert.True(t, eff.Has(models.PermSendMessages), "user allow role deny'dan sonra uygulanır")
}

func TestEffectiveChannelViewDenyMasksEverything(t *testing.T) {
	f := newPermFixture(t)
	f.addMember(t, "user-1")
	ctx := context.Background()

	require.NoError(t, f.overrides.SetUserOverride(ctx, "chan-1", "user-1", 0, models.PermViewChannel))

	eff, err := f.perms.EffectiveChannel(ctx, "user-1", "chan-1")
	require.NoError(t, err)
	assert.Equal(t, models.Permission(0), eff, "kanalı göremeyen hiçbir şey yapamaz")
}

func TestEffectiveChannelTimeoutStripsProduction(t *testing.T) {
	f := newPermFixture(t)
	f.addMember(t, "user-1")
	ctx := context.Background()

	until := time.Now().Add(time.Hour)
	require.NoError(t, f.members.SetTimeout(ctx, "user-1", "srv-1", &until))

	eff, err := f.perms.EffectiveChannel(ctx, "user-1", "chan-1")
	require.NoError(t, err)
	assert.True(t, eff.Has(models.PermViewChannel))
	assert.False(t, eff.Has(models.PermSendMessages))
	assert.False(t, eff.Has(models.PermSpeak))
}

func TestEffectiveChannelDM(t *testing.T) {
	f := newPermFixture(t)
	ctx := context.Background()

	// ServerID'siz kanal DM'dir.
	require.NoError(t, f.channels.Create(ctx, &models.Channel{ID: "dm-1", Type: models.ChannelTypeDM}))
	require.NoError(t, f.dms.AddParticipant(ctx, "dm-1", "user-1"))

	eff, err := f.perms.EffectiveChannel(ctx, "user-1", "dm-1")
	require.NoError(t, err)
	assert.True(t, eff.Has(models.PermViewChannel))
	assert.True(t, eff.Has(models.PermSendMessages))
	assert.True(t, eff.Has(models.PermSpeak))
	assert.False(t, eff.Has(models.PermManageMessages), "DM'de moderasyon yetkisi yoktur")

	// Katılımcı olmayan hiçbir şey göremez.
	eff, err = f.perms.EffectiveChannel(ctx, "outsider", "dm-1")
	require.NoError(t, err)
	assert.Equal(t, models.Permission(0), eff)
}

func TestEffectiveChannelUnknownChannel(t *testing.T) {
	f := newPermFixture(t)

	_, err := f.perms.EffectiveChannel(context.Background(), "user-1", "no-such-channel")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestRequireChannel(t *testing.T) {
	f := newPermFixture(t)
	f.addMember(t, "user-1")
	ctx := context.Background()

	assert.NoError(t, f.perms.RequireChannel(ctx, "user-1", "chan-1", models.PermSendMessages))

	err := f.perms.RequireChannel(ctx, "user-1", "chan-1", models.PermManageChannels)
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestEffectiveServerSkipsOverrides(t *testing.T) {
	f := newPermFixture(t)
	f.addMember(t, "user-1")
	ctx := context.Background()

	// Kanal override'ı sunucu geneli yetkiyi etkilemez.
	require.NoError(t, f.overrides.SetUserOverride(ctx, "chan-1", "user-1", models.PermManageServer, 0))

	eff, err := f.perms.EffectiveServer(ctx, "user-1", "srv-1")
	require.NoError(t, err)
	assert.False(t, eff.Has(models.PermManageServer))
	assert.Equal(t, models.Permission(models.PermEveryoneDefault), eff)
}

func TestRequireHierarchy(t *testing.T) {
	f := newPermFixture(t)
	f.addMember(t, "mod-1")
	f.addMember(t, "user-1")
	f.addMember(t, "peer-1")
	f.addRole(t, "role-mod", models.PermKickMembers, 3, "mod-1")
	f.addRole(t, "role-peer", models.PermKickMembers, 3, "peer-1")
	ctx := context.Background()

	// Owner dokunulmazdır — moderatör bile olsa.
	err := f.perms.RequireHierarchy(ctx, "srv-1", "mod-1", "owner-1")
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	// Owner herkese dokunur.
	assert.NoError(t, f.perms.RequireHierarchy(ctx, "srv-1", "owner-1", "mod-1"))

	// Üstteki alttakine dokunur; tersi olmaz.
	assert.NoError(t, f.perms.RequireHierarchy(ctx, "srv-1", "mod-1", "user-1"))
	assert.ErrorIs(t, f.perms.RequireHierarchy(ctx, "srv-1", "user-1", "mod-1"), pkg.ErrForbidden)

	// Eşit pozisyon yetmez.
	assert.ErrorIs(t, f.perms.RequireHierarchy(ctx, "srv-1", "mod-1", "peer-1"), pkg.ErrForbidden)
}

func TestInvalidateUser(t *testing.T) {
	f := newPermFixture(t)
	f.addMember(t, "user-1")
	ctx := context.Background()

	eff, err := f.perms.EffectiveChannel(ctx, "user-1", "chan-1")
	require.NoError(t, err)
	assert.True(t, eff.Has(models.PermSendMessages))

	// Deny eklendi ama cache hâlâ eski sonucu döndürür.
	require.NoError(t, f.overrides.SetUserOverride(ctx, "chan-1", "user-1", 0, models.PermSendMessages))
	eff, err = f.perms.EffectiveChannel(ctx, "user-1", "chan-1")
	require.NoError(t, err)
	assert.True(t, eff.Has(models.PermSendMessages), "cache hit beklenir")

	f.perms.InvalidateUser("user-1")
	eff, err = f.perms.EffectiveChannel(ctx, "user-1", "chan-1")
	require.NoError(t, err)
	assert.False(t, eff.Has(models.PermSendMessages))
}

func TestInvalidateServer(t *testing.T) {
	f := newPermFixture(t)
	f.addMember(t, "user-1")
	ctx := context.Background()

	// İlk çözüm channelServer eşlemesini doldurur.
	_, err := f.perms.EffectiveChannel(ctx, "user-1", "chan-1")
	require.NoError(t, err)

	require.NoError(t, f.overrides.SetUserOverride(ctx, "chan-1", "user-1", 0, models.PermSendMessages))
	f.perms.InvalidateServer("srv-1")

	eff, err := f.perms.EffectiveChannel(ctx, "user-1", "chan-1")
	require.NoError(t, err)
	assert.False(t, eff.Has(models.PermSendMessages))
}
