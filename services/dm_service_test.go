package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/ws"
)

type dmFixture struct {
	dms        *fakeDMRepo
	channels   *fakeChannelRepo
	users      *fakeUserRepo
	messages   *fakeMessageRepo
	reads      *fakeReadStateRepo
	friendRepo *fakeFriendRepo
	hub        *fakeHub
	svc        DMService
}

func newDMFixture(t *testing.T) *dmFixture {
	t.Helper()

	f := &dmFixture{
		dms:        newFakeDMRepo(),
		channels:   newFakeChannelRepo(),
		messages:   newFakeMessageRepo(),
		reads:      newFakeReadStateRepo(),
		friendRepo: newFakeFriendRepo(),
		hub:        newFakeHub(),
	}
	f.users = newFakeUserRepo(
		&models.User{ID: "u-alice", Username: "alice"},
		&models.User{ID: "u-bob", Username: "bob"},
		&models.User{ID: "u-carol", Username: "carol"},
		&models.User{ID: "u-dave", Username: "dave"},
	)
	friends := NewFriendshipService(f.friendRepo, f.users, f.hub)
	f.svc = NewDMService(f.dms, f.channels, f.users, f.messages, f.reads, friends, f.hub)
	return f
}

// befriend, iki kullanıcıyı doğrudan accepted durumuna getirir.
func (f *dmFixture) befriend(t *testing.T, a, b string) {
	t.Helper()
	fr := &models.Friendship{RequesterID: a, TargetID: b, State: models.FriendshipAccepted}
	require.NoError(t, f.friendRepo.CreateRequest(context.Background(), fr))
}

func TestDMCreateDirectOpensAsRequest(t *testing.T) {
	f := newDMFixture(t)
	ctx := context.Background()

	view, err := f.svc.CreateDirect(ctx, "u-alice", "u-bob")
	require.NoError(t, err)

	// Açan tarafta normal kanal, alıcıda message request.
	assert.False(t, view.RequestPending)
	assert.True(t, f.dms.state(view.Channel.ID, "u-bob").RequestPending)

	ids, err := f.dms.ParticipantIDs(ctx, view.Channel.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u-alice", "u-bob"}, ids)

	// İki katılımcıya da dm:created gider.
	assert.Len(t, f.hub.eventsFor(ws.OpDMCreated), 2)
}

func TestDMCreateDirectBetweenFriends(t *testing.T) {
	f := newDMFixture(t)
	f.befriend(t, "u-alice", "u-bob")

	view, err := f.svc.CreateDirect(context.Background(), "u-alice", "u-bob")
	require.NoError(t, err)
	assert.False(t, f.dms.state(view.Channel.ID, "u-bob").RequestPending,
		"arkadaşlar arası DM request akışına girmez")
}

func TestDMCreateDirectIdempotent(t *testing.T) {
	f := newDMFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateDirect(ctx, "u-alice", "u-bob")
	require.NoError(t, err)

	// İkinci çağrı aynı kanalı döner — ters yönden bile.
	second, err := f.svc.CreateDirect(ctx, "u-bob", "u-alice")
	require.NoError(t, err)
	assert.Equal(t, first.Channel.ID, second.Channel.ID)
	assert.Len(t, f.channels.channels, 1)
}

func TestDMCreateDirectRejections(t *testing.T) {
	f := newDMFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateDirect(ctx, "u-alice", "u-alice")
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	_, err = f.svc.CreateDirect(ctx, "u-alice", "u-ghost")
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	// Silinmiş hesapla DM açılmaz.
	now := time.Now()
	f.users.users["u-dave"].DeletedAt = &now
	_, err = f.svc.CreateDirect(ctx, "u-alice", "u-dave")
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	require.NoError(t, f.friendRepo.Block(ctx, "u-bob", "u-alice"))
	_, err = f.svc.CreateDirect(ctx, "u-alice", "u-bob")
	assert.ErrorIs(t, err, pkg.ErrBlocked)
}

func TestDMAcceptRequest(t *testing.T) {
	f := newDMFixture(t)
	ctx := context.Background()

	view, err := f.svc.CreateDirect(ctx, "u-alice", "u-bob")
	require.NoError(t, err)

	require.NoError(t, f.svc.AcceptRequest(ctx, "u-bob", view.Channel.ID))
	assert.False(t, f.dms.state(view.Channel.ID, "u-bob").RequestPending)

	updates := f.hub.eventsFor(ws.OpDMUpdated)
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, ws.KeyPersonal("u-bob"), last.Room)
	assert.Equal(t, "accepted", last.Event.Data.(map[string]string)["request"])

	// Katılımcı olmayan accept edemez.
	assert.ErrorIs(t, f.svc.AcceptRequest(ctx, "u-carol", view.Channel.ID), pkg.ErrForbidden)
}

func TestDMRejectRequestHidesChannel(t *testing.T) {
	f := newDMFixture(t)
	ctx := context.Background()

	view, err := f.svc.CreateDirect(ctx, "u-alice", "u-bob")
	require.NoError(t, err)

	require.NoError(t, f.svc.RejectRequest(ctx, "u-bob", view.Channel.ID))

	st := f.dms.state(view.Channel.ID, "u-bob")
	assert.False(t, st.RequestPending)
	assert.True(t, st.Hidden, "reddedilen kanal reddeden için gizlenir")

	// Gönderen tarafta kanal yaşamaya devam eder.
	alice, err := f.dms.ListForUser(ctx, "u-alice")
	require.NoError(t, err)
	assert.Len(t, alice, 1)
}

func TestDMCreateGroupValidation(t *testing.T) {
	f := newDMFixture(t)
	ctx := context.Background()

	// Kurucu + 1 kişi yetmez (dedup sonrası).
	_, err := f.svc.CreateGroup(ctx, "u-alice", []string{"u-bob", "u-bob"}, "")
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	require.NoError(t, f.friendRepo.Block(ctx, "u-carol", "u-alice"))
	_, err = f.svc.CreateGroup(ctx, "u-alice", []string{"u-bob", "u-carol"}, "takım")
	assert.ErrorIs(t, err, pkg.ErrBlocked)

	group, err := f.svc.CreateGroup(ctx, "u-alice", []string{"u-bob", "u-dave"}, "  ")
	require.NoError(t, err)
	assert.Equal(t, models.ChannelTypeGroupDM, group.Channel.Type)
	assert.Equal(t, "group", group.Channel.Name, "boş isim varsayılana düşer")

	ids, _ := f.dms.ParticipantIDs(ctx, group.Channel.ID)
	assert.Len(t, ids, 3)
}

func TestDMGroupParticipantManagement(t *testing.T) {
	f := newDMFixture(t)
	ctx := context.Background()

	group, err := f.svc.CreateGroup(ctx, "u-alice", []string{"u-bob", "u-carol"}, "takım")
	require.NoError(t, err)

	require.NoError(t, f.svc.AddParticipant(ctx, "u-alice", group.Channel.ID, "u-dave"))
	ids, _ := f.dms.ParticipantIDs(ctx, group.Channel.ID)
	assert.Len(t, ids, 4)

	// Başkasını çıkarmak yok — yalnızca kendini.
	err = f.svc.RemoveParticipant(ctx, "u-alice", group.Channel.ID, "u-bob")
	assert.ErrorIs(t, err, pkg.ErrForbidden)
	require.NoError(t, f.svc.RemoveParticipant(ctx, "u-dave", group.Channel.ID, "u-dave"))

	// 1:1 DM'e katılımcı eklenemez.
	direct, err := f.svc.CreateDirect(ctx, "u-alice", "u-bob")
	require.NoError(t, err)
	err = f.svc.AddParticipant(ctx, "u-alice", direct.Channel.ID, "u-carol")
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestDMMarkReadAndUnreadCounts(t *testing.T) {
	f := newDMFixture(t)
	ctx := context.Background()

	view, err := f.svc.CreateDirect(ctx, "u-alice", "u-bob")
	require.NoError(t, err)
	channelID := view.Channel.ID

	for _, id := range []string{"100", "101"} {
		require.NoError(t, f.messages.Create(ctx, &models.Message{ID: id, ChannelID: channelID}))
	}

	counts, err := f.svc.UnreadCounts(ctx, "u-bob")
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, 2, counts[0].Count)

	// messageID boş → kanalın son mesajına kadar okundu sayılır.
	require.NoError(t, f.svc.MarkRead(ctx, "u-bob", channelID, ""))
	st, err := f.reads.Get(ctx, "u-bob", channelID)
	require.NoError(t, err)
	assert.Equal(t, "101", st.LastReadMessageID)

	events := f.hub.eventsFor(ws.OpDMUnreadCounts)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, ws.KeyPersonal("u-bob"), last.Room)
	assert.Equal(t, 0, last.Event.Data.([]models.UnreadCount)[0].Count)

	// Katılımcı olmayan cursor süremez.
	assert.ErrorIs(t, f.svc.MarkRead(ctx, "u-carol", channelID, ""), pkg.ErrForbidden)
}

func TestDMHideIsPerUser(t *testing.T) {
	f := newDMFixture(t)
	ctx := context.Background()

	view, err := f.svc.CreateDirect(ctx, "u-alice", "u-bob")
	require.NoError(t, err)

	require.NoError(t, f.svc.Hide(ctx, "u-alice", view.Channel.ID))

	alice, _ := f.dms.ListForUser(ctx, "u-alice")
	bob, _ := f.dms.ListForUser(ctx, "u-bob")
	assert.Empty(t, alice, "gizleyen için kanal listeden düşer")
	assert.Len(t, bob, 1, "diğer katılımcı için kanal yaşar")

	// Yeniden dm:create kanalı geri görünür yapar.
	again, err := f.svc.CreateDirect(ctx, "u-alice", "u-bob")
	require.NoError(t, err)
	assert.Equal(t, view.Channel.ID, again.Channel.ID)
	assert.False(t, f.dms.state(view.Channel.ID, "u-alice").Hidden)
}

func TestDMPersonalServerSplitsRequests(t *testing.T) {
	f := newDMFixture(t)
	ctx := context.Background()

	view, err := f.svc.CreateDirect(ctx, "u-alice", "u-bob")
	require.NoError(t, err)

	bob, err := f.svc.PersonalServer(ctx, "u-bob")
	require.NoError(t, err)
	assert.Equal(t, "personal:u-bob", bob.ID)
	assert.Len(t, bob.Requests, 1, "bekleyen istek ayrı listededir")
	assert.Empty(t, bob.Channels)

	alice, err := f.svc.PersonalServer(ctx, "u-alice")
	require.NoError(t, err)
	assert.Len(t, alice.Channels, 1)
	assert.Empty(t, alice.Requests)

	require.NoError(t, f.svc.AcceptRequest(ctx, "u-bob", view.Channel.ID))
	bob, err = f.svc.PersonalServer(ctx, "u-bob")
	require.NoError(t, err)
	assert.Len(t, bob.Channels, 1)
	assert.Empty(t, bob.Requests)
}
