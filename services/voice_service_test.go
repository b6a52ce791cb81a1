package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/ws"
)

type voiceFixture struct {
	channels *fakeChannelRepo
	dms      *fakeDMRepo
	friends  *fakeFriends
	perms    *fakePerms
	hub      *fakeVoiceHub
	svc      VoiceService
}

func newVoiceFixture(t *testing.T) *voiceFixture {
	t.Helper()

	f := &voiceFixture{
		channels: newFakeChannelRepo(),
		dms:      newFakeDMRepo(),
		friends:  newFakeFriends(),
		perms:    newFakePerms(),
		hub:      newFakeVoiceHub(),
	}
	f.svc = NewVoiceService(f.channels, f.dms, f.friends, f.perms, f.hub, nil)

	ctx := context.Background()
	serverID := "srv-1"
	require.NoError(t, f.channels.Create(ctx, &models.Channel{
		ID: "voice-1", ServerID: &serverID, Type: models.ChannelTypeVoice, Name: "sesli",
	}))
	require.NoError(t, f.channels.Create(ctx, &models.Channel{
		ID: "voice-2", ServerID: &serverID, Type: models.ChannelTypeVoice, Name: "sesli-2",
	}))
	require.NoError(t, f.channels.Create(ctx, &models.Channel{
		ID: "text-1", ServerID: &serverID, Type: models.ChannelTypeText, Name: "genel",
	}))
	require.NoError(t, f.channels.Create(ctx, &models.Channel{
		ID: "dm-1", Type: models.ChannelTypeDM,
	}))
	require.NoError(t, f.dms.AddParticipant(ctx, "dm-1", "alice"))
	require.NoError(t, f.dms.AddParticipant(ctx, "dm-1", "bob"))
	return f
}

func TestVoiceJoinAndRoster(t *testing.T) {
	f := newVoiceFixture(t)
	ctx := context.Background()

	state, err := f.svc.Join(ctx, "sock-a", "alice", "voice-1")
	require.NoError(t, err)
	assert.Equal(t, "voice-1", state.ChannelID)
	assert.Len(t, state.Peers, 1)

	state, err = f.svc.Join(ctx, "sock-b", "bob", "voice-1")
	require.NoError(t, err)
	assert.Len(t, state.Peers, 2)

	// İlk peer'a peer:joined gitti.
	joins := f.hub.eventsFor(ws.OpPeerJoined)
	require.Len(t, joins, 1)
	assert.Equal(t, "sock-a", joins[0].Socket)
}

func TestVoiceJoinRejectsTextChannel(t *testing.T) {
	f := newVoiceFixture(t)

	_, err := f.svc.Join(context.Background(), "sock-a", "alice", "text-1")
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestVoiceJoinRequiresConnectPermission(t *testing.T) {
	f := newVoiceFixture(t)
	f.perms.denied["mallory"] = true

	_, err := f.svc.Join(context.Background(), "sock-m", "mallory", "voice-1")
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestVoiceJoinMovesSocketBetweenRooms(t *testing.T) {
	f := newVoiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Join(ctx, "sock-a", "alice", "voice-1")
	require.NoError(t, err)

	// Aynı socket ikinci kanala geçer — ilkinden otomatik ayrılır.
	state, err := f.svc.Join(ctx, "sock-a", "alice", "voice-2")
	require.NoError(t, err)
	assert.Equal(t, "voice-2", state.ChannelID)
	assert.Len(t, state.Peers, 1)
}

func TestVoiceDeafenForcesMute(t *testing.T) {
	f := newVoiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Join(ctx, "sock-a", "alice", "voice-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.SetDeafened(ctx, "sock-a", true))
	events := f.hub.eventsFor(ws.OpPeerDeafenChanged)
	require.Len(t, events, 1)
	data := events[0].Event.Data.(map[string]any)
	assert.Equal(t, true, data["is_deafened"])
	assert.Equal(t, true, data["is_muted"], "deafen mute'u zorlar")

	// Unmute deafen'ı da düşürür.
	require.NoError(t, f.svc.SetMuted(ctx, "sock-a", false))
	muteEvents := f.hub.eventsFor(ws.OpPeerMuteChanged)
	require.Len(t, muteEvents, 1)
	assert.Equal(t, false, muteEvents[0].Event.Data.(map[string]any)["is_muted"])

	state, err := f.svc.Join(ctx, "sock-b", "bob", "voice-1")
	require.NoError(t, err)
	for _, p := range state.Peers {
		if p.SocketID == "sock-a" {
			assert.False(t, p.IsDeafened)
		}
	}
}

func TestVoiceMutateOutsideRoom(t *testing.T) {
	f := newVoiceFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.SetMuted(ctx, "ghost", true), pkg.ErrBadRequest)
	assert.ErrorIs(t, f.svc.StartScreenShare(ctx, "ghost"), pkg.ErrBadRequest)
	assert.ErrorIs(t, f.svc.Watch(ctx, "ghost"), pkg.ErrBadRequest)
}

func TestScreenShareSingleSharer(t *testing.T) {
	f := newVoiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Join(ctx, "sock-a", "alice", "voice-1")
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, "sock-b", "bob", "voice-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.StartScreenShare(ctx, "sock-a"))
	assert.NotEmpty(t, f.hub.eventsFor(ws.OpScreenStarted))

	// Aynı kanalda ikinci sharer reddedilir.
	err = f.svc.StartScreenShare(ctx, "sock-b")
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	// İlk sharer durunca sıra açılır.
	require.NoError(t, f.svc.StopScreenShare(ctx, "sock-a"))
	assert.NotEmpty(t, f.hub.eventsFor(ws.OpScreenStopped))
	require.NoError(t, f.svc.StartScreenShare(ctx, "sock-b"))
}

// permsHook, RequireChannel çağrısı sırasında bir callback çalıştırır —
// yetki kontrolü penceresinde oda durumunu değiştiren yarışları kurmak için.
type permsHook struct {
	*fakePerms
	onRequireChannel func(userID string)
}

func (p *permsHook) RequireChannel(ctx context.Context, userID, channelID string, perm models.Permission) error {
	if p.onRequireChannel != nil {
		p.onRequireChannel(userID)
	}
	return p.fakePerms.RequireChannel(ctx, userID, channelID, perm)
}

func TestScreenShareSlotTakenDuringPermissionCheck(t *testing.T) {
	channels := newFakeChannelRepo()
	perms := &permsHook{fakePerms: newFakePerms()}
	hub := newFakeVoiceHub()
	svc := NewVoiceService(channels, newFakeDMRepo(), newFakeFriends(), perms, hub, nil)

	ctx := context.Background()
	serverID := "srv-1"
	require.NoError(t, channels.Create(ctx, &models.Channel{
		ID: "voice-1", ServerID: &serverID, Type: models.ChannelTypeVoice, Name: "sesli",
	}))

	_, err := svc.Join(ctx, "sock-a", "alice", "voice-1")
	require.NoError(t, err)
	_, err = svc.Join(ctx, "sock-b", "bob", "voice-1")
	require.NoError(t, err)

	// bob'un yetki kontrolü sürerken alice paylaşıma başlar — kilit geri
	// alındığında slot dolu bulunmalı, bob sharer'ı ezmemeli.
	fired := false
	perms.onRequireChannel = func(userID string) {
		if userID == "bob" && !fired {
			fired = true
			require.NoError(t, svc.StartScreenShare(ctx, "sock-a"))
		}
	}

	assert.ErrorIs(t, svc.StartScreenShare(ctx, "sock-b"), pkg.ErrBadRequest)

	// alice'in yayını ayakta kalır: stop yalnızca alice'ten kabul edilir.
	assert.NotEmpty(t, hub.eventsFor(ws.OpScreenStarted))
	require.NoError(t, svc.StopScreenShare(ctx, "sock-a"))
}

func TestScreenWatchOptIn(t *testing.T) {
	f := newVoiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Join(ctx, "sock-a", "alice", "voice-1")
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, "sock-b", "bob", "voice-1")
	require.NoError(t, err)

	// Kimse paylaşmıyorken watch hata döner.
	assert.ErrorIs(t, f.svc.Watch(ctx, "sock-b"), pkg.ErrBadRequest)

	require.NoError(t, f.svc.StartScreenShare(ctx, "sock-a"))

	// Kendi yayınını izleyemez.
	assert.ErrorIs(t, f.svc.Watch(ctx, "sock-a"), pkg.ErrBadRequest)

	require.NoError(t, f.svc.Watch(ctx, "sock-b"))
	adds := f.hub.eventsFor(ws.OpScreenAddViewer)
	require.Len(t, adds, 1)
	// Bildirim izleyiciye değil paylaşana gider — offer'ı o başlatır.
	assert.Equal(t, "sock-a", adds[0].Socket)
	assert.Equal(t, "sock-b", adds[0].Event.Data.(map[string]string)["socket_id"])

	// Watch idempotent.
	require.NoError(t, f.svc.Watch(ctx, "sock-b"))
	assert.Len(t, f.hub.eventsFor(ws.OpScreenAddViewer), 1)

	require.NoError(t, f.svc.Unwatch(ctx, "sock-b"))
	removes := f.hub.eventsFor(ws.OpScreenRemoveViewer)
	require.Len(t, removes, 1)
	assert.Equal(t, "sock-a", removes[0].Socket)

	// Unwatch de idempotent.
	require.NoError(t, f.svc.Unwatch(ctx, "sock-b"))
	assert.Len(t, f.hub.eventsFor(ws.OpScreenRemoveViewer), 1)
}

func TestRelaySameRoomOnly(t *testing.T) {
	f := newVoiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Join(ctx, "sock-a", "alice", "voice-1")
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, "sock-b", "bob", "voice-1")
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, "sock-c", "carol", "voice-2")
	require.NoError(t, err)

	payload := json.RawMessage(`{"sdp":"..."}`)

	f.svc.Relay(ctx, "sock-a", "sock-b", ws.OpWebRTCOffer, payload)
	offers := f.hub.eventsFor(ws.OpWebRTCOffer)
	require.Len(t, offers, 1)
	assert.Equal(t, "sock-b", offers[0].Socket)
	assert.Equal(t, "sock-a", offers[0].Event.Data.(map[string]any)["from"])

	// Farklı room — sessizce düşer.
	f.svc.Relay(ctx, "sock-a", "sock-c", ws.OpWebRTCOffer, payload)
	assert.Len(t, f.hub.eventsFor(ws.OpWebRTCOffer), 1)

	// Room'da olmayan hedef — sessizce düşer.
	f.svc.Relay(ctx, "sock-a", "ghost", ws.OpWebRTCOffer, payload)
	assert.Len(t, f.hub.eventsFor(ws.OpWebRTCOffer), 1)
}

func TestHandleDisconnectCleansUp(t *testing.T) {
	f := newVoiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Join(ctx, "sock-a", "alice", "voice-1")
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, "sock-b", "bob", "voice-1")
	require.NoError(t, err)
	require.NoError(t, f.svc.StartScreenShare(ctx, "sock-a"))

	f.svc.HandleDisconnect("sock-a", "alice")

	// Sharer düşünce yayın da durur, kalan peer'a peer:left gider.
	assert.NotEmpty(t, f.hub.eventsFor(ws.OpScreenStopped))
	lefts := f.hub.eventsFor(ws.OpPeerLeft)
	require.Len(t, lefts, 1)
	assert.Equal(t, "sock-b", lefts[0].Socket)

	// Düşen socket için tekrar disconnect zararsızdır.
	f.svc.HandleDisconnect("sock-a", "alice")
	assert.Len(t, f.hub.eventsFor(ws.OpPeerLeft), 1)
}

func TestDMCallRing(t *testing.T) {
	f := newVoiceFixture(t)
	f.hub.usernames["alice"] = "alice"
	ctx := context.Background()

	require.NoError(t, f.svc.StartCall(ctx, "sock-a", "alice", "dm-1"))

	rings := f.hub.eventsFor(ws.OpDMCallIncoming)
	require.Len(t, rings, 1)
	assert.Equal(t, "bob", rings[0].UserID)
	data := rings[0].Event.Data.(map[string]string)
	assert.Equal(t, "alice", data["caller_id"])
}

func TestDMCallRingSuppressedByDND(t *testing.T) {
	f := newVoiceFixture(t)
	f.hub.statuses["bob"] = string(models.UserStatusDND)

	require.NoError(t, f.svc.StartCall(context.Background(), "sock-a", "alice", "dm-1"))
	assert.Empty(t, f.hub.eventsFor(ws.OpDMCallIncoming), "dnd zili bastırır")
}

func TestDMCallRingSuppressedByBlock(t *testing.T) {
	f := newVoiceFixture(t)
	f.friends.block("alice", "bob")

	// Arayana hata dönmez — zil sessizce gitmez.
	require.NoError(t, f.svc.StartCall(context.Background(), "sock-a", "alice", "dm-1"))
	assert.Empty(t, f.hub.eventsFor(ws.OpDMCallIncoming))
}

func TestDMCallRejectsServerChannel(t *testing.T) {
	f := newVoiceFixture(t)

	err := f.svc.StartCall(context.Background(), "sock-a", "alice", "voice-1")
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestDMCallDecline(t *testing.T) {
	f := newVoiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.StartCall(ctx, "sock-a", "alice", "dm-1"))
	require.NoError(t, f.svc.DeclineCall(ctx, "bob", "dm-1"))

	declines := f.hub.eventsFor(ws.OpDMCallDeclined)
	require.Len(t, declines, 1)
	assert.Equal(t, "alice", declines[0].UserID)

	// Katılımcı olmayan decline edemez.
	assert.ErrorIs(t, f.svc.DeclineCall(ctx, "mallory", "dm-1"), pkg.ErrForbidden)

	// Çağrı zaten düşmüşse decline sessizdir.
	require.NoError(t, f.svc.DeclineCall(ctx, "bob", "dm-1"))
	assert.Len(t, f.hub.eventsFor(ws.OpDMCallDeclined), 1)
}

func TestDMCallEnd(t *testing.T) {
	f := newVoiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.StartCall(ctx, "sock-a", "alice", "dm-1"))
	_, err := f.svc.Join(ctx, "sock-b", "bob", "dm-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.EndCall(ctx, "alice", "dm-1"))

	// Her iki katılımcıya call:ended gider.
	ends := f.hub.eventsFor(ws.OpDMCallEnded)
	assert.Len(t, ends, 2)
}
