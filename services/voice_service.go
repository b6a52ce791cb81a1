package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nexushq/nexus/config"
	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/repository"
	"github.com/nexushq/nexus/ws"
)

// voiceHub, VoiceService'in Hub'dan ihtiyaç duyduğu dar yüzey:
// event yayını + presence okuma (DND'de çalan çağrı bastırılır).
type voiceHub interface {
	ws.EventPublisher
	Username(userID string) string
	Status(userID string) string
}

// VoiceService, P2P sesli sohbet signaling ve ekran paylaşımı iş mantığı.
//
// Server medya taşımaz — yalnızca signaling relay'idir. Voice room'lar
// tamamen in-memory'dir: store'a yazılmaz, process restart'ında kaybolur,
// client reconnect sonrası voice:join'i yeniden gönderir.
//
// Peer'lar socket bazlıdır: aynı kullanıcının iki sekmesi iki ayrı peer'dır.
// SDP/ICE payload'ları opak geçer — server içeriğini parse etmez.
// Geçersiz relay hedefi sessizce düşürülür: yarış koşullarında (hedef tam
// o anda ayrıldı) client'a hata yağdırmak işe yaramaz.
type VoiceService interface {
	Join(ctx context.Context, socketID, userID, channelID string) (*models.VoiceRoomState, error)
	Leave(ctx context.Context, socketID string) error
	SetMuted(ctx context.Context, socketID string, muted bool) error
	SetDeafened(ctx context.Context, socketID string, deafened bool) error

	StartScreenShare(ctx context.Context, socketID string) error
	StopScreenShare(ctx context.Context, socketID string) error
	Watch(ctx context.Context, socketID string) error
	Unwatch(ctx context.Context, socketID string) error

	// Relay, SDP offer/answer ve ICE candidate'leri hedef socket'e iletir.
	// Hedef aynı room'da değilse frame sessizce düşer.
	Relay(ctx context.Context, fromSocketID, targetSocketID, op string, payload json.RawMessage)
	ICEConfig() []config.ICEServer

	StartCall(ctx context.Context, callerSocketID, callerID, channelID string) error
	DeclineCall(ctx context.Context, userID, channelID string) error
	EndCall(ctx context.Context, userID, channelID string) error

	// HandleDisconnect, hub onClose callback'inden çağrılır.
	HandleDisconnect(socketID, userID string)
}

// voicePeer, room'daki tek bir socket'in iç durumu.
type voicePeer struct {
	socketID      string
	userID        string
	username      string
	muted         bool
	deafened      bool
	screenSharing bool
	joinedAt      time.Time

	// watchers: ekran paylaşan peer'ın yayınını izlemeyi seçen socket'ler.
	// Paylaşan, yalnızca bu kümeye offer gönderir — opt-in model bant
	// genişliğini izleyici sayısıyla sınırlar.
	watchers map[string]bool
}

// voiceRoom, tek bir kanalın aktif voice oturumu.
type voiceRoom struct {
	channelID string
	serverID  *string
	peers     map[string]*voicePeer // socketID → peer
	sharerID  string                // aktif ekran paylaşan socket; "" → yok
}

// dmCall, çalmakta olan bir DM çağrısı.
type dmCall struct {
	channelID string
	callerID  string
	startedAt time.Time
}

type voiceService struct {
	channelRepo repository.ChannelRepository
	dmRepo      repository.DMRepository
	friends     FriendshipService
	perms       PermissionService
	hub         voiceHub
	iceServers  []config.ICEServer

	mu       sync.RWMutex
	rooms    map[string]*voiceRoom // channelID → room
	bySocket map[string]string     // socketID → channelID
	calls    map[string]*dmCall    // channelID → çalan çağrı
}

// NewVoiceService, constructor.
func NewVoiceService(
	channelRepo repository.ChannelRepository,
	dmRepo repository.DMRepository,
	friends FriendshipService,
	perms PermissionService,
	hub voiceHub,
	iceServers []config.ICEServer,
) VoiceService {
	return &voiceService{
		channelRepo: channelRepo,
		dmRepo:      dmRepo,
		friends:     friends,
		perms:       perms,
		hub:         hub,
		iceServers:  iceServers,
		rooms:       make(map[string]*voiceRoom),
		bySocket:    make(map[string]string),
		calls:       make(map[string]*dmCall),
	}
}

func (s *voiceService) Join(ctx context.Context, socketID, userID, channelID string) (*models.VoiceRoomState, error) {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.Type == models.ChannelTypeText {
		return nil, fmt.Errorf("%w: not a voice-capable channel", pkg.ErrBadRequest)
	}
	if err := s.perms.RequireChannel(ctx, userID, channelID, models.PermConnectVoice); err != nil {
		return nil, err
	}

	s.mu.Lock()
	// Aynı socket başka bir room'daysa önce oradan düşer.
	if prev, ok := s.bySocket[socketID]; ok && prev != channelID {
		s.leaveLocked(socketID)
	}

	room, ok := s.rooms[channelID]
	if !ok {
		room = &voiceRoom{
			channelID: channelID,
			serverID:  channel.ServerID,
			peers:     make(map[string]*voicePeer),
		}
		s.rooms[channelID] = room
	}

	peer := &voicePeer{
		socketID: socketID,
		userID:   userID,
		username: s.hub.Username(userID),
		joinedAt: time.Now(),
		watchers: make(map[string]bool),
	}
	room.peers[socketID] = peer
	s.bySocket[socketID] = channelID

	state := room.stateLocked()
	others := room.socketsExceptLocked(socketID)
	s.mu.Unlock()

	// Çalan bir çağrı varsa karşı taraf katıldı — zil durur.
	s.mu.Lock()
	delete(s.calls, channelID)
	s.mu.Unlock()

	for _, sid := range others {
		s.hub.EmitToSocket(sid, ws.Event{Op: ws.OpPeerJoined, Data: peer.public()})
	}
	s.broadcastRoomState(channelID, state)
	log.Printf("[voice] joined: socket=%s user=%s channel=%s", socketID, userID, channelID)
	return &state, nil
}

func (s *voiceService) Leave(ctx context.Context, socketID string) error {
	s.mu.Lock()
	events := s.leaveLocked(socketID)
	s.mu.Unlock()
	s.deliver(events)
	return nil
}

func (s *voiceService) SetMuted(ctx context.Context, socketID string, muted bool) error {
	return s.updatePeer(socketID, func(peer *voicePeer) (string, any) {
		peer.muted = muted
		// Deafen açıkken unmute anlamsızdır; deafen'ı da düşür.
		if !muted && peer.deafened {
			peer.deafened = false
		}
		return ws.OpPeerMuteChanged, map[string]any{
			"socket_id": peer.socketID,
			"user_id":   peer.userID,
			"is_muted":  peer.muted,
		}
	})
}

func (s *voiceService) SetDeafened(ctx context.Context, socketID string, deafened bool) error {
	return s.updatePeer(socketID, func(peer *voicePeer) (string, any) {
		peer.deafened = deafened
		// Deafen mute'u zorlar — duymayan konuşamaz varsayımı değil,
		// Discord konvansiyonu.
		if deafened {
			peer.muted = true
		}
		return ws.OpPeerDeafenChanged, map[string]any{
			"socket_id":   peer.socketID,
			"user_id":     peer.userID,
			"is_muted":    peer.muted,
			"is_deafened": peer.deafened,
		}
	})
}

func (s *voiceService) StartScreenShare(ctx context.Context, socketID string) error {
	s.mu.Lock()
	room, peer, err := s.peerLocked(socketID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if room.sharerID != "" && room.sharerID != socketID {
		s.mu.Unlock()
		return fmt.Errorf("%w: another peer is already sharing", pkg.ErrBadRequest)
	}
	userID := peer.userID
	channelID := room.channelID
	s.mu.Unlock()

	if err := s.perms.RequireChannel(ctx, userID, channelID, models.PermScreenShare); err != nil {
		return err
	}

	s.mu.Lock()
	room, peer, err = s.peerLocked(socketID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	// Kilit yetki kontrolü için bırakılmıştı — bu arada başka bir peer
	// paylaşıma başlamış olabilir; slot yeniden doğrulanır.
	if room.sharerID != "" && room.sharerID != socketID {
		s.mu.Unlock()
		return fmt.Errorf("%w: another peer is already sharing", pkg.ErrBadRequest)
	}
	room.sharerID = socketID
	peer.screenSharing = true
	peer.watchers = make(map[string]bool)
	sockets := room.socketsLocked()
	state := room.stateLocked()
	s.mu.Unlock()

	for _, sid := range sockets {
		s.hub.EmitToSocket(sid, ws.Event{
			Op:   ws.OpScreenStarted,
			Data: map[string]string{"socket_id": socketID, "user_id": userID},
		})
	}
	s.broadcastRoomState(channelID, state)
	return nil
}

func (s *voiceService) StopScreenShare(ctx context.Context, socketID string) error {
	s.mu.Lock()
	events := s.stopShareLocked(socketID)
	s.mu.Unlock()
	s.deliver(events)
	return nil
}

// Watch: izleyici, paylaşanın yayınına abone olur. Paylaşana izleyicinin
// socket ID'si bildirilir — offer'ı paylaşan başlatır.
func (s *voiceService) Watch(ctx context.Context, socketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, _, err := s.peerLocked(socketID)
	if err != nil {
		return err
	}
	if room.sharerID == "" {
		return fmt.Errorf("%w: nobody is sharing in this channel", pkg.ErrBadRequest)
	}
	if room.sharerID == socketID {
		return fmt.Errorf("%w: cannot watch your own stream", pkg.ErrBadRequest)
	}

	sharer := room.peers[room.sharerID]
	if sharer.watchers[socketID] {
		return nil // idempotent
	}
	sharer.watchers[socketID] = true
	s.hub.EmitToSocket(room.sharerID, ws.Event{
		Op:   ws.OpScreenAddViewer,
		Data: map[string]string{"socket_id": socketID},
	})
	return nil
}

func (s *voiceService) Unwatch(ctx context.Context, socketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, _, err := s.peerLocked(socketID)
	if err != nil {
		return err
	}
	if room.sharerID == "" {
		return nil
	}
	sharer := room.peers[room.sharerID]
	if !sharer.watchers[socketID] {
		return nil
	}
	delete(sharer.watchers, socketID)
	s.hub.EmitToSocket(room.sharerID, ws.Event{
		Op:   ws.OpScreenRemoveViewer,
		Data: map[string]string{"socket_id": socketID},
	})
	return nil
}

func (s *voiceService) Relay(ctx context.Context, fromSocketID, targetSocketID, op string, payload json.RawMessage) {
	s.mu.RLock()
	fromRoom, fromOK := s.bySocket[fromSocketID]
	targetRoom, targetOK := s.bySocket[targetSocketID]
	s.mu.RUnlock()

	// Aynı room doğrulaması — geçmeyen frame sessizce düşer.
	if !fromOK || !targetOK || fromRoom != targetRoom {
		return
	}

	s.hub.EmitToSocket(targetSocketID, ws.Event{
		Op: op,
		Data: map[string]any{
			"from":    fromSocketID,
			"payload": payload,
		},
	})
}

func (s *voiceService) ICEConfig() []config.ICEServer {
	return s.iceServers
}

// ─── DM çağrıları ───

func (s *voiceService) StartCall(ctx context.Context, callerSocketID, callerID, channelID string) error {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if !channel.Type.IsDM() {
		return fmt.Errorf("%w: calls are only available in direct messages", pkg.ErrBadRequest)
	}
	if err := s.perms.RequireChannel(ctx, callerID, channelID, models.PermConnectVoice); err != nil {
		return err
	}

	participantIDs, err := s.dmRepo.ParticipantIDs(ctx, channelID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.calls[channelID] = &dmCall{channelID: channelID, callerID: callerID, startedAt: time.Now()}
	s.mu.Unlock()

	// Arayan room'a hemen girer; karşı taraf zili duyar.
	if _, err := s.Join(ctx, callerSocketID, callerID, channelID); err != nil {
		return err
	}

	ring := ws.Event{
		Op: ws.OpDMCallIncoming,
		Data: map[string]string{
			"channel_id":  channelID,
			"caller_id":   callerID,
			"caller_name": s.hub.Username(callerID),
		},
	}
	for _, id := range participantIDs {
		if id == callerID {
			continue
		}
		// Block ve DND zili bastırır — arayana hata dönmez.
		if blocked, err := s.friends.IsBlockedEither(ctx, callerID, id); err != nil || blocked {
			continue
		}
		if s.hub.Status(id) == "dnd" {
			continue
		}
		s.hub.EmitToUser(id, ring)
	}
	return nil
}

func (s *voiceService) DeclineCall(ctx context.Context, userID, channelID string) error {
	if ok, err := s.dmRepo.IsParticipant(ctx, channelID, userID); err != nil || !ok {
		return fmt.Errorf("%w: not a participant", pkg.ErrForbidden)
	}

	s.mu.Lock()
	call, ok := s.calls[channelID]
	if ok {
		delete(s.calls, channelID)
	}
	s.mu.Unlock()
	if !ok {
		return nil // çağrı zaten düşmüş
	}

	s.hub.EmitToUser(call.callerID, ws.Event{
		Op:   ws.OpDMCallDeclined,
		Data: map[string]string{"channel_id": channelID, "user_id": userID},
	})
	return nil
}

func (s *voiceService) EndCall(ctx context.Context, userID, channelID string) error {
	if ok, err := s.dmRepo.IsParticipant(ctx, channelID, userID); err != nil || !ok {
		return fmt.Errorf("%w: not a participant", pkg.ErrForbidden)
	}

	s.mu.Lock()
	delete(s.calls, channelID)
	var events []targetedEvent
	if room, ok := s.rooms[channelID]; ok {
		for sid := range room.peers {
			events = append(events, s.leaveLocked(sid)...)
		}
	}
	s.mu.Unlock()
	s.deliver(events)

	if ids, err := s.dmRepo.ParticipantIDs(ctx, channelID); err == nil {
		for _, id := range ids {
			s.hub.EmitToUser(id, ws.Event{
				Op:   ws.OpDMCallEnded,
				Data: map[string]string{"channel_id": channelID, "ended_by": userID},
			})
		}
	}
	return nil
}

// HandleDisconnect, socket kapanınca voice durumunu temizler.
func (s *voiceService) HandleDisconnect(socketID, userID string) {
	s.mu.Lock()
	events := s.leaveLocked(socketID)
	s.mu.Unlock()
	s.deliver(events)
}

// ─── İç yardımcılar (lock tutulurken event GÖNDERİLMEZ — toplanır) ───

// targetedEvent, lock altında toplanıp lock bırakıldıktan sonra
// gönderilen event. Slow-client drop unregister'ı tetiklediği için lock
// tutarken EmitToSocket çağırmak deadlock riskidir.
type targetedEvent struct {
	socketID string // boşsa roomKey'e broadcast
	roomKey  string
	event    ws.Event
}

func (s *voiceService) deliver(events []targetedEvent) {
	for _, te := range events {
		if te.socketID != "" {
			s.hub.EmitToSocket(te.socketID, te.event)
		} else {
			s.hub.EmitTo(te.roomKey, te.event)
		}
	}
}

// leaveLocked, peer'ı room'dan düşürür; gönderilecek event'leri döner.
func (s *voiceService) leaveLocked(socketID string) []targetedEvent {
	channelID, ok := s.bySocket[socketID]
	if !ok {
		return nil
	}
	room := s.rooms[channelID]
	peer := room.peers[socketID]

	var events []targetedEvent
	if room.sharerID == socketID {
		events = append(events, s.stopShareLocked(socketID)...)
	}
	// İzleyici olarak ayrılıyorsa paylaşanın watcher set'inden düşer.
	if room.sharerID != "" {
		if sharer, ok := room.peers[room.sharerID]; ok && sharer.watchers[socketID] {
			delete(sharer.watchers, socketID)
			events = append(events, targetedEvent{
				socketID: room.sharerID,
				event: ws.Event{
					Op:   ws.OpScreenRemoveViewer,
					Data: map[string]string{"socket_id": socketID},
				},
			})
		}
	}

	delete(room.peers, socketID)
	delete(s.bySocket, socketID)

	left := ws.Event{
		Op:   ws.OpPeerLeft,
		Data: map[string]string{"socket_id": socketID, "user_id": peer.userID},
	}
	for sid := range room.peers {
		events = append(events, targetedEvent{socketID: sid, event: left})
	}

	if len(room.peers) == 0 {
		delete(s.rooms, channelID)
		delete(s.calls, channelID)
	}

	state := room.stateLocked()
	events = append(events, targetedEvent{
		roomKey: ws.KeyChannel(channelID),
		event:   ws.Event{Op: ws.OpVoiceChannelUpdate, Data: state},
	})
	if room.serverID != nil {
		events = append(events, targetedEvent{
			roomKey: ws.KeyServer(*room.serverID),
			event:   ws.Event{Op: ws.OpVoiceChannelUpdate, Data: state},
		})
	}
	return events
}

func (s *voiceService) stopShareLocked(socketID string) []targetedEvent {
	channelID, ok := s.bySocket[socketID]
	if !ok {
		return nil
	}
	room := s.rooms[channelID]
	if room.sharerID != socketID {
		return nil
	}

	peer := room.peers[socketID]
	room.sharerID = ""
	peer.screenSharing = false
	peer.watchers = make(map[string]bool)

	stopped := ws.Event{
		Op:   ws.OpScreenStopped,
		Data: map[string]string{"socket_id": socketID, "user_id": peer.userID},
	}
	var events []targetedEvent
	for sid := range room.peers {
		events = append(events, targetedEvent{socketID: sid, event: stopped})
	}
	return events
}

// updatePeer: peer state mutasyonu + room içi broadcast + roster yayını.
func (s *voiceService) updatePeer(socketID string, mutate func(*voicePeer) (string, any)) error {
	s.mu.Lock()
	room, peer, err := s.peerLocked(socketID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	op, data := mutate(peer)
	sockets := room.socketsLocked()
	channelID := room.channelID
	state := room.stateLocked()
	s.mu.Unlock()

	event := ws.Event{Op: op, Data: data}
	for _, sid := range sockets {
		s.hub.EmitToSocket(sid, event)
	}
	s.broadcastRoomState(channelID, state)
	return nil
}

func (s *voiceService) peerLocked(socketID string) (*voiceRoom, *voicePeer, error) {
	channelID, ok := s.bySocket[socketID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: not in a voice channel", pkg.ErrBadRequest)
	}
	room := s.rooms[channelID]
	return room, room.peers[socketID], nil
}

// broadcastRoomState, sidebar roster'ı için voice:channel:update yayını.
func (s *voiceService) broadcastRoomState(channelID string, state models.VoiceRoomState) {
	event := ws.Event{Op: ws.OpVoiceChannelUpdate, Data: state}
	s.hub.EmitTo(ws.KeyChannel(channelID), event)

	s.mu.RLock()
	room, ok := s.rooms[channelID]
	var serverID *string
	if ok {
		serverID = room.serverID
	}
	s.mu.RUnlock()
	if serverID != nil {
		s.hub.EmitTo(ws.KeyServer(*serverID), event)
	}
}

// ─── voiceRoom / voicePeer yardımcıları (caller lock tutar) ───

func (r *voiceRoom) stateLocked() models.VoiceRoomState {
	state := models.VoiceRoomState{
		ChannelID: r.channelID,
		Peers:     make([]models.VoicePeer, 0, len(r.peers)),
	}
	if r.sharerID != "" {
		if sharer, ok := r.peers[r.sharerID]; ok {
			state.ScreenSharerID = sharer.socketID
		}
	}
	for _, peer := range r.peers {
		state.Peers = append(state.Peers, peer.public())
	}
	return state
}

func (r *voiceRoom) socketsLocked() []string {
	sockets := make([]string, 0, len(r.peers))
	for sid := range r.peers {
		sockets = append(sockets, sid)
	}
	return sockets
}

func (r *voiceRoom) socketsExceptLocked(exclude string) []string {
	sockets := make([]string, 0, len(r.peers))
	for sid := range r.peers {
		if sid != exclude {
			sockets = append(sockets, sid)
		}
	}
	return sockets
}

func (p *voicePeer) public() models.VoicePeer {
	return models.VoicePeer{
		SocketID:      p.socketID,
		UserID:        p.userID,
		Username:      p.username,
		IsMuted:       p.muted,
		IsDeafened:    p.deafened,
		ScreenSharing: p.screenSharing,
		JoinedAt:      p.joinedAt,
	}
}
