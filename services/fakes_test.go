package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/ws"
)

// In-memory fake'ler: SQL katmanını devreye sokmadan service semantiğini
// test etmek için. Her fake yalnızca testlerin dokunduğu davranışı taşır;
// bulunamayan kayıt pkg.ErrNotFound döner.

type fakeServerRepo struct {
	servers map[string]*models.Server
}

func newFakeServerRepo() *fakeServerRepo {
	return &fakeServerRepo{servers: map[string]*models.Server{}}
}

func (f *fakeServerRepo) Create(_ context.Context, s *models.Server) error {
	f.servers[s.ID] = s
	return nil
}

func (f *fakeServerRepo) GetByID(_ context.Context, id string) (*models.Server, error) {
	s, ok := f.servers[id]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	return s, nil
}

func (f *fakeServerRepo) GetByUser(_ context.Context, userID string) ([]models.Server, error) {
	var out []models.Server
	for _, s := range f.servers {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeServerRepo) Update(_ context.Context, s *models.Server) error {
	f.servers[s.ID] = s
	return nil
}

func (f *fakeServerRepo) TransferOwnership(_ context.Context, serverID, newOwnerID string) error {
	s, ok := f.servers[serverID]
	if !ok {
		return pkg.ErrNotFound
	}
	s.OwnerID = newOwnerID
	return nil
}

func (f *fakeServerRepo) Archive(_ context.Context, id string) error {
	s, ok := f.servers[id]
	if !ok {
		return pkg.ErrNotFound
	}
	s.Archived = true
	return nil
}

func (f *fakeServerRepo) Delete(_ context.Context, id string) error {
	delete(f.servers, id)
	return nil
}

type fakeMemberRepo struct {
	members map[string]*models.Membership // "userID|serverID"
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{members: map[string]*models.Membership{}}
}

func memberKey(userID, serverID string) string { return userID + "|" + serverID }

func (f *fakeMemberRepo) Add(_ context.Context, userID, serverID string) error {
	f.members[memberKey(userID, serverID)] = &models.Membership{
		UserID: userID, ServerID: serverID, JoinedAt: time.Now(),
	}
	return nil
}

func (f *fakeMemberRepo) Get(_ context.Context, userID, serverID string) (*models.Membership, error) {
	m, ok := f.members[memberKey(userID, serverID)]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	return m, nil
}

func (f *fakeMemberRepo) Remove(_ context.Context, userID, serverID string) error {
	delete(f.members, memberKey(userID, serverID))
	return nil
}

func (f *fakeMemberRepo) ListByServer(_ context.Context, serverID string) ([]models.Member, error) {
	return nil, nil
}

func (f *fakeMemberRepo) ListUserIDs(_ context.Context, serverID string) ([]string, error) {
	var out []string
	for _, m := range f.members {
		if m.ServerID == serverID {
			out = append(out, m.UserID)
		}
	}
	return out, nil
}

func (f *fakeMemberRepo) Count(_ context.Context, serverID string) (int, error) {
	ids, _ := f.ListUserIDs(nil, serverID)
	return len(ids), nil
}

func (f *fakeMemberRepo) SetTimeout(_ context.Context, userID, serverID string, until *time.Time) error {
	m, ok := f.members[memberKey(userID, serverID)]
	if !ok {
		return pkg.ErrNotFound
	}
	m.TimeoutUntil = until
	return nil
}

func (f *fakeMemberRepo) LongestJoinedWith(_ context.Context, serverID string, perm models.Permission, excludeUserID string) (string, error) {
	return "", pkg.ErrNotFound
}

type fakeRoleRepo struct {
	roles    map[string]*models.Role
	assigned map[string][]string // "userID|serverID" → roleIDs
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{roles: map[string]*models.Role{}, assigned: map[string][]string{}}
}

func (f *fakeRoleRepo) Create(_ context.Context, r *models.Role) error {
	f.roles[r.ID] = r
	return nil
}

func (f *fakeRoleRepo) GetByID(_ context.Context, id string) (*models.Role, error) {
	r, ok := f.roles[id]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	return r, nil
}

func (f *fakeRoleRepo) GetEveryone(_ context.Context, serverID string) (*models.Role, error) {
	for _, r := range f.roles {
		if r.ServerID == serverID && r.IsEveryone {
			return r, nil
		}
	}
	return nil, pkg.ErrNotFound
}

func (f *fakeRoleRepo) ListByServer(_ context.Context, serverID string) ([]models.Role, error) {
	var out []models.Role
	for _, r := range f.roles {
		if r.ServerID == serverID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRoleRepo) Update(_ context.Context, r *models.Role) error {
	f.roles[r.ID] = r
	return nil
}

func (f *fakeRoleRepo) Delete(_ context.Context, id string) error {
	delete(f.roles, id)
	return nil
}

func (f *fakeRoleRepo) Assign(_ context.Context, userID, roleID, serverID string) error {
	key := memberKey(userID, serverID)
	f.assigned[key] = append(f.assigned[key], roleID)
	return nil
}

func (f *fakeRoleRepo) Unassign(_ context.Context, userID, roleID string) error {
	for key, ids := range f.assigned {
		out := ids[:0]
		for _, id := range ids {
			if id != roleID {
				out = append(out, id)
			}
		}
		f.assigned[key] = out
	}
	return nil
}

func (f *fakeRoleRepo) RolesOf(_ context.Context, userID, serverID string) ([]models.Role, error) {
	var out []models.Role
	for _, id := range f.assigned[memberKey(userID, serverID)] {
		if r, ok := f.roles[id]; ok {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakeChannelRepo struct {
	channels map[string]*models.Channel
}

func newFakeChannelRepo() *fakeChannelRepo {
	return &fakeChannelRepo{channels: map[string]*models.Channel{}}
}

func (f *fakeChannelRepo) Create(_ context.Context, c *models.Channel) error {
	if c.ID == "" {
		c.ID = fmt.Sprintf("chan-%d", len(f.channels)+1)
	}
	f.channels[c.ID] = c
	return nil
}

func (f *fakeChannelRepo) GetByID(_ context.Context, id string) (*models.Channel, error) {
	c, ok := f.channels[id]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	return c, nil
}

func (f *fakeChannelRepo) ListByServer(_ context.Context, serverID string) ([]models.Channel, error) {
	var out []models.Channel
	for _, c := range f.channels {
		if c.ServerID != nil && *c.ServerID == serverID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeChannelRepo) Update(_ context.Context, c *models.Channel) error {
	f.channels[c.ID] = c
	return nil
}

func (f *fakeChannelRepo) Move(_ context.Context, channelID string, categoryID *string) error {
	c, ok := f.channels[channelID]
	if !ok {
		return pkg.ErrNotFound
	}
	c.CategoryID = categoryID
	return nil
}

func (f *fakeChannelRepo) Delete(_ context.Context, id string) error {
	delete(f.channels, id)
	return nil
}

func (f *fakeChannelRepo) Reorder(_ context.Context, serverID string, items []models.PositionUpdate) error {
	for _, item := range items {
		if c, ok := f.channels[item.ID]; ok {
			c.Position = item.Position
		}
	}
	return nil
}

type fakeOverrideRepo struct {
	overrides map[string][]models.ChannelOverride // channelID → overrides
}

func newFakeOverrideRepo() *fakeOverrideRepo {
	return &fakeOverrideRepo{overrides: map[string][]models.ChannelOverride{}}
}

func (f *fakeOverrideRepo) SetRoleOverride(_ context.Context, channelID, roleID string, allow, deny models.Permission) error {
	id := roleID
	f.overrides[channelID] = append(f.overrides[channelID], models.ChannelOverride{
		ChannelID: channelID, RoleID: &id, Allow: allow, Deny: deny,
	})
	return nil
}

func (f *fakeOverrideRepo) SetUserOverride(_ context.Context, channelID, userID string, allow, deny models.Permission) error {
	id := userID
	f.overrides[channelID] = append(f.overrides[channelID], models.ChannelOverride{
		ChannelID: channelID, UserID: &id, Allow: allow, Deny: deny,
	})
	return nil
}

func (f *fakeOverrideRepo) RemoveRoleOverride(_ context.Context, channelID, roleID string) error {
	out := f.overrides[channelID][:0]
	for _, o := range f.overrides[channelID] {
		if o.RoleID == nil || *o.RoleID != roleID {
			out = append(out, o)
		}
	}
	f.overrides[channelID] = out
	return nil
}

func (f *fakeOverrideRepo) RemoveUserOverride(_ context.Context, channelID, userID string) error {
	out := f.overrides[channelID][:0]
	for _, o := range f.overrides[channelID] {
		if o.UserID == nil || *o.UserID != userID {
			out = append(out, o)
		}
	}
	f.overrides[channelID] = out
	return nil
}

func (f *fakeOverrideRepo) ListByChannel(_ context.Context, channelID string) ([]models.ChannelOverride, error) {
	return f.overrides[channelID], nil
}

type fakeDMRepo struct {
	participants map[string]map[string]bool    // channelID → userID set
	states       map[string]*models.DMUserState // "channelID|userID"
}

func newFakeDMRepo() *fakeDMRepo {
	return &fakeDMRepo{
		participants: map[string]map[string]bool{},
		states:       map[string]*models.DMUserState{},
	}
}

func (f *fakeDMRepo) state(channelID, userID string) *models.DMUserState {
	key := channelID + "|" + userID
	st, ok := f.states[key]
	if !ok {
		st = &models.DMUserState{ChannelID: channelID, UserID: userID}
		f.states[key] = st
	}
	return st
}

func (f *fakeDMRepo) AddParticipant(_ context.Context, channelID, userID string) error {
	if f.participants[channelID] == nil {
		f.participants[channelID] = map[string]bool{}
	}
	f.participants[channelID][userID] = true
	return nil
}

func (f *fakeDMRepo) RemoveParticipant(_ context.Context, channelID, userID string) error {
	delete(f.participants[channelID], userID)
	return nil
}

func (f *fakeDMRepo) IsParticipant(_ context.Context, channelID, userID string) (bool, error) {
	return f.participants[channelID][userID], nil
}

func (f *fakeDMRepo) ParticipantIDs(_ context.Context, channelID string) ([]string, error) {
	var out []string
	for id := range f.participants[channelID] {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeDMRepo) Participants(_ context.Context, channelID string) ([]models.PublicUser, error) {
	return nil, nil
}

func (f *fakeDMRepo) FindDirect(_ context.Context, userA, userB string) (string, error) {
	for channelID, set := range f.participants {
		if len(set) == 2 && set[userA] && set[userB] {
			return channelID, nil
		}
	}
	return "", pkg.ErrNotFound
}

func (f *fakeDMRepo) ListForUser(_ context.Context, userID string) ([]models.DMChannel, error) {
	var out []models.DMChannel
	for channelID, set := range f.participants {
		if !set[userID] {
			continue
		}
		st := f.state(channelID, userID)
		if st.Hidden {
			continue
		}
		out = append(out, models.DMChannel{
			Channel:        models.Channel{ID: channelID},
			RequestPending: st.RequestPending,
			Archived:       st.Archived,
		})
	}
	return out, nil
}

func (f *fakeDMRepo) GetState(_ context.Context, channelID, userID string) (*models.DMUserState, error) {
	return f.state(channelID, userID), nil
}

func (f *fakeDMRepo) SetHidden(_ context.Context, channelID, userID string, hidden bool) error {
	f.state(channelID, userID).Hidden = hidden
	return nil
}

func (f *fakeDMRepo) SetArchived(_ context.Context, channelID, userID string, archived bool) error {
	f.state(channelID, userID).Archived = archived
	return nil
}

func (f *fakeDMRepo) SetRequestPending(_ context.Context, channelID, userID string, pending bool) error {
	f.state(channelID, userID).RequestPending = pending
	return nil
}

// emittedEvent, fakeHub'ın kaydettiği tek bir yayın.
type emittedEvent struct {
	Room    string
	Exclude string
	UserID  string
	Socket  string
	Event   ws.Event
}

// fakeHub, ws.EventPublisher'ı kayıt altına alan fake.
type fakeHub struct {
	mu      sync.Mutex
	events  []emittedEvent
	members map[string][]string // room → socketIDs
	online  []string
}

func newFakeHub() *fakeHub {
	return &fakeHub{members: map[string][]string{}}
}

func (f *fakeHub) EmitTo(key string, event ws.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emittedEvent{Room: key, Event: event})
}

func (f *fakeHub) EmitToExcept(key, excludeSocketID string, event ws.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emittedEvent{Room: key, Exclude: excludeSocketID, Event: event})
}

func (f *fakeHub) EmitToUser(userID string, event ws.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emittedEvent{UserID: userID, Event: event})
}

func (f *fakeHub) EmitToSocket(socketID string, event ws.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emittedEvent{Socket: socketID, Event: event})
	return true
}

func (f *fakeHub) MembersOf(key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[key]
}

func (f *fakeHub) OnlineUserIDs() []string { return f.online }

func (f *fakeHub) SubscribeUser(userID string, keys ...string)   {}
func (f *fakeHub) UnsubscribeUser(userID string, keys ...string) {}

// fakePerms, her kontrolü geçen (veya deny setindekileri reddeden)
// PermissionService fake'i.
type fakePerms struct {
	denied map[string]bool // userID → her şeyi reddet
}

func newFakePerms() *fakePerms { return &fakePerms{denied: map[string]bool{}} }

func (f *fakePerms) EffectiveChannel(_ context.Context, userID, _ string) (models.Permission, error) {
	if f.denied[userID] {
		return 0, nil
	}
	return models.PermAll, nil
}

func (f *fakePerms) EffectiveServer(_ context.Context, userID, _ string) (models.Permission, error) {
	if f.denied[userID] {
		return 0, nil
	}
	return models.PermAll, nil
}

func (f *fakePerms) RequireChannel(_ context.Context, userID, _ string, _ models.Permission) error {
	if f.denied[userID] {
		return pkg.ErrForbidden
	}
	return nil
}

func (f *fakePerms) RequireServer(_ context.Context, userID, _ string, _ models.Permission) error {
	if f.denied[userID] {
		return pkg.ErrForbidden
	}
	return nil
}

func (f *fakePerms) RequireHierarchy(_ context.Context, _, actorID, _ string) error {
	if f.denied[actorID] {
		return pkg.ErrForbidden
	}
	return nil
}

func (f *fakePerms) InvalidateServer(string) {}
func (f *fakePerms) InvalidateUser(string)  {}

// fakeVoiceHub, fakeHub'ı presence okumalarıyla genişletir.
type fakeVoiceHub struct {
	*fakeHub
	usernames map[string]string
	statuses  map[string]string
}

func newFakeVoiceHub() *fakeVoiceHub {
	return &fakeVoiceHub{
		fakeHub:   newFakeHub(),
		usernames: map[string]string{},
		statuses:  map[string]string{},
	}
}

func (f *fakeVoiceHub) Username(userID string) string { return f.usernames[userID] }
func (f *fakeVoiceHub) Status(userID string) string {
	if s, ok := f.statuses[userID]; ok {
		return s
	}
	return string(models.UserStatusOnline)
}

// fakeFriends, yalnızca block sorgularını cevaplayan FriendshipService.
type fakeFriends struct {
	blocked map[string]bool // "a|b" (iki yönlü kayıtlı)
}

func newFakeFriends() *fakeFriends { return &fakeFriends{blocked: map[string]bool{}} }

func (f *fakeFriends) block(a, b string) {
	f.blocked[a+"|"+b] = true
	f.blocked[b+"|"+a] = true
}

func (f *fakeFriends) Request(_ context.Context, _, _ string) (*models.Friendship, error) {
	return nil, pkg.ErrNotFound
}
func (f *fakeFriends) Accept(_ context.Context, _, _ string) error { return nil }
func (f *fakeFriends) Reject(_ context.Context, _, _ string) error { return nil }
func (f *fakeFriends) Remove(_ context.Context, _, _ string) error { return nil }
func (f *fakeFriends) List(_ context.Context, _ string) ([]models.FriendEntry, error) {
	return nil, nil
}
func (f *fakeFriends) Block(_ context.Context, _, _ string) error   { return nil }
func (f *fakeFriends) Unblock(_ context.Context, _, _ string) error { return nil }
func (f *fakeFriends) ListBlocked(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}
func (f *fakeFriends) AreFriends(_ context.Context, _, _ string) (bool, error) {
	return true, nil
}
func (f *fakeFriends) IsBlockedEither(_ context.Context, a, b string) (bool, error) {
	return f.blocked[a+"|"+b], nil
}

// fakeMessageRepo, mesajları oluşturulma sırasıyla tutar. Mutex'lidir —
// eşzamanlı Send testleri de bu fake üzerinden koşar.
type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string]*models.Message
	order    []string
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: map[string]*models.Message{}}
}

func (f *fakeMessageRepo) Create(_ context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *msg
	msg.CreatedAt = time.Now()
	copied.CreatedAt = msg.CreatedAt
	f.messages[msg.ID] = &copied
	f.order = append(f.order, msg.ID)
	return nil
}

func (f *fakeMessageRepo) GetByID(_ context.Context, id string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok || msg.Deleted {
		return nil, pkg.ErrNotFound
	}
	copied := *msg
	return &copied, nil
}

func (f *fakeMessageRepo) GetPage(_ context.Context, channelID, beforeID string, limit int) (*models.MessagePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var all []models.Message
	for _, id := range f.order {
		msg := f.messages[id]
		if msg.ChannelID != channelID || msg.Deleted {
			continue
		}
		if beforeID != "" && numericID(msg.ID) >= numericID(beforeID) {
			continue
		}
		all = append(all, *msg)
	}

	page := &models.MessagePage{Messages: all, HasMore: len(all) > limit}
	if page.HasMore {
		page.Messages = all[len(all)-limit:]
	}
	return page, nil
}

func (f *fakeMessageRepo) UpdateContent(_ context.Context, id, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok || msg.Deleted {
		return pkg.ErrNotFound
	}
	msg.Content = content
	now := time.Now()
	msg.EditedAt = &now
	return nil
}

func (f *fakeMessageRepo) SoftDelete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok || msg.Deleted {
		return pkg.ErrNotFound
	}
	msg.Deleted = true
	return nil
}

func (f *fakeMessageRepo) LastMessageID(_ context.Context, channelID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.order) - 1; i >= 0; i-- {
		msg := f.messages[f.order[i]]
		if msg.ChannelID == channelID && !msg.Deleted {
			return msg.ID, nil
		}
	}
	return "", nil
}

func (f *fakeMessageRepo) CountAfter(_ context.Context, channelID, afterID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, id := range f.order {
		msg := f.messages[id]
		if msg.ChannelID != channelID || msg.Deleted {
			continue
		}
		if afterID == "" || numericID(msg.ID) > numericID(afterID) {
			count++
		}
	}
	return count, nil
}

func numericID(id string) uint64 {
	n, _ := strconv.ParseUint(id, 10, 64)
	return n
}

// idsByChannel, kanalın mesaj ID'lerini oluşturulma sırasında döner.
func (f *fakeMessageRepo) idsByChannel(channelID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, id := range f.order {
		if f.messages[id].ChannelID == channelID {
			out = append(out, id)
		}
	}
	return out
}

type fakeReactionRepo struct {
	mu        sync.Mutex
	reactions map[string]map[string]map[string]bool // msgID → emoji → userID set
}

func newFakeReactionRepo() *fakeReactionRepo {
	return &fakeReactionRepo{reactions: map[string]map[string]map[string]bool{}}
}

func (f *fakeReactionRepo) Add(_ context.Context, messageID, userID, emoji string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reactions[messageID] == nil {
		f.reactions[messageID] = map[string]map[string]bool{}
	}
	if f.reactions[messageID][emoji] == nil {
		f.reactions[messageID][emoji] = map[string]bool{}
	}
	if f.reactions[messageID][emoji][userID] {
		return false, nil
	}
	f.reactions[messageID][emoji][userID] = true
	return true, nil
}

func (f *fakeReactionRepo) Remove(_ context.Context, messageID, userID, emoji string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.reactions[messageID][emoji][userID] {
		return false, nil
	}
	delete(f.reactions[messageID][emoji], userID)
	if len(f.reactions[messageID][emoji]) == 0 {
		delete(f.reactions[messageID], emoji)
	}
	return true, nil
}

func (f *fakeReactionRepo) MapFor(_ context.Context, messageIDs []string) (map[string]map[string][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]map[string][]string{}
	for _, id := range messageIDs {
		emojis, ok := f.reactions[id]
		if !ok {
			continue
		}
		m := map[string][]string{}
		for emoji, users := range emojis {
			for userID := range users {
				m[emoji] = append(m[emoji], userID)
			}
		}
		out[id] = m
	}
	return out, nil
}

type fakeReadStateRepo struct {
	states map[string]*models.ReadState // "userID|channelID"
}

func newFakeReadStateRepo() *fakeReadStateRepo {
	return &fakeReadStateRepo{states: map[string]*models.ReadState{}}
}

func (f *fakeReadStateRepo) Upsert(_ context.Context, userID, channelID, lastReadMessageID string) error {
	f.states[userID+"|"+channelID] = &models.ReadState{
		UserID: userID, ChannelID: channelID,
		LastReadMessageID: lastReadMessageID, UpdatedAt: time.Now(),
	}
	return nil
}

func (f *fakeReadStateRepo) Get(_ context.Context, userID, channelID string) (*models.ReadState, error) {
	st, ok := f.states[userID+"|"+channelID]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	return st, nil
}

func (f *fakeReadStateRepo) ListForUser(_ context.Context, userID string) ([]models.ReadState, error) {
	var out []models.ReadState
	for _, st := range f.states {
		if st.UserID == userID {
			out = append(out, *st)
		}
	}
	return out, nil
}

// eventsFor, verilen op ile yayınlanan event'leri döner.
func (f *fakeHub) eventsFor(op string) []emittedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emittedEvent
	for _, e := range f.events {
		if e.Event.Op == op {
			out = append(out, e)
		}
	}
	return out
}
