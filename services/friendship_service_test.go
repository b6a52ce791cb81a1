package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/ws"
)

// fakeFriendRepo / fakeUserRepo: yalnızca friendship testlerinin
// kullandığı in-memory implementasyonlar.

type fakeFriendRepo struct {
	nextID      int
	friendships map[string]*models.Friendship
	blocks      map[string]bool // "blocker|blocked"
}

func newFakeFriendRepo() *fakeFriendRepo {
	return &fakeFriendRepo{friendships: map[string]*models.Friendship{}, blocks: map[string]bool{}}
}

func (f *fakeFriendRepo) CreateRequest(_ context.Context, fr *models.Friendship) error {
	f.nextID++
	fr.ID = fmt.Sprintf("fr-%d", f.nextID)
	f.friendships[fr.ID] = fr
	return nil
}

func (f *fakeFriendRepo) GetByID(_ context.Context, id string) (*models.Friendship, error) {
	fr, ok := f.friendships[id]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	return fr, nil
}

func (f *fakeFriendRepo) GetBetween(_ context.Context, userA, userB string) (*models.Friendship, error) {
	for _, fr := range f.friendships {
		if (fr.RequesterID == userA && fr.TargetID == userB) ||
			(fr.RequesterID == userB && fr.TargetID == userA) {
			return fr, nil
		}
	}
	return nil, pkg.ErrNotFound
}

func (f *fakeFriendRepo) SetState(_ context.Context, id string, state models.FriendshipState) error {
	fr, ok := f.friendships[id]
	if !ok {
		return pkg.ErrNotFound
	}
	fr.State = state
	return nil
}

func (f *fakeFriendRepo) Delete(_ context.Context, id string) error {
	delete(f.friendships, id)
	return nil
}

func (f *fakeFriendRepo) DeleteBetween(ctx context.Context, userA, userB string) error {
	fr, err := f.GetBetween(ctx, userA, userB)
	if err != nil {
		return err
	}
	delete(f.friendships, fr.ID)
	return nil
}

func (f *fakeFriendRepo) ListForUser(_ context.Context, userID string) ([]models.FriendEntry, error) {
	return nil, nil
}

func (f *fakeFriendRepo) Block(_ context.Context, blockerID, blockedID string) error {
	f.blocks[blockerID+"|"+blockedID] = true
	return nil
}

func (f *fakeFriendRepo) Unblock(_ context.Context, blockerID, blockedID string) error {
	delete(f.blocks, blockerID+"|"+blockedID)
	return nil
}

func (f *fakeFriendRepo) IsBlockedEither(_ context.Context, userA, userB string) (bool, error) {
	return f.blocks[userA+"|"+userB] || f.blocks[userB+"|"+userA], nil
}

func (f *fakeFriendRepo) ListBlocked(_ context.Context, blockerID string) ([]string, error) {
	var out []string
	for key := range f.blocks {
		if len(key) > len(blockerID) && key[:len(blockerID)+1] == blockerID+"|" {
			out = append(out, key[len(blockerID)+1:])
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	users map[string]*models.User // id → user
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	f := &fakeUserRepo{users: map[string]*models.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, pkg.ErrNotFound
}

func (f *fakeUserRepo) GetByIDs(_ context.Context, ids []string) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, u *models.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) UpdateStatus(_ context.Context, userID string, status models.UserStatus) error {
	return nil
}

func (f *fakeUserRepo) UpdateAvatar(_ context.Context, userID string, avatar *string) error {
	return nil
}

func (f *fakeUserRepo) Anonymize(_ context.Context, userID, placeholder string) error {
	u, ok := f.users[userID]
	if !ok {
		return pkg.ErrNotFound
	}
	u.Username = placeholder
	return nil
}

func newFriendFixture() (FriendshipService, *fakeFriendRepo, *fakeHub) {
	friendRepo := newFakeFriendRepo()
	userRepo := newFakeUserRepo(
		&models.User{ID: "u-alice", Username: "alice"},
		&models.User{ID: "u-bob", Username: "bob"},
	)
	hub := newFakeHub()
	return NewFriendshipService(friendRepo, userRepo, hub), friendRepo, hub
}

func TestFriendRequest(t *testing.T) {
	svc, _, hub := newFriendFixture()
	ctx := context.Background()

	fr, err := svc.Request(ctx, "u-alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, "u-alice", fr.RequesterID)
	assert.Equal(t, "u-bob", fr.TargetID)
	assert.Equal(t, models.FriendshipPending, fr.State)

	// İki tarafa iki farklı event gider.
	sent := hub.eventsFor(ws.OpFriendRequestSent)
	require.Len(t, sent, 1)
	assert.Equal(t, "u-alice", sent[0].UserID)

	received := hub.eventsFor(ws.OpFriendRequestReceived)
	require.Len(t, received, 1)
	assert.Equal(t, "u-bob", received[0].UserID)
	assert.True(t, received[0].Event.Data.(models.FriendEntry).Incoming)
}

func TestFriendRequestValidation(t *testing.T) {
	svc, _, _ := newFriendFixture()
	ctx := context.Background()

	_, err := svc.Request(ctx, "u-alice", "nobody")
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	_, err = svc.Request(ctx, "u-alice", "alice")
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestFriendRequestBlockedPair(t *testing.T) {
	svc, repo, _ := newFriendFixture()
	ctx := context.Background()

	// Block ters yönde bile olsa istek gitmez.
	require.NoError(t, repo.Block(ctx, "u-bob", "u-alice"))

	_, err := svc.Request(ctx, "u-alice", "bob")
	assert.ErrorIs(t, err, pkg.ErrBlocked)
}

func TestFriendAccept(t *testing.T) {
	svc, _, hub := newFriendFixture()
	ctx := context.Background()

	fr, err := svc.Request(ctx, "u-alice", "bob")
	require.NoError(t, err)

	// İsteği yalnızca hedef kabul edebilir.
	assert.ErrorIs(t, svc.Accept(ctx, "u-alice", fr.ID), pkg.ErrForbidden)

	require.NoError(t, svc.Accept(ctx, "u-bob", fr.ID))
	ok, err := svc.AreFriends(ctx, "u-alice", "u-bob")
	require.NoError(t, err)
	assert.True(t, ok)

	accepted := hub.eventsFor(ws.OpFriendAccepted)
	assert.Len(t, accepted, 2, "her iki tarafa da bildirilir")

	// Pending olmayan istek tekrar kabul edilemez.
	assert.ErrorIs(t, svc.Accept(ctx, "u-bob", fr.ID), pkg.ErrBadRequest)
}

func TestFriendReject(t *testing.T) {
	svc, _, hub := newFriendFixture()
	ctx := context.Background()

	fr, err := svc.Request(ctx, "u-alice", "bob")
	require.NoError(t, err)
	require.NoError(t, svc.Reject(ctx, "u-bob", fr.ID))

	ok, err := svc.AreFriends(ctx, "u-alice", "u-bob")
	require.NoError(t, err)
	assert.False(t, ok)

	// Reddedilen tarafa bilgi sızmaz — event yalnızca reddedene gider.
	rejects := hub.eventsFor(ws.OpFriendRejected)
	require.Len(t, rejects, 1)
	assert.Equal(t, "u-bob", rejects[0].UserID)
}

func TestFriendRemove(t *testing.T) {
	svc, _, hub := newFriendFixture()
	ctx := context.Background()

	fr, err := svc.Request(ctx, "u-alice", "bob")
	require.NoError(t, err)

	// Pending istek Remove ile silinmez.
	assert.ErrorIs(t, svc.Remove(ctx, "u-alice", "u-bob"), pkg.ErrBadRequest)

	require.NoError(t, svc.Accept(ctx, "u-bob", fr.ID))
	require.NoError(t, svc.Remove(ctx, "u-alice", "u-bob"))

	ok, err := svc.AreFriends(ctx, "u-alice", "u-bob")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, hub.eventsFor(ws.OpFriendRemoved), 2)
}

func TestBlockDropsExistingFriendship(t *testing.T) {
	svc, _, hub := newFriendFixture()
	ctx := context.Background()

	fr, err := svc.Request(ctx, "u-alice", "bob")
	require.NoError(t, err)
	require.NoError(t, svc.Accept(ctx, "u-bob", fr.ID))

	require.NoError(t, svc.Block(ctx, "u-alice", "u-bob"))

	ok, err := svc.AreFriends(ctx, "u-alice", "u-bob")
	require.NoError(t, err)
	assert.False(t, ok, "block mevcut arkadaşlığı düşürür")

	blocked, err := svc.IsBlockedEither(ctx, "u-bob", "u-alice")
	require.NoError(t, err)
	assert.True(t, blocked, "block iki yönden de görünür")

	blocks := hub.eventsFor(ws.OpUserBlocked)
	require.Len(t, blocks, 1)
	assert.Equal(t, "u-alice", blocks[0].UserID)
}

func TestBlockValidation(t *testing.T) {
	svc, _, _ := newFriendFixture()
	ctx := context.Background()

	assert.ErrorIs(t, svc.Block(ctx, "u-alice", "u-alice"), pkg.ErrBadRequest)
	assert.ErrorIs(t, svc.Block(ctx, "u-alice", "ghost"), pkg.ErrNotFound)
}

func TestUnblock(t *testing.T) {
	svc, _, hub := newFriendFixture()
	ctx := context.Background()

	require.NoError(t, svc.Block(ctx, "u-alice", "u-bob"))
	require.NoError(t, svc.Unblock(ctx, "u-alice", "u-bob"))

	blocked, err := svc.IsBlockedEither(ctx, "u-alice", "u-bob")
	require.NoError(t, err)
	assert.False(t, blocked)
	assert.Len(t, hub.eventsFor(ws.OpUserUnblocked), 1)

	// Block kalkınca istek tekrar gönderilebilir.
	_, err = svc.Request(ctx, "u-alice", "bob")
	assert.NoError(t, err)
}
