package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/repository"
	"github.com/nexushq/nexus/ws"
)

// FriendshipService, arkadaşlık ve block graph iş mantığı.
//
// Block her iki yönde de şunları kapatır: arkadaşlık isteği, DM oluşturma,
// DM mesajı, call invite teslimi. Block konduğunda mevcut arkadaşlık da düşer.
type FriendshipService interface {
	Request(ctx context.Context, requesterID, targetUsername string) (*models.Friendship, error)
	Accept(ctx context.Context, userID, friendshipID string) error
	Reject(ctx context.Context, userID, friendshipID string) error
	Remove(ctx context.Context, userID, otherUserID string) error
	List(ctx context.Context, userID string) ([]models.FriendEntry, error)

	Block(ctx context.Context, blockerID, blockedID string) error
	Unblock(ctx context.Context, blockerID, blockedID string) error
	ListBlocked(ctx context.Context, userID string) ([]string, error)
	// AreFriends, iki kullanıcının accepted durumda olup olmadığını döner.
	AreFriends(ctx context.Context, userA, userB string) (bool, error)
	IsBlockedEither(ctx context.Context, userA, userB string) (bool, error)
}

type friendshipService struct {
	friendRepo repository.FriendshipRepository
	userRepo   repository.UserRepository
	hub        ws.EventPublisher
}

// NewFriendshipService, constructor.
func NewFriendshipService(
	friendRepo repository.FriendshipRepository,
	userRepo repository.UserRepository,
	hub ws.EventPublisher,
) FriendshipService {
	return &friendshipService{
		friendRepo: friendRepo,
		userRepo:   userRepo,
		hub:        hub,
	}
}

func (s *friendshipService) Request(ctx context.Context, requesterID, targetUsername string) (*models.Friendship, error) {
	target, err := s.userRepo.GetByUsername(ctx, targetUsername)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: user not found", pkg.ErrNotFound)
		}
		return nil, err
	}
	if target.ID == requesterID {
		return nil, fmt.Errorf("%w: cannot friend yourself", pkg.ErrBadRequest)
	}

	blocked, err := s.friendRepo.IsBlockedEither(ctx, requesterID, target.ID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, fmt.Errorf("%w: cannot send a friend request to this user", pkg.ErrBlocked)
	}

	friendship := &models.Friendship{
		RequesterID: requesterID,
		TargetID:    target.ID,
		State:       models.FriendshipPending,
	}
	if err := s.friendRepo.CreateRequest(ctx, friendship); err != nil {
		return nil, err
	}

	requester, err := s.userRepo.GetByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	s.hub.EmitToUser(requesterID, ws.Event{
		Op:   ws.OpFriendRequestSent,
		Data: models.FriendEntry{Friendship: *friendship, User: target.Public(), Incoming: false},
	})
	s.hub.EmitToUser(target.ID, ws.Event{
		Op:   ws.OpFriendRequestReceived,
		Data: models.FriendEntry{Friendship: *friendship, User: requester.Public(), Incoming: true},
	})

	log.Printf("[friend] request: %s -> %s", requesterID, target.ID)
	return friendship, nil
}

func (s *friendshipService) Accept(ctx context.Context, userID, friendshipID string) error {
	friendship, err := s.incomingPending(ctx, userID, friendshipID)
	if err != nil {
		return err
	}

	if err := s.friendRepo.SetState(ctx, friendshipID, models.FriendshipAccepted); err != nil {
		return err
	}

	payload := map[string]string{
		"friendship_id": friendshipID,
		"requester_id":  friendship.RequesterID,
		"target_id":     friendship.TargetID,
	}
	s.hub.EmitToUser(friendship.RequesterID, ws.Event{Op: ws.OpFriendAccepted, Data: payload})
	s.hub.EmitToUser(friendship.TargetID, ws.Event{Op: ws.OpFriendAccepted, Data: payload})
	return nil
}

func (s *friendshipService) Reject(ctx context.Context, userID, friendshipID string) error {
	if _, err := s.incomingPending(ctx, userID, friendshipID); err != nil {
		return err
	}

	if err := s.friendRepo.SetState(ctx, friendshipID, models.FriendshipRejected); err != nil {
		return err
	}

	// Reddedilen tarafa durumun değiştiği söylenmez — sadece reddedene
	// listeden düşürmesi için event gider.
	s.hub.EmitToUser(userID, ws.Event{
		Op:   ws.OpFriendRejected,
		Data: map[string]string{"friendship_id": friendshipID},
	})
	return nil
}

func (s *friendshipService) Remove(ctx context.Context, userID, otherUserID string) error {
	friendship, err := s.friendRepo.GetBetween(ctx, userID, otherUserID)
	if err != nil {
		return err
	}
	if friendship.State != models.FriendshipAccepted {
		return fmt.Errorf("%w: not friends", pkg.ErrBadRequest)
	}

	if err := s.friendRepo.Delete(ctx, friendship.ID); err != nil {
		return err
	}

	payload := map[string]string{"user_a": userID, "user_b": otherUserID}
	s.hub.EmitToUser(userID, ws.Event{Op: ws.OpFriendRemoved, Data: payload})
	s.hub.EmitToUser(otherUserID, ws.Event{Op: ws.OpFriendRemoved, Data: payload})
	return nil
}

func (s *friendshipService) List(ctx context.Context, userID string) ([]models.FriendEntry, error) {
	return s.friendRepo.ListForUser(ctx, userID)
}

func (s *friendshipService) Block(ctx context.Context, blockerID, blockedID string) error {
	if blockerID == blockedID {
		return fmt.Errorf("%w: cannot block yourself", pkg.ErrBadRequest)
	}
	if _, err := s.userRepo.GetByID(ctx, blockedID); err != nil {
		return err
	}

	if err := s.friendRepo.Block(ctx, blockerID, blockedID); err != nil {
		return err
	}
	// Mevcut arkadaşlık/istek ne durumda olursa olsun düşer.
	if err := s.friendRepo.DeleteBetween(ctx, blockerID, blockedID); err != nil && !errors.Is(err, pkg.ErrNotFound) {
		return err
	}

	s.hub.EmitToUser(blockerID, ws.Event{
		Op:   ws.OpUserBlocked,
		Data: map[string]string{"user_id": blockedID},
	})
	log.Printf("[friend] blocked: %s -> %s", blockerID, blockedID)
	return nil
}

func (s *friendshipService) Unblock(ctx context.Context, blockerID, blockedID string) error {
	if err := s.friendRepo.Unblock(ctx, blockerID, blockedID); err != nil {
		return err
	}
	s.hub.EmitToUser(blockerID, ws.Event{
		Op:   ws.OpUserUnblocked,
		Data: map[string]string{"user_id": blockedID},
	})
	return nil
}

func (s *friendshipService) ListBlocked(ctx context.Context, userID string) ([]string, error) {
	return s.friendRepo.ListBlocked(ctx, userID)
}

func (s *friendshipService) AreFriends(ctx context.Context, userA, userB string) (bool, error) {
	friendship, err := s.friendRepo.GetBetween(ctx, userA, userB)
	if errors.Is(err, pkg.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return friendship.State == models.FriendshipAccepted, nil
}

func (s *friendshipService) IsBlockedEither(ctx context.Context, userA, userB string) (bool, error) {
	return s.friendRepo.IsBlockedEither(ctx, userA, userB)
}

// incomingPending: istek pending olmalı ve userID hedef taraf olmalı.
func (s *friendshipService) incomingPending(ctx context.Context, userID, friendshipID string) (*models.Friendship, error) {
	friendship, err := s.friendRepo.GetByID(ctx, friendshipID)
	if err != nil {
		return nil, err
	}
	if friendship.TargetID != userID {
		return nil, fmt.Errorf("%w: not the recipient of this request", pkg.ErrForbidden)
	}
	if friendship.State != models.FriendshipPending {
		return nil, fmt.Errorf("%w: request is not pending", pkg.ErrBadRequest)
	}
	return friendship, nil
}
