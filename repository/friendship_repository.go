package repository

import (
	"context"

	"github.com/nexushq/nexus/models"
)

// FriendshipRepository, arkadaşlık ve block graph'ını yönetir.
//
// Pending invariant: bir çift için (iki yönde toplam) tek pending kayıt —
// CreateRequest her iki yönü de kontrol eder.
type FriendshipRepository interface {
	CreateRequest(ctx context.Context, f *models.Friendship) error
	GetByID(ctx context.Context, id string) (*models.Friendship, error)
	// GetBetween, iki kullanıcı arasındaki kaydı (yönden bağımsız) döner.
	GetBetween(ctx context.Context, userA, userB string) (*models.Friendship, error)
	SetState(ctx context.Context, id string, state models.FriendshipState) error
	Delete(ctx context.Context, id string) error
	DeleteBetween(ctx context.Context, userA, userB string) error
	ListForUser(ctx context.Context, userID string) ([]models.FriendEntry, error)

	Block(ctx context.Context, blockerID, blockedID string) error
	Unblock(ctx context.Context, blockerID, blockedID string) error
	// IsBlockedEither, iki yönden herhangi birinde block olup olmadığını döner.
	IsBlockedEither(ctx context.Context, userA, userB string) (bool, error)
	ListBlocked(ctx context.Context, blockerID string) ([]string, error)
}
