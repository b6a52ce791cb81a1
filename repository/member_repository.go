package repository

import (
	"context"
	"time"

	"github.com/nexushq/nexus/models"
)

// MemberRepository, (user, server) üyelik kenarlarını yönetir.
type MemberRepository interface {
	Add(ctx context.Context, userID, serverID string) error
	Get(ctx context.Context, userID, serverID string) (*models.Membership, error)
	Remove(ctx context.Context, userID, serverID string) error
	ListByServer(ctx context.Context, serverID string) ([]models.Member, error)
	ListUserIDs(ctx context.Context, serverID string) ([]string, error)
	Count(ctx context.Context, serverID string) (int, error)
	// SetTimeout, üyenin timeout_until zamanını günceller (nil → kaldır).
	SetTimeout(ctx context.Context, userID, serverID string, until *time.Time) error
	// LongestJoinedWith, rolleri arasında verilen permission bulunan en
	// eski üyeyi döner — owner ayrılınca sahiplik devri adayı.
	LongestJoinedWith(ctx context.Context, serverID string, perm models.Permission, excludeUserID string) (string, error)
}
