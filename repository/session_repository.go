package repository

import (
	"context"

	"github.com/nexushq/nexus/models"
)

// SessionRepository, refresh token oturumlarını yönetir.
//
// Access token stateless'tır (JWT) ama oturumun kendisi DB'dedir —
// logout ve hesap silme token'ları bu tablo üzerinden geçersiz kılar.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	GetByRefreshToken(ctx context.Context, token string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
