package handlers

import (
	"context"

	"github.com/nexushq/nexus/models"
)

// contextKey, context çakışmalarına karşı paket-özel anahtar tipi.
type contextKey string

// UserContextKey, auth middleware'ının doğrulanmış kullanıcıyı koyduğu anahtar.
const UserContextKey contextKey = "user"

// UserFrom, context'teki doğrulanmış kullanıcıyı döner.
func UserFrom(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}

// UserIDFrom, context'teki doğrulanmış kullanıcının ID'sini döner.
func UserIDFrom(ctx context.Context) (string, bool) {
	user, ok := UserFrom(ctx)
	if !ok {
		return "", false
	}
	return user.ID, true
}
