// Package middleware, HTTP request pipeline'ına eklenen ara katmanları barındırır.
//
// HTTP yüzeyi dar olduğu için tek middleware vardır: auth. Yetki
// çözümleme HTTP katmanında değil service katmanındadır — WebSocket ve
// HTTP aynı PermissionService'den geçer.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/nexushq/nexus/handlers"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/repository"
	"github.com/nexushq/nexus/services"
)

// AuthMiddleware, JWT token doğrulama middleware'ı.
type AuthMiddleware struct {
	authService services.AuthService
	userRepo    repository.UserRepository
}

// NewAuthMiddleware, constructor.
func NewAuthMiddleware(authService services.AuthService, userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		userRepo:    userRepo,
	}
}

// Require, Bearer token zorunlu kılar; geçersizse 401 döner ve zincir durur.
//
// Doğrulama üç adımdır: imza + süre (JWT), session varlığı (revocation)
// ve kullanıcı varlığı — token geçerli olsa bile hesap silinmiş olabilir.
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "authorization header required")
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid authorization format, use: Bearer <token>")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := m.authService.ValidateAccessToken(r.Context(), tokenString)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		user, err := m.userRepo.GetByID(r.Context(), claims.UserID)
		if err != nil || user.DeletedAt != nil {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found")
			return
		}

		// Hash context'te taşınmaz.
		user.PasswordHash = ""

		ctx := context.WithValue(r.Context(), handlers.UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
