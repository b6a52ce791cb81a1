package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims, JWT access token'ın payload'ı.
//
// SessionID taşınır ki token tek başına değil, sessions tablosundaki
// yaşayan bir oturuma bağlı olarak geçerli olsun — logout edilen
// oturumun access token'ı da anında düşer.
//
// Bu struct models paketinde tanımlanır çünkü birden fazla katman
// (services, ws, middleware) tarafından kullanılır — her katman
// models'e bağımlı olabilir, circular dependency oluşmaz.
type TokenClaims struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}
