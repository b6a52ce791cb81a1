// Package handlers, HTTP handler katmanını barındırır.
//
// Gerçek zamanlı operasyonların tamamı WebSocket dispatcher üzerinden
// akar; HTTP yüzeyi dar tutulur: auth (token'lar socket'ten önce gerekir),
// webhook ingest (dış sistemler socket açmaz), upload ve yardımcı
// proxy'ler (og, gif).
//
// Handler'lar thin'dir: parse → service → yanıt. İş mantığı service
// katmanındadır.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/pkg/ratelimit"
	"github.com/nexushq/nexus/services"
)

// AuthHandler, kimlik uçları: register, login, refresh, logout, delete.
type AuthHandler struct {
	authService services.AuthService
	limiter     *ratelimit.Limiter
}

// NewAuthHandler, constructor.
func NewAuthHandler(authService services.AuthService, limiter *ratelimit.Limiter) *AuthHandler {
	return &AuthHandler{authService: authService, limiter: limiter}
}

// Register, POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.allowByIP(w, r) {
		return
	}

	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, tokens)
}

// Login, POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.allowByIP(w, r) {
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, tokens)
}

// refreshRequest, refresh/logout body'si.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh, POST /api/auth/refresh — refresh token rotation.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	tokens, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, tokens)
}

// Logout, POST /api/auth/logout — idempotent.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if err := h.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]bool{"logged_out": true})
}

// deleteAccountRequest, hesap silme onayı için şifre ister.
type deleteAccountRequest struct {
	Password string `json:"password"`
}

// DeleteAccount, DELETE /api/user — auth middleware arkasında.
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		pkg.Error(w, pkg.ErrUnauthorized)
		return
	}

	var req deleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "password is required")
		return
	}

	if err := h.authService.DeleteAccount(r.Context(), userID, req.Password); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// UpdateProfile, PATCH /api/user/profile — renk, glyph ve opak settings
// blob'u. Kalıcı profil alanları HTTP'den, anlık durum WS'den değişir.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		pkg.Error(w, pkg.ErrUnauthorized)
		return
	}

	var req models.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.authService.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, user.Public())
}

// allowByIP, login/register brute-force koruması — anahtar IP'dir,
// kullanıcı adı değil: başarısız login'de kullanıcı henüz bilinmez.
func (h *AuthHandler) allowByIP(w http.ResponseWriter, r *http.Request) bool {
	ip := ratelimit.ExtractIP(r)
	if !h.limiter.Allow(ratelimit.BucketAuthLogin, ip) {
		pkg.RateLimited(w, h.limiter.RetryAfterSeconds(ratelimit.BucketAuthLogin, ip))
		return false
	}
	return true
}
