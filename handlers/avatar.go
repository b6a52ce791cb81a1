package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/services"
)

// AvatarHandler, base64 data URL olarak avatar/ikon upload'ı.
//
// Dosya sistemi veya object storage yoktur — görsel, data URL olarak
// users.custom_avatar / servers.icon kolonunda saklanır. Boyut sınırı
// MAX_UPLOAD_BYTES ile yapılandırılır.
type AvatarHandler struct {
	authService   services.AuthService
	serverService services.ServerService
	maxBytes      int64
}

// NewAvatarHandler, constructor.
func NewAvatarHandler(authService services.AuthService, serverService services.ServerService, maxBytes int64) *AvatarHandler {
	return &AvatarHandler{
		authService:   authService,
		serverService: serverService,
		maxBytes:      maxBytes,
	}
}

type avatarRequest struct {
	// Data: "data:image/png;base64,..." veya null (avatarı kaldır).
	Data *string `json:"data"`
}

// SetUserAvatar, POST /api/user/avatar
func (h *AvatarHandler) SetUserAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		pkg.Error(w, pkg.ErrUnauthorized)
		return
	}

	data, err := h.readAvatar(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	user, err := h.authService.SetAvatar(r.Context(), userID, data)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, user.Public())
}

// SetServerIcon, POST /api/servers/{id}/icon
func (h *AvatarHandler) SetServerIcon(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		pkg.Error(w, pkg.ErrUnauthorized)
		return
	}
	serverID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/servers/"), "/icon")
	if serverID == "" || strings.Contains(serverID, "/") {
		pkg.ErrorWithMessage(w, http.StatusNotFound, "not found")
		return
	}

	data, err := h.readAvatar(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	if err := h.serverService.Update(r.Context(), userID, serverID, &models.UpdateServerRequest{Icon: data}); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// readAvatar, body'yi boyut sınırıyla okur ve data URL formatını doğrular.
func (h *AvatarHandler) readAvatar(r *http.Request) (*string, error) {
	var req avatarRequest
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, h.maxBytes))
	if err := decoder.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: body too large or malformed", pkg.ErrBadRequest)
	}
	if req.Data == nil {
		return nil, nil // avatar kaldırılıyor
	}
	if !strings.HasPrefix(*req.Data, "data:image/") || !strings.Contains(*req.Data, ";base64,") {
		return nil, fmt.Errorf("%w: avatar must be a base64 image data URL", pkg.ErrBadRequest)
	}
	return req.Data, nil
}
