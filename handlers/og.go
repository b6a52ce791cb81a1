package handlers

import (
	"net/http"

	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/services"
)

// OGHandler, link önizleme proxy'si.
//
// Client siteye doğrudan gitmez — CORS ve tarayıcı parmak izi sorunları
// yerine server çeker, cache'ler, sadeleştirilmiş embed döner.
type OGHandler struct {
	ogService services.OGService
}

// NewOGHandler, constructor.
func NewOGHandler(ogService services.OGService) *OGHandler {
	return &OGHandler{ogService: ogService}
}

// Preview, GET /api/og?url=<target>
func (h *OGHandler) Preview(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	embed, err := h.ogService.Fetch(r.Context(), target)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, embed)
}
