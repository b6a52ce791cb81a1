package handlers

import (
	"net/http"
	"strconv"

	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/services"
)

// GifHandler, GIF arama proxy uçları.
type GifHandler struct {
	gifService services.GifService
}

// NewGifHandler, constructor.
func NewGifHandler(gifService services.GifService) *GifHandler {
	return &GifHandler{gifService: gifService}
}

// Search, GET /api/gifs/search?q=<query>&limit=<n>
func (h *GifHandler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.gifService.Search(r.Context(), r.URL.Query().Get("q"), limitParam(r))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, results)
}

// Trending, GET /api/gifs/trending?limit=<n>
func (h *GifHandler) Trending(w http.ResponseWriter, r *http.Request) {
	results, err := h.gifService.Trending(r.Context(), limitParam(r))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, results)
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0 // service varsayılanı uygular
	}
	return n
}
