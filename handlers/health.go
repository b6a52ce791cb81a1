package handlers

import (
	"net/http"

	"github.com/nexushq/nexus/pkg"
)

// Health, GET /api/health — liveness ucu.
func Health(w http.ResponseWriter, r *http.Request) {
	pkg.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
