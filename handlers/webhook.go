package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/pkg/metrics"
	"github.com/nexushq/nexus/pkg/ratelimit"
	"github.com/nexushq/nexus/services"
)

// WebhookHandler, dış sistemlerden mesaj ingest eden HTTP ucu.
//
// POST /api/webhooks/{id}/{token}
//
// Bu uç auth middleware arkasında DEĞİLDİR — kimlik (id, token) çiftidir.
// Üretilen mesaj normal kullanıcı mesajıyla birebir aynı fan-out'tan geçer.
type WebhookHandler struct {
	webhookService services.WebhookService
	limiter        *ratelimit.Limiter
}

// NewWebhookHandler, constructor.
func NewWebhookHandler(webhookService services.WebhookService, limiter *ratelimit.Limiter) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService, limiter: limiter}
}

// Execute, ingest isteğini işler. Yanıtlar:
// 401 kimlik geçersiz, 400 payload geçersiz, 429 + Retry-After limit,
// 200 {id, success, username}.
func (h *WebhookHandler) Execute(w http.ResponseWriter, r *http.Request) {
	webhookID, token, ok := parseWebhookPath(r.URL.Path)
	if !ok {
		metrics.WebhookRequests.WithLabelValues("bad_path").Inc()
		pkg.ErrorWithMessage(w, http.StatusNotFound, "not found")
		return
	}

	webhook, err := h.webhookService.Authenticate(r.Context(), webhookID, token)
	if err != nil {
		metrics.WebhookRequests.WithLabelValues("unauthorized").Inc()
		pkg.Error(w, err)
		return
	}

	// Rate limit anahtarı webhook ID'sidir — bir entegrasyonun taşması
	// diğer webhook'ları etkilemez.
	if !h.limiter.Allow(ratelimit.BucketWebhookPost, webhook.ID) {
		metrics.WebhookRequests.WithLabelValues("rate_limited").Inc()
		pkg.RateLimited(w, h.limiter.RetryAfterSeconds(ratelimit.BucketWebhookPost, webhook.ID))
		return
	}

	var payload models.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		metrics.WebhookRequests.WithLabelValues("bad_payload").Inc()
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.webhookService.Execute(r.Context(), webhook, &payload)
	if err != nil {
		metrics.WebhookRequests.WithLabelValues("failed").Inc()
		pkg.Error(w, err)
		return
	}

	metrics.WebhookRequests.WithLabelValues("ok").Inc()

	// Ingest yanıtı düz bir wire contract'tır — APIResponse zarfı yok.
	// username, payload override'ı uygulanmış efektif görünen addır.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":       msg.ID,
		"success":  true,
		"username": msg.Author.DisplayName,
	})
}

// parseWebhookPath, "/api/webhooks/{id}/{token}" yolunu ayrıştırır.
func parseWebhookPath(path string) (webhookID, token string, ok bool) {
	trimmed := strings.TrimPrefix(path, "/api/webhooks/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
