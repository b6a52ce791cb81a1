package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/pkg/ratelimit"
	"github.com/nexushq/nexus/services"
)

// stubWebhookService, ingest ucunu service katmanından izole test etmek için.
type stubWebhookService struct {
	webhook *models.Webhook
	msg     *models.Message
}

var _ services.WebhookService = (*stubWebhookService)(nil)

func (s *stubWebhookService) Create(context.Context, string, *models.CreateWebhookRequest) (*models.Webhook, error) {
	return nil, pkg.ErrBadRequest
}

func (s *stubWebhookService) ListByChannel(context.Context, string, string) ([]models.Webhook, error) {
	return nil, nil
}

func (s *stubWebhookService) Delete(context.Context, string, string) error { return nil }

func (s *stubWebhookService) Authenticate(_ context.Context, webhookID, token string) (*models.Webhook, error) {
	if s.webhook == nil || webhookID != s.webhook.ID || token != s.webhook.Token {
		return nil, pkg.ErrUnauthorized
	}
	return s.webhook, nil
}

func (s *stubWebhookService) Execute(_ context.Context, _ *models.Webhook, payload *models.WebhookPayload) (*models.Message, error) {
	if err := payload.Validate(); err != nil {
		return nil, pkg.ErrBadRequest
	}
	msg := *s.msg
	if payload.Username != "" {
		msg.Author.DisplayName = payload.Username
	}
	return &msg, nil
}

func newWebhookTestHandler() *WebhookHandler {
	webhookID := "wh-1"
	stub := &stubWebhookService{
		webhook: &models.Webhook{ID: webhookID, Token: "gizli-token", ChannelID: "chan-1", Name: "ci-bot"},
		msg: &models.Message{
			ID:        "7001",
			ChannelID: "chan-1",
			Author:    models.Author{WebhookID: &webhookID, DisplayName: "ci-bot"},
		},
	}
	limiter := ratelimit.NewLimiter(ratelimit.DefaultRules())
	return NewWebhookHandler(stub, limiter)
}

// Başarılı ingest yanıtı APIResponse zarfına sarılmaz — düz {id, success,
// username} döner ve username efektif görünen addır.
func TestWebhookExecuteResponseShape(t *testing.T) {
	h := newWebhookTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/wh-1/gizli-token",
		strings.NewReader(`{"content":"build yeşil","username":"pipeline"}`))
	rec := httptest.NewRecorder()
	h.Execute(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "7001", body["id"])
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "pipeline", body["username"])
}

func TestWebhookExecuteRejections(t *testing.T) {
	h := newWebhookTestHandler()

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"wrong token", "/api/webhooks/wh-1/sahte", `{"content":"x"}`, http.StatusUnauthorized},
		{"unknown id", "/api/webhooks/wh-2/gizli-token", `{"content":"x"}`, http.StatusUnauthorized},
		{"malformed path", "/api/webhooks/wh-1", `{"content":"x"}`, http.StatusNotFound},
		{"broken json", "/api/webhooks/wh-1/gizli-token", `{`, http.StatusBadRequest},
		{"empty payload", "/api/webhooks/wh-1/gizli-token", `{}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Execute(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestWebhookExecuteRateLimited(t *testing.T) {
	h := newWebhookTestHandler()

	var last *httptest.ResponseRecorder
	for i := 0; i < 11; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/wh-1/gizli-token",
			strings.NewReader(`{"content":"x"}`))
		last = httptest.NewRecorder()
		h.Execute(last, req)
	}

	require.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
}
