package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/repository"
)

// WebhookService, webhook yönetimi ve ingest doğrulaması.
//
// Token yalnızca Create yanıtında bir kez açığa çıkar. Ingest auth'u
// Authenticate içindedir: token karşılaştırması constant-time yapılır —
// timing farkından token sızmaz.
type WebhookService interface {
	Create(ctx context.Context, actorID string, req *models.CreateWebhookRequest) (*models.Webhook, error)
	ListByChannel(ctx context.Context, actorID, channelID string) ([]models.Webhook, error)
	Delete(ctx context.Context, actorID, webhookID string) error
	// Authenticate, (id, token) çiftini doğrular; geçersizse ErrUnauthorized.
	Authenticate(ctx context.Context, webhookID, token string) (*models.Webhook, error)
	// Execute, doğrulanmış webhook adına mesaj üretir — normal mesaj
	// yoluyla aynı persist + fan-out'tan geçer.
	Execute(ctx context.Context, webhook *models.Webhook, payload *models.WebhookPayload) (*models.Message, error)
}

type webhookService struct {
	webhookRepo repository.WebhookRepository
	channelRepo repository.ChannelRepository
	perms       PermissionService
	messages    MessageService
}

// NewWebhookService, constructor.
func NewWebhookService(
	webhookRepo repository.WebhookRepository,
	channelRepo repository.ChannelRepository,
	perms PermissionService,
	messages MessageService,
) WebhookService {
	return &webhookService{
		webhookRepo: webhookRepo,
		channelRepo: channelRepo,
		perms:       perms,
		messages:    messages,
	}
}

func (s *webhookService) Create(ctx context.Context, actorID string, req *models.CreateWebhookRequest) (*models.Webhook, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	channel, err := s.channelRepo.GetByID(ctx, req.ChannelID)
	if err != nil {
		return nil, err
	}
	if channel.ServerID == nil {
		return nil, fmt.Errorf("%w: webhooks are not available in direct messages", pkg.ErrBadRequest)
	}
	if channel.Type != models.ChannelTypeText {
		return nil, fmt.Errorf("%w: webhooks require a text channel", pkg.ErrBadRequest)
	}
	if err := s.perms.RequireServer(ctx, actorID, *channel.ServerID, models.PermManageWebhooks); err != nil {
		return nil, err
	}

	webhook := &models.Webhook{
		ChannelID: req.ChannelID,
		Name:      req.Name,
		Token:     randomToken(32), // 64 hex karakter
		CreatedBy: actorID,
	}
	if err := s.webhookRepo.Create(ctx, webhook); err != nil {
		return nil, err
	}

	log.Printf("[webhook] created: %s channel=%s by=%s", webhook.ID, webhook.ChannelID, actorID)
	return webhook, nil
}

func (s *webhookService) ListByChannel(ctx context.Context, actorID, channelID string) ([]models.Webhook, error) {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.ServerID == nil {
		return nil, fmt.Errorf("%w: webhooks are not available in direct messages", pkg.ErrBadRequest)
	}
	if err := s.perms.RequireServer(ctx, actorID, *channel.ServerID, models.PermManageWebhooks); err != nil {
		return nil, err
	}
	return s.webhookRepo.ListByChannel(ctx, channelID)
}

func (s *webhookService) Delete(ctx context.Context, actorID, webhookID string) error {
	webhook, err := s.webhookRepo.GetByID(ctx, webhookID)
	if err != nil {
		return err
	}
	channel, err := s.channelRepo.GetByID(ctx, webhook.ChannelID)
	if err != nil {
		return err
	}
	if channel.ServerID != nil {
		if err := s.perms.RequireServer(ctx, actorID, *channel.ServerID, models.PermManageWebhooks); err != nil {
			return err
		}
	}
	return s.webhookRepo.Delete(ctx, webhookID)
}

func (s *webhookService) Authenticate(ctx context.Context, webhookID, token string) (*models.Webhook, error) {
	webhook, err := s.webhookRepo.GetByID(ctx, webhookID)
	if err != nil {
		// ID'nin varlığı da sızdırılmaz — yok ile yanlış token aynı cevaptır.
		return nil, fmt.Errorf("%w: invalid webhook credentials", pkg.ErrUnauthorized)
	}
	if subtle.ConstantTimeCompare([]byte(webhook.Token), []byte(token)) != 1 {
		return nil, fmt.Errorf("%w: invalid webhook credentials", pkg.ErrUnauthorized)
	}
	return webhook, nil
}

func (s *webhookService) Execute(ctx context.Context, webhook *models.Webhook, payload *models.WebhookPayload) (*models.Message, error) {
	return s.messages.SendFromWebhook(ctx, webhook, payload)
}
